// Command notifybar is a terminal notification dropdown for ServeHub. It polls
// the unread badge while running and opens into the newest notifications.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/01moynul/servehub/internal/client"
	"github.com/01moynul/servehub/internal/config"
	"github.com/01moynul/servehub/internal/credential"
	"github.com/01moynul/servehub/internal/inbox"
	"github.com/01moynul/servehub/internal/ui/dropdown"
)

func main() {
	configPath := flag.String("config", config.DefaultClientPath(), "path to notifybar.yaml")
	logout := flag.Bool("logout", false, "forget the stored session and exit")
	flag.Parse()

	if *logout {
		if err := credential.Delete(credential.SessionKey); err != nil {
			log.Fatalf("Failed to clear session: %v", err)
		}
		fmt.Println("Logged out.")
		return
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 1. --- Session ---
	api := client.New(cfg.APIURL, "")
	token, err := credential.Get(credential.SessionKey)
	if err != nil || !sessionValid(api, token) {
		token, err = login(api, &cfg, *configPath)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
	}
	api.SetToken(token)

	// 2. --- Logging goes to a file; the terminal belongs to the UI ---
	logPath := filepath.Join(filepath.Dir(*configPath), "notifybar.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
		if f, err := tea.LogToFile(logPath, "notifybar"); err == nil {
			defer f.Close()
		}
	}

	// 3. --- Poller lives as long as the session ---
	box := inbox.New(api, log.Default())
	poller := inbox.NewPoller(box)
	poller.Start(context.Background())
	defer poller.Stop()

	model := dropdown.New(box, poller, dropdown.Options{
		Navigate: func(url string) {
			log.Printf("navigate: %s%s", strings.TrimRight(cfg.APIURL, "/"), url)
		},
		Logout: func() error {
			return credential.Delete(credential.SessionKey)
		},
	})

	final, err := tea.NewProgram(model).Run()
	if err != nil {
		log.Fatalf("notifybar: %v", err)
	}
	m, ok := final.(dropdown.Model)
	switch {
	case ok && m.LoggedOut():
		fmt.Println("Logged out.")
	case ok && m.SessionExpired():
		if err := credential.Delete(credential.SessionKey); err != nil {
			log.Printf("Warning: could not clear session: %v", err)
		}
		fmt.Println("Session expired. Run notifybar again to log in.")
	}
}

// sessionValid probes the cheap endpoint with the stored token. A server that
// cannot be reached does not invalidate the session.
func sessionValid(api *client.Client, token string) bool {
	if token == "" {
		return false
	}
	api.SetToken(token)
	_, err := api.UnreadCount(context.Background())
	return !client.IsUnauthorized(err)
}

// login prompts for credentials and stores the new session token.
func login(api *client.Client, cfg *config.Client, configPath string) (string, error) {
	reader := bufio.NewReader(os.Stdin)

	email := cfg.Email
	fmt.Printf("Email [%s]: ", email)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" && email == "" {
		return "", fmt.Errorf("reading email: %w", err)
	}
	if line = strings.TrimSpace(line); line != "" {
		email = line
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	token, err := api.Login(context.Background(), email, string(password))
	if err != nil {
		return "", err
	}
	if err := credential.Set(credential.SessionKey, token); err != nil {
		log.Printf("Warning: could not store session in keyring: %v", err)
	}
	cfg.Email = email
	if err := config.SaveClient(configPath, *cfg); err != nil {
		log.Printf("Warning: could not save config: %v", err)
	}
	return token, nil
}
