package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Client holds the notifybar settings.
type Client struct {
	// APIURL is the root of the ServeHub API, e.g. http://localhost:8080.
	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	// Email is the account used for the last login, remembered for convenience.
	Email string `mapstructure:"email" yaml:"email"`
}

// DefaultClientPath returns ~/.config/servehub/notifybar.yaml.
func DefaultClientPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "notifybar.yaml")
	}
	return filepath.Join(home, ".config", "servehub", "notifybar.yaml")
}

// LoadClient reads the client configuration. A missing file yields defaults;
// SERVEHUB_API_URL overrides the file.
func LoadClient(path string) (Client, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("email", "")
	if err := v.BindEnv("api_url", "SERVEHUB_API_URL"); err != nil {
		return Client{}, fmt.Errorf("binding api_url: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return Client{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return Client{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveClient writes cfg to path, creating parent directories if needed.
func SaveClient(path string, cfg Client) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("api_url", cfg.APIURL)
	v.Set("email", cfg.Email)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
