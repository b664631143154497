package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/01moynul/servehub/internal/audit"
	"github.com/01moynul/servehub/internal/auth"
	"github.com/01moynul/servehub/internal/config"
	"github.com/01moynul/servehub/internal/database"
	"github.com/01moynul/servehub/internal/email"
	"github.com/01moynul/servehub/internal/events"
	"github.com/01moynul/servehub/internal/handlers"
	"github.com/01moynul/servehub/internal/notify"
	"github.com/01moynul/servehub/internal/participation"
	"github.com/01moynul/servehub/internal/routes"
	"github.com/01moynul/servehub/internal/storage"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 1. --- Main Database Connection ---
	db, err := database.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to connect to primary database: %v", err)
	}
	defer db.Close()

	// 2. --- Audit History (MongoDB, optional) ---
	var recorder audit.Recorder = audit.LogRecorder{Logger: log.New(os.Stdout, "[audit] ", log.LstdFlags)}
	if cfg.MongoURI != "" {
		mongoClient, mongoDB, err := audit.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Printf("MongoDB disconnect: %v", err)
			}
		}()
		recorder = audit.NewMongoRecorder(mongoDB)
		log.Println("MongoDB connected, recording status history")
	}

	// 3. --- Services ---
	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatalf("Failed to initialize token issuer: %v", err)
	}

	notifyLogger := log.New(os.Stdout, "[notify] ", log.LstdFlags)
	notifications := notify.NewService(storage.NewNotificationStore(db), time.Now, nil)
	notifier := notify.NewNotifier(notifications, notifyLogger)
	mailer := email.LogSender{Logger: log.New(os.Stdout, "[email] ", log.LstdFlags)}

	app := &handlers.Handlers{
		Notifications: notifications,
		Participation: participation.NewService(participation.Config{
			Store:    storage.NewParticipationStore(db),
			Notifier: notifier,
			Audit:    recorder,
			Mailer:   mailer,
			Logger:   log.New(os.Stdout, "[participation] ", log.LstdFlags),
		}),
		Events: events.NewService(events.Config{
			Store:    storage.NewEventStore(db),
			Notifier: notifier,
			Audit:    recorder,
			Logger:   log.New(os.Stdout, "[events] ", log.LstdFlags),
		}),
		Users:  storage.NewUserStore(db),
		Tokens: tokens,
	}

	// 4. --- Background Workers ---
	// The retention worker trims old notifications until shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go notifications.RunRetention(workerCtx, notify.RetentionPolicy{
		MaxAge:          cfg.Retention(),
		MaxPerRecipient: cfg.MaxPerRecipient,
	}, cfg.PurgeInterval, notifyLogger)

	// 5. --- Router and Server ---
	router := routes.SetupRouter(app, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting ServeHub API server on port %s...", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 6. --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
