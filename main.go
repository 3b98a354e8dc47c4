// Package main is the entry point for the interview orchestrator service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/interview-orchestrator/internal/api"
	"github.com/jonesrussell/interview-orchestrator/internal/config"
	"github.com/jonesrussell/interview-orchestrator/internal/handler"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
	"github.com/jonesrussell/interview-orchestrator/internal/messaging"
	"github.com/jonesrussell/interview-orchestrator/internal/metrics"
	"github.com/jonesrussell/interview-orchestrator/internal/notify"
	"github.com/jonesrussell/interview-orchestrator/internal/session"
	"github.com/jonesrussell/interview-orchestrator/internal/storage"
	"github.com/jonesrussell/interview-orchestrator/internal/transcript"
	"github.com/jonesrussell/interview-orchestrator/internal/video"
)

// Health check database ping timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := storage.Connect(&cfg.Database, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runService(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// runService creates all dependencies, starts the background workers, and
// runs the HTTP server until a shutdown signal arrives.
func runService(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(registry)

	sessionRepo := storage.NewSessionRepository(db)
	transcriptRepo := storage.NewTranscriptRepository(db)
	notificationRepo := storage.NewNotificationRepository(db)

	issuer := video.NewTokenIssuer(cfg.Video.APIKey, cfg.Video.APISecret, cfg.Video.ServerURL, cfg.Video.TokenTTL)
	rooms := video.NewClient(cfg.Video.BaseURL, cfg.Video.ServerURL, issuer, cfg.Video.Timeout, log)
	sender := messaging.NewClient(cfg.Messaging.BaseURL, cfg.Messaging.APIToken, cfg.Messaging.Timeout, log)

	dispatcher := notify.NewDispatcher(notificationRepo, cfg.Notifications.MaxAttempts, log)
	manager := session.NewManager(sessionRepo, rooms, dispatcher, recorder, log)
	ingestor := transcript.NewIngestor(transcriptRepo, sessionRepo, cfg.Transcripts.MaxBatchSegments, recorder, log)

	worker := notify.NewWorker(notificationRepo, sender, notify.WorkerConfig{
		PollInterval: cfg.Notifications.PollInterval,
		BatchSize:    cfg.Notifications.BatchSize,
		BaseBackoff:  cfg.Notifications.BaseBackoff,
		MaxBackoff:   cfg.Notifications.MaxBackoff,
	}, recorder, log)
	reconciler := session.NewReconciler(sessionRepo, rooms, cfg.Notifications.ReconcileInterval, log)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop()
	reconciler.Start(ctx)
	defer reconciler.Stop()

	handlers := api.Handlers{
		Sessions:      handler.NewSessionHandler(manager),
		Transcripts:   handler.NewTranscriptHandler(ingestor),
		Notifications: handler.NewNotificationHandler(dispatcher),
	}

	server := api.NewServer(&cfg.Service, log, func(router *gin.Engine) {
		api.SetupRoutes(router, handlers, registry)
		api.RegisterHealthRoutes(router, cfg.Service.Name, cfg.Service.Version, map[string]api.HealthChecker{
			"database": api.DatabaseHealthChecker(storage.Ping(db, dbPingTimeout)),
		})
	})

	log.Info("Interview orchestrator starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("version", cfg.Service.Version),
	)

	if err := server.RunWithGracefulShutdown(ctx); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Interview orchestrator exited cleanly")
	return 0
}
