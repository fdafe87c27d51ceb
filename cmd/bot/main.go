package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/agent"
	"github.com/brandpulse/social-mentions-bot/internal/api"
	"github.com/brandpulse/social-mentions-bot/internal/config"
	"github.com/brandpulse/social-mentions-bot/internal/llm"
	"github.com/brandpulse/social-mentions-bot/internal/monitoring"
	"github.com/brandpulse/social-mentions-bot/internal/notifications"
	"github.com/brandpulse/social-mentions-bot/internal/scheduler"
	"github.com/brandpulse/social-mentions-bot/internal/sentiment"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
	"github.com/brandpulse/social-mentions-bot/internal/storage"
	"github.com/brandpulse/social-mentions-bot/internal/store"
	"github.com/brandpulse/social-mentions-bot/internal/ticketing"
)

// replyAttempts bounds regeneration of negative replies missing the follow-up phrase
const replyAttempts = 3

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	logrus.Info("Starting social mentions bot")

	ctx := context.Background()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}
	mentionStore := store.New(db)

	platformSources := sources.NewSetFromConfig(cfg)
	logrus.Infof("Enabled platforms: %v", platformSources.Names())

	completer, err := llm.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize completion client: %v", err)
	}
	generator := sentiment.NewGenerator(completer, replyAttempts)

	var notifier notifications.Notifier
	if cfg.NotificationsEnabled() {
		notifier = notifications.NewService(cfg)
	} else {
		logrus.Info("No notification channels configured")
	}
	tickets := ticketing.NewService(mentionStore, notifier)

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize report archive: %v", err)
	}

	monitor := monitoring.NewService(mentionStore, platformSources, generator, tickets, archive)

	runner := scheduler.NewRunner(monitor, cfg.CycleInterval)
	if cfg.AutonomousAutostart {
		if err := runner.Start(); err != nil {
			logrus.Fatalf("Failed to start autonomous runner: %v", err)
		}
	}

	digest := scheduler.NewService(cfg.DigestSchedule, mentionStore, notifier)
	if err := digest.Start(); err != nil {
		logrus.Fatalf("Failed to start digest scheduler: %v", err)
	}

	ag := agent.New(completer, monitor, mentionStore, agent.Config{
		MaxSteps:   cfg.AgentMaxSteps,
		MaxInvalid: cfg.AgentMaxInvalid,
	})

	srv := api.NewServer(monitor, mentionStore, runner, ag, cfg.IGVerifyToken)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // run-once and agent runs call the model per mention
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	if err := runner.Stop(); err == nil {
		if err := runner.Wait(shutdownCtx); err != nil {
			logrus.Warnf("Autonomous runner did not stop in time: %v", err)
		}
	}
	digest.Stop()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cfg.Debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}

// newArchive returns nil when no archive backend is configured
func newArchive(ctx context.Context, cfg *config.Config) (*storage.ReportArchive, error) {
	backend, err := storage.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		logrus.Info("Cycle report archive disabled")
		return nil, nil
	}
	return storage.NewReportArchive(backend, cfg.ArchiveKeep), nil
}
