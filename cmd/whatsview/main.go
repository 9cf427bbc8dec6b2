package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsview/internal/config"
	"whatsview/internal/constants"
	"whatsview/internal/database"
	"whatsview/internal/retry"
	"whatsview/internal/service"
	"whatsview/internal/tracing"
	"whatsview/internal/ws"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("WhatsView %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting WhatsView")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg.LogLevel)

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Bring up the store with exponential backoff; MongoDB may still be
	// starting when the process launches.
	var store *database.Store
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		store, initErr = database.New(ctx, cfg.Mongo, logger)
		if initErr != nil {
			logger.Warnf("Failed to initialize store: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize store after retries: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warnf("Failed to close store: %v", err)
		}
	}()

	if cfg.Mongo.SeedOnEmpty {
		if err := store.SeedIfEmpty(ctx); err != nil {
			logger.Warnf("Failed to seed sample data: %v", err)
		}
	}

	hub := ws.NewHub(logger, cfg.Server.CORSOrigin)
	defer hub.Close()

	chat := service.NewChatService(store, hub, logger)

	if cfg.Mongo.EnableChangeStreams {
		if err := store.WatchChanges(ctx, hub); err != nil {
			logger.Warnf("Change streams unavailable, live updates degraded: %v", err)
		}
	} else {
		logger.Info("Change streams disabled")
	}

	server := NewServer(cfg.Server, chat, hub, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

func configureLogLevel(logger *logrus.Logger, configured string) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled")
		return
	}
	if configured == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	level, err := logrus.ParseLevel(configured)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", configured)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	logger.SetLevel(level)
}
