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
	"whatsview/internal/database"
	"whatsview/internal/retry"
	"whatsview/internal/service"

	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "config.json", "Path to configuration file")
	payloadDir = flag.String("dir", "", "Directory of webhook payload JSON files")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Ingest error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *payloadDir == "" {
		return fmt.Errorf("-dir is required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

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

	normalizer := service.NewNormalizer(store, logger)

	report, err := normalizer.IngestDirectory(ctx, *payloadDir)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	logger.WithFields(report.Fields()).Info("Ingest complete")
	return nil
}
