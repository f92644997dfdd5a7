// Command trainer implements the Millwright predictive maintenance trainer.
//
// The trainer runs the end-to-end training pipeline:
//  1. Loads the machine telemetry and processed feature tables
//  2. Joins them on (machine id, timestamp) and derives failure labels
//  3. Splits rows temporally with a leakage gap between train and test
//  4. Fits the feature pipeline on training rows and transforms both sets
//  5. Trains a classifier through grid-search cross-validation
//  6. Evaluates the refit model on held-out rows and stores the report
//
// The trainer serves an HTTP API on port 8082 (configurable) providing:
//   - GET /report/latest?dataset=<name> - Retrieve latest training report
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	trainer \
//	  -dataset=machines \
//	  -telemetry-path=telemetry.csv \
//	  -features-path=features.csv \
//	  -model=forest \
//	  -interval=12h
//
// Environment variables:
//
//	DATASET         - Dataset name (required)
//	TELEMETRY_PATH  - Telemetry table path (required)
//	FEATURES_PATH   - Feature table path (required)
//	MODEL           - Classifier: logreg or forest (default: logreg)
//	TRAIN_CUTOFF    - Train rows end before this date (default: 2015-09-30)
//	TEST_CUTOFF     - Test rows start after this date (default: 2015-10-01)
//	INTERVAL        - Retraining interval, 0 = run once (default: 0)
//	STORAGE         - Report store: memory or redis (default: memory)
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HatiCode/millwright/cmd/trainer/config"
	"github.com/HatiCode/millwright/cmd/trainer/logger"
	"github.com/HatiCode/millwright/cmd/trainer/metrics"
	"github.com/HatiCode/millwright/cmd/trainer/models"
	"github.com/HatiCode/millwright/cmd/trainer/router"
	"github.com/HatiCode/millwright/cmd/trainer/store"
	"github.com/HatiCode/millwright/pkg/dataset"
	"github.com/HatiCode/millwright/pkg/httpx"
	"github.com/HatiCode/millwright/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting millwright trainer",
		"version", version,
		"dataset", cfg.Dataset,
		"model", cfg.Model,
		"tls_enabled", cfg.TLS.Enabled,
	)

	if err := cfg.TLS.Validate(); err != nil {
		logger.Error("invalid TLS configuration", "error", err)
		os.Exit(1)
	}

	telemetry, err := dataset.New(cfg.TelemetryFormat, map[string]string{
		"path":          cfg.TelemetryPath,
		"machineColumn": cfg.MachineColumn,
		"timeColumn":    cfg.TimeColumn,
		"timeLayout":    cfg.TimeLayout,
	})
	if err != nil {
		logger.Error("failed to create telemetry source", "error", err)
		os.Exit(1)
	}

	features, err := dataset.New(cfg.FeaturesFormat, map[string]string{
		"path":          cfg.FeaturesPath,
		"machineColumn": cfg.MachineColumn,
		"timeColumn":    cfg.TimeColumn,
		"timeLayout":    cfg.TimeLayout,
	})
	if err != nil {
		logger.Error("failed to create features source", "error", err)
		os.Exit(1)
	}

	classifierTrainer := models.New(cfg, logger)

	reportStore := store.New(cfg, logger)
	if closer, ok := reportStore.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()
	}

	t := NewTrainer(
		cfg,
		telemetry,
		features,
		classifierTrainer,
		reportStore,
		logger,
		metrics.New(cfg.Dataset),
		os.Stdout,
	)

	// One-shot mode trains, prints the report and exits without serving HTTP.
	if cfg.Interval == 0 {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		if err := t.Run(ctx, 0); err != nil {
			logger.Error("training run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	staleAfter := 2 * cfg.Interval // Report is stale if older than 2x the interval
	mux := router.SetupRoutes(reportStore, staleAfter, logger)
	httpServer := httpx.NewServer(cfg.Listen, mux, logger)

	if cfg.TLS.Enabled {
		tlsConfig, err := tls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			logger.Error("failed to create TLS configuration", "error", err)
			os.Exit(1)
		}
		httpServer.SetTLSConfig(tlsConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := t.Run(ctx, cfg.Interval); err != nil && err != context.Canceled {
			logger.Error("retraining loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErr <- httpServer.Start()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
