// Package cli provides the initialization shared by the khata commands:
// environment, logging, configuration and opening the ledger.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/backend"
	"khata/internal/config"
	"khata/internal/ledger"
	"khata/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is ignored; it is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds a logger at the given level and makes it the default.
// Logs go to stderr so command output on stdout stays clean. An unknown
// level falls back to info.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = os.Stderr
	cfg.Component = log.ComponentCLI
	if lvl, err := log.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenLedger creates the configured backend and loads the ledger from it.
// The caller closes the returned backend once done with the store.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*ledger.Store, *backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	opts := append(res.LedgerOptions(), ledger.WithLogger(logger))
	store, err := ledger.Load(ctx, res.Storage, opts...)
	if err != nil {
		if cerr := res.Close(); cerr != nil {
			logger.Warn("Failed to close backend", log.FieldError, cerr.Error())
		}
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	logger.Info("Ledger opened",
		log.FieldBackend, bcfg.Type.String(),
		"customers", len(store.Customers()),
		"transactions", len(store.Transactions()))
	return store, res, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
