package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"khata/internal/backend"
	"khata/internal/cli"
	"khata/internal/config"
	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/log"
)

// as a CLI application, every command opens the ledger, does one thing and
// closes it again.

// session bundles what a command needs to work on the ledger.
type session struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *ledger.Store
	backend *backend.BackendResult
}

func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		s.logger.Warn("Failed to close backend", log.FieldError, err.Error())
	}
}

// openSession loads configuration and the ledger, reporting failures on
// stderr.
func openSession(ctx context.Context) (*session, subcommands.ExitStatus) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	logger := cli.SetupLogger(cfg.LogLevel)
	store, res, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	return &session{cfg: cfg, logger: logger, store: store, backend: res}, subcommands.ExitSuccess
}

// fail prints err and maps it to an exit status. A persistence failure is
// reported but the change it follows was applied in memory only.
func fail(what string, err error) subcommands.ExitStatus {
	switch {
	case errors.Is(err, core.ErrPersistence):
		fmt.Fprintf(os.Stderr, "Warning: %s applied but not saved: %v\n", what, err)
	case errors.Is(err, core.ErrValidation):
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return subcommands.ExitUsageError
	default:
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", what, err)
	}
	return subcommands.ExitFailure
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// balanceLine renders a balance the way the ledger owner reads it.
func balanceLine(b core.BalanceStatus, amount string) string {
	switch b {
	case core.Receivable:
		return amount + " due"
	case core.Advance:
		return amount + " advance"
	default:
		return "settled"
	}
}

func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
