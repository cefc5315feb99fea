package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"

	"khata/internal/cli"
	apphttp "khata/internal/http"
	"khata/internal/log"
	"khata/internal/services"
)

type serveCmd struct {
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the ledger as a JSON API" }
func (*serveCmd) Usage() string {
	return `khata serve [-port <port>]

  Serves the JSON API until interrupted. The port defaults to $PORT.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "port to listen on, overriding $PORT")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	port := s.cfg.Port
	if c.port != "" {
		port = c.port
	}

	importer := services.NewImportService(s.store, s.cfg.ImportTimeout, s.cfg.ImportMaxBytes, s.logger)
	srv := apphttp.NewServer(apphttp.Config{
		Addr:              ":" + port,
		Store:             s.store,
		Importer:          importer,
		Logger:            s.logger,
		DashboardCacheTTL: s.cfg.DashboardCacheTTL,
		RecentLimit:       s.cfg.RecentLimit,
		DebtorsLimit:      s.cfg.DebtorsLimit,
	})
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(s.logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	s.logger.Info("Starting khata server", "port", port, log.FieldBackend, s.cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		return subcommands.ExitFailure
	}
	<-done
	s.logger.Info("Server stopped gracefully")
	return subcommands.ExitSuccess
}
