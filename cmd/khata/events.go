package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"khata/internal/amqp"
	"khata/internal/cli"
	"khata/internal/core"
)

type eventsCmd struct{}

func (*eventsCmd) Name() string     { return "events" }
func (*eventsCmd) Synopsis() string { return "follow ledger events published to AMQP_URL" }
func (*eventsCmd) Usage() string {
	return `khata events

  Prints ledger events from the configured queue until interrupted.
  Requires AMQP_URL.
`
}
func (*eventsCmd) SetFlags(*flag.FlagSet) {}

func (c *eventsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if cfg.AMQPURL == "" {
		fmt.Fprintln(os.Stderr, "events requires AMQP_URL")
		return subcommands.ExitUsageError
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, _ := cli.GracefulShutdown(logger, 5*time.Second, nil)
	client, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 3)
	if err != nil {
		return fail("connect to broker", err)
	}
	defer client.Close()

	err = client.ConsumeEvents(ctx, func(m *amqp.EventMessage) error {
		printEvent(os.Stdout, m.Event)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fail("consume events", err)
	}
	return subcommands.ExitSuccess
}

func printEvent(w io.Writer, e core.Event) {
	at := e.Timestamp.Local().Format("2006-01-02 15:04:05")
	switch e.Type {
	case core.EventTransactionRecorded:
		if t := e.Transaction; t != nil {
			fmt.Fprintf(w, "%s  v%d  %s %s for %s\n", at, e.Version, t.Type, core.FormatCurrency(t.Amount), t.CustomerID)
			return
		}
	case core.EventLedgerImported:
		fmt.Fprintf(w, "%s  v%d  imported %d customers, %d transactions\n", at, e.Version, e.Customers, e.Transactions)
		return
	}
	fmt.Fprintf(w, "%s  v%d  %s %s\n", at, e.Version, e.Type, e.CustomerID)
}
