// Command khata keeps a shop's customer credit ledger: who owes what, who
// paid what, and how cash moved over time.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"khata/internal/cli"
	"khata/internal/core"
)

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func register(c *subcommands.Commander) {
	c.Register(&serveCmd{}, "server")
	c.Register(&eventsCmd{}, "server")

	c.Register(&usersCmd{}, "users")
	c.Register(&switchUserCmd{}, "users")

	c.Register(&customersCmd{}, "customers")
	c.Register(&addCustomerCmd{}, "customers")
	c.Register(&removeCustomerCmd{}, "customers")
	c.Register(&showCmd{}, "customers")

	c.Register(&txCmd{txType: core.Credit}, "transactions")
	c.Register(&txCmd{txType: core.Payment}, "transactions")

	c.Register(&dashboardCmd{}, "reports")

	c.Register(&exportCmd{}, "backup")
	c.Register(&importCmd{}, "backup")
}
