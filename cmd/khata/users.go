package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"khata/internal/core"
)

type usersCmd struct{}

func (*usersCmd) Name() string     { return "users" }
func (*usersCmd) Synopsis() string { return "list the people who record transactions" }
func (*usersCmd) Usage() string {
	return `khata users

  Lists users; the current one is marked with '*'.
`
}
func (*usersCmd) SetFlags(*flag.FlagSet) {}

func (c *usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	current, _ := s.store.CurrentUser()
	w := newTable(os.Stdout)
	fmt.Fprintln(w, "\tID\tNAME")
	for _, u := range s.store.Users() {
		mark := ""
		if u.ID == current.ID {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", mark, u.ID, core.TitleCase(u.Name))
	}
	if err := w.Flush(); err != nil {
		return fail("print users", err)
	}
	return subcommands.ExitSuccess
}

type switchUserCmd struct{}

func (*switchUserCmd) Name() string     { return "switch-user" }
func (*switchUserCmd) Synopsis() string { return "make a user the one stamped on new transactions" }
func (*switchUserCmd) Usage() string {
	return `khata switch-user <user-id>
`
}
func (*switchUserCmd) SetFlags(*flag.FlagSet) {}

func (c *switchUserCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "switch-user requires exactly one user id")
		return subcommands.ExitUsageError
	}
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	u, err := s.store.SwitchUser(ctx, core.ID(f.Arg(0)))
	if err != nil {
		return fail("switch user", err)
	}
	fmt.Printf("Current user is now %s\n", core.TitleCase(u.Name))
	return subcommands.ExitSuccess
}
