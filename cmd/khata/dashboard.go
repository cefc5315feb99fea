package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"khata/internal/core"
)

type dashboardCmd struct {
	filter string
}

func (*dashboardCmd) Name() string     { return "dashboard" }
func (*dashboardCmd) Synopsis() string { return "show cash flow, recent activity and oldest debtors" }
func (*dashboardCmd) Usage() string {
	return `khata dashboard [-filter 30d|3m|6m|1y|all]
`
}

func (c *dashboardCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.filter, "filter", string(core.DefaultWindow), "cash flow window")
}

func (c *dashboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	window, err := core.ParseWindow(c.filter)
	if err != nil {
		return fail("dashboard", err)
	}
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	now := s.store.Now()
	flow := s.store.CashFlow(window)
	fmt.Printf("Cash flow (%s)\n", window)
	fmt.Printf("  In:  %s\n", core.FormatCurrency(flow.CashIn))
	fmt.Printf("  Out: %s\n", core.FormatCurrency(flow.CashOut))
	fmt.Printf("Total receivable: %s\n\n", core.FormatCurrency(s.store.TotalReceivable()))

	w := newTable(os.Stdout)
	fmt.Fprintln(w, "RECENT\tCUSTOMER\tTYPE\tAMOUNT")
	for _, e := range s.store.Recent(s.cfg.RecentLimit) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", dateOnly(e.Date), core.TitleCase(e.CustomerName), e.Type, core.FormatCurrency(e.Amount))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DEBTOR\tOWES\tLAST ACTIVE\t")
	for _, d := range s.store.OldestDebtors(s.cfg.DebtorsLimit) {
		fmt.Fprintf(w, "%s\t%s\t%d days ago\t\n", core.TitleCase(d.Customer.Name), core.FormatCurrency(d.Balance.Abs()), d.DaysSince(now))
	}
	if err := w.Flush(); err != nil {
		return fail("print dashboard", err)
	}
	return subcommands.ExitSuccess
}
