package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"khata/internal/core"
)

type customersCmd struct{}

func (*customersCmd) Name() string     { return "customers" }
func (*customersCmd) Synopsis() string { return "list customers with their balances" }
func (*customersCmd) Usage() string {
	return `khata customers
`
}
func (*customersCmd) SetFlags(*flag.FlagSet) {}

func (c *customersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	w := newTable(os.Stdout)
	fmt.Fprintln(w, "ID\tNAME\tMOBILE\tBALANCE")
	for _, cust := range s.store.Customers() {
		bal := s.store.Balance(cust.ID)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cust.ID, core.TitleCase(cust.Name), cust.Mobile,
			balanceLine(core.StatusOf(bal), core.FormatCurrency(bal.Abs())))
	}
	fmt.Fprintf(w, "\t\tTotal receivable\t%s\n", core.FormatCurrency(s.store.TotalReceivable()))
	if err := w.Flush(); err != nil {
		return fail("print customers", err)
	}
	return subcommands.ExitSuccess
}

type addCustomerCmd struct {
	mobile string
	nic    string
}

func (*addCustomerCmd) Name() string     { return "add-customer" }
func (*addCustomerCmd) Synopsis() string { return "add a customer to the ledger" }
func (*addCustomerCmd) Usage() string {
	return `khata add-customer [-mobile <number>] [-nic <number>] <name>
`
}

func (c *addCustomerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.mobile, "mobile", "", "mobile number")
	f.StringVar(&c.nic, "nic", "", "national identity card number")
}

func (c *addCustomerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "add-customer requires exactly one name; quote names with spaces")
		return subcommands.ExitUsageError
	}
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	cust, err := s.store.AddCustomer(ctx, f.Arg(0), c.mobile, c.nic)
	if err != nil {
		return fail("add customer", err)
	}
	fmt.Printf("Added %s (%s)\n", core.TitleCase(cust.Name), cust.ID)
	return subcommands.ExitSuccess
}

type removeCustomerCmd struct{}

func (*removeCustomerCmd) Name() string { return "remove-customer" }
func (*removeCustomerCmd) Synopsis() string {
	return "remove a customer and all their transactions"
}
func (*removeCustomerCmd) Usage() string {
	return `khata remove-customer <customer-id>
`
}
func (*removeCustomerCmd) SetFlags(*flag.FlagSet) {}

func (c *removeCustomerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "remove-customer requires exactly one customer id")
		return subcommands.ExitUsageError
	}
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	if err := s.store.RemoveCustomer(ctx, core.ID(f.Arg(0))); err != nil {
		return fail("remove customer", err)
	}
	fmt.Printf("Removed %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}

type showCmd struct{}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show a customer's balance and history" }
func (*showCmd) Usage() string {
	return `khata show <customer-id>
`
}
func (*showCmd) SetFlags(*flag.FlagSet) {}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "show requires exactly one customer id")
		return subcommands.ExitUsageError
	}
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	id := core.ID(f.Arg(0))
	cust, err := s.store.Customer(id)
	if err != nil {
		return fail("show customer", err)
	}
	history, err := s.store.History(id)
	if err != nil {
		return fail("show customer", err)
	}
	users := make(map[core.ID]string)
	for _, u := range s.store.Users() {
		users[u.ID] = core.TitleCase(u.Name)
	}

	bal := s.store.Balance(id)
	fmt.Printf("%s\n", core.TitleCase(cust.Name))
	if cust.Mobile != "" {
		fmt.Printf("Mobile: %s\n", cust.Mobile)
	}
	if cust.NIC != "" {
		fmt.Printf("NIC:    %s\n", cust.NIC)
	}
	fmt.Printf("Balance: %s\n\n", balanceLine(core.StatusOf(bal), core.FormatCurrency(bal.Abs())))

	w := newTable(os.Stdout)
	fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tCATEGORY\tBY\tNOTE")
	for _, t := range history {
		by, ok := users[t.UserID]
		if !ok {
			by = string(t.UserID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			dateOnly(t.Date), t.Type, core.FormatCurrency(t.Amount), t.Category, by, t.Note)
	}
	if err := w.Flush(); err != nil {
		return fail("print history", err)
	}
	return subcommands.ExitSuccess
}
