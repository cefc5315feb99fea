package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"khata/internal/core"
)

// txCmd records a credit (goods or cash given) or a payment (money
// received), depending on txType.
type txCmd struct {
	txType   core.TxType
	note     string
	category string
	date     string
}

func (c *txCmd) Name() string { return string(c.txType) }
func (c *txCmd) Synopsis() string {
	if c.txType == core.Credit {
		return "record goods or cash given to a customer"
	}
	return "record money received from a customer"
}
func (c *txCmd) Usage() string {
	return fmt.Sprintf(`khata %s [-note <text>] [-category <name>] [-date YYYY-MM-DD] <customer-id> <amount>
`, c.txType)
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.note, "note", "", "free-text note")
	f.StringVar(&c.category, "category", "", "category, defaults to "+core.DefaultCategory)
	f.StringVar(&c.date, "date", "", "transaction date, defaults to now")
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "%s requires a customer id and an amount\n", c.txType)
		return subcommands.ExitUsageError
	}
	var date time.Time
	if c.date != "" {
		d, err := time.ParseInLocation("2006-01-02", c.date, time.Local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date %q: expected YYYY-MM-DD\n", c.date)
			return subcommands.ExitUsageError
		}
		date = d
	}

	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	tx, err := s.store.AddTransaction(ctx, core.TransactionInput{
		CustomerID: core.ID(f.Arg(0)),
		Amount:     f.Arg(1),
		Type:       c.txType,
		Note:       c.note,
		Category:   c.category,
		Date:       date,
	})
	if err != nil {
		return fail("record "+string(c.txType), err)
	}
	bal := s.store.Balance(tx.CustomerID)
	fmt.Printf("Recorded %s of %s. Balance: %s\n", tx.Type, core.FormatCurrency(tx.Amount),
		balanceLine(core.StatusOf(bal), core.FormatCurrency(bal.Abs())))
	return subcommands.ExitSuccess
}
