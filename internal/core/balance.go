package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownCustomer is shown for transactions whose customer no longer exists.
const UnknownCustomer = "N/A"

// BalanceStatus labels a balance from the ledger owner's point of view.
type BalanceStatus string

const (
	Receivable BalanceStatus = "Receivable"
	Advance    BalanceStatus = "Advance"
	Settled    BalanceStatus = "Settled"
)

type (
	// CashFlow totals money received (payments) and given out (credits).
	CashFlow struct {
		CashIn  decimal.Decimal `json:"cashIn"`
		CashOut decimal.Decimal `json:"cashOut"`
	}

	// RecentEntry is a transaction joined with its customer's display name.
	RecentEntry struct {
		Transaction
		CustomerName string `json:"customerName"`
	}

	// Debtor is a customer who owes money, with the date they were last active.
	Debtor struct {
		Customer     Customer        `json:"customer"`
		Balance      decimal.Decimal `json:"balance"`
		LastActivity time.Time       `json:"lastActivity"`
	}
)

// BalanceOf folds the customer's transactions: payments add, credits subtract.
// A negative result means the customer owes the ledger owner.
func BalanceOf(customerID ID, txs []Transaction) decimal.Decimal {
	bal := decimal.Zero
	for _, t := range txs {
		if t.CustomerID == customerID {
			bal = bal.Add(t.Signed())
		}
	}
	return bal
}

func StatusOf(balance decimal.Decimal) BalanceStatus {
	switch balance.Sign() {
	case -1:
		return Receivable
	case 1:
		return Advance
	default:
		return Settled
	}
}

// TotalReceivable sums what every debtor owes.
func TotalReceivable(customers []Customer, txs []Transaction) decimal.Decimal {
	balances := balancesByCustomer(txs)
	total := decimal.Zero
	for _, c := range customers {
		if b := balances[c.ID]; b.Sign() < 0 {
			total = total.Add(b.Abs())
		}
	}
	return total
}

// SumCashFlow totals transactions dated at or after since.
func SumCashFlow(txs []Transaction, since time.Time) CashFlow {
	cf := CashFlow{CashIn: decimal.Zero, CashOut: decimal.Zero}
	for _, t := range txs {
		if t.Date.Before(since) {
			continue
		}
		switch t.Type {
		case Payment:
			cf.CashIn = cf.CashIn.Add(t.Amount)
		case Credit:
			cf.CashOut = cf.CashOut.Add(t.Amount)
		}
	}
	return cf
}

// RecentTransactions returns up to limit transactions, newest first. Equal
// timestamps keep their recorded order. A limit <= 0 returns everything.
func RecentTransactions(txs []Transaction, customers []Customer, limit int) []RecentEntry {
	names := make(map[ID]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	out := make([]RecentEntry, 0, len(txs))
	for _, t := range txs {
		name, ok := names[t.CustomerID]
		if !ok {
			name = UnknownCustomer
		}
		out = append(out, RecentEntry{Transaction: t, CustomerName: name})
	}
	slices.SortStableFunc(out, func(a, b RecentEntry) int {
		return b.Date.Compare(a.Date)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// OldestOutstandingDebtors lists customers with a negative balance, the one
// inactive for longest first. Ties are broken by customer id.
func OldestOutstandingDebtors(customers []Customer, txs []Transaction, limit int) []Debtor {
	balances := balancesByCustomer(txs)
	last := make(map[ID]time.Time, len(customers))
	for _, t := range txs {
		if t.Date.After(last[t.CustomerID]) {
			last[t.CustomerID] = t.Date
		}
	}

	var out []Debtor
	for _, c := range customers {
		b := balances[c.ID]
		if b.Sign() >= 0 {
			continue
		}
		seen, ok := last[c.ID]
		if !ok || seen.Before(Epoch) {
			seen = Epoch
		}
		out = append(out, Debtor{Customer: c, Balance: b, LastActivity: seen})
	}
	slices.SortFunc(out, func(a, b Debtor) int {
		if c := a.LastActivity.Compare(b.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.Customer.ID, b.Customer.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DaysSince returns whole days elapsed since the debtor's last activity.
func (d Debtor) DaysSince(now time.Time) int {
	return int(now.Sub(d.LastActivity) / (24 * time.Hour))
}

// CustomerHistory returns the customer's transactions, newest recorded first.
func CustomerHistory(customerID ID, txs []Transaction) []Transaction {
	var out []Transaction
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].CustomerID == customerID {
			out = append(out, txs[i])
		}
	}
	return out
}

func balancesByCustomer(txs []Transaction) map[ID]decimal.Decimal {
	m := make(map[ID]decimal.Decimal)
	for _, t := range txs {
		m[t.CustomerID] = m[t.CustomerID].Add(t.Signed())
	}
	return m
}
