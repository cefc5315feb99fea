package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

func (s *Store) Users() []core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Users)
}

func (s *Store) CurrentUser() (core.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Session.CurrentUser == nil {
		return core.User{}, false
	}
	return *s.state.Session.CurrentUser, true
}

// Customers returns the customers in insertion order.
func (s *Store) Customers() []core.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Customers)
}

func (s *Store) Customer(id core.ID) (core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.FindCustomer(id)
	if !ok {
		return core.Customer{}, fmt.Errorf("customer %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

// SelectedCustomer returns the customer picked with SelectCustomer, if any.
func (s *Store) SelectedCustomer() (core.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Session.SelectedCustomerID == "" {
		return core.Customer{}, false
	}
	return s.state.FindCustomer(s.state.Session.SelectedCustomerID)
}

func (s *Store) DashboardFilter() core.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Session.DashboardFilter
}

func (s *Store) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Transactions)
}

func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Categories)
}

// Balance is zero for unknown customers.
func (s *Store) Balance(id core.ID) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.BalanceOf(id, s.state.Transactions)
}

// CashFlow sums the window's transactions. An empty window means the
// session's dashboard filter.
func (s *Store) CashFlow(w core.Window) core.CashFlow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w == "" {
		w = s.state.Session.DashboardFilter
	}
	return core.SumCashFlow(s.state.Transactions, w.Threshold(s.now()))
}

func (s *Store) Recent(limit int) []core.RecentEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.RecentTransactions(s.state.Transactions, s.state.Customers, limit)
}

func (s *Store) OldestDebtors(limit int) []core.Debtor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.OldestOutstandingDebtors(s.state.Customers, s.state.Transactions, limit)
}

func (s *Store) TotalReceivable() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.TotalReceivable(s.state.Customers, s.state.Transactions)
}

// History lists a customer's transactions newest first.
func (s *Store) History(id core.ID) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.FindCustomer(id); !ok {
		return nil, fmt.Errorf("customer %s: %w", id, core.ErrNotFound)
	}
	return core.CustomerHistory(id, s.state.Transactions), nil
}

// Version increases with every mutation; caches key on it.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Now is the store's clock.
func (s *Store) Now() time.Time {
	return s.now()
}
