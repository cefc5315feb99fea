// Package ledger owns the in-memory khata state. It loads once from a
// storage adapter, applies mutations under a mutex and writes every change
// straight back.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/reconcile"
	"khata/internal/storage"
)

// Publisher receives an event after every successful mutation.
type Publisher interface {
	Publish(ctx context.Context, e core.Event) error
}

type Store struct {
	mu      sync.RWMutex
	storage storage.Storage
	state   core.State
	version int64

	now       func() time.Time
	newID     reconcile.IDFunc
	publisher Publisher
	logger    *log.Logger
}

type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDFunc(f reconcile.IDFunc) Option {
	return func(s *Store) { s.newID = f }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// NewID returns a random UUID.
func NewID() core.ID {
	return core.ID(uuid.NewString())
}

// Load builds a store from whatever st holds. Missing keys fall back to the
// defaults; a key that does not decode fails the load instead of being
// overwritten later. Legacy nested transactions are flattened and saved.
func Load(ctx context.Context, st storage.Storage, opts ...Option) (*Store, error) {
	s := &Store{
		storage: st,
		now:     time.Now,
		newID:   NewID,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(s)
	}

	state := core.NewState()
	if err := load(ctx, st, storage.KeyUsers, &state.Users); err != nil {
		return nil, err
	}
	if len(state.Users) == 0 {
		state.Users = core.DefaultUsers()
	}
	if err := load(ctx, st, storage.KeyCustomers, &state.Customers); err != nil {
		return nil, err
	}
	if err := load(ctx, st, storage.KeyTransactions, &state.Transactions); err != nil {
		return nil, err
	}
	if err := load(ctx, st, storage.KeyCategories, &state.Categories); err != nil {
		return nil, err
	}
	var current *core.User
	if err := load(ctx, st, storage.KeyCurrentUser, &current); err != nil {
		return nil, err
	}
	state.Session.CurrentUser = current
	if state.Customers == nil {
		state.Customers = []core.Customer{}
	}
	if state.Transactions == nil {
		state.Transactions = []core.Transaction{}
	}
	if state.Categories == nil {
		state.Categories = core.DefaultCategories()
	}
	state.EnsureCurrentUser()
	s.state = state

	if n := reconcile.MigrateLegacy(&s.state, s.newID); n > 0 {
		s.logger.InfoContext(ctx, "Migrated legacy nested transactions",
			log.FieldOperation, log.OpMigrate, "count", n)
		if err := s.persist(ctx, storage.KeyCustomers, storage.KeyTransactions); err != nil {
			// The flattened state is kept in memory and saved with the next change.
			log.LogError(ctx, s.logger, "Failed to save migrated ledger", err, log.OpMigrate, nil)
		}
	}

	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOperation, log.OpLoad,
		"customers", len(s.state.Customers),
		"transactions", len(s.state.Transactions))
	return s, nil
}

func load(ctx context.Context, st storage.Storage, key string, dst any) error {
	data, found, err := st.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !found || len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrInvalidFormat, key, err)
	}
	return nil
}

// persist writes the given keys from the current state. Callers hold mu.
func (s *Store) persist(ctx context.Context, keys ...string) error {
	values := make(map[string][]byte, len(keys))
	for _, k := range keys {
		var v any
		switch k {
		case storage.KeyUsers:
			v = s.state.Users
		case storage.KeyCustomers:
			v = s.state.Customers
		case storage.KeyTransactions:
			v = s.state.Transactions
		case storage.KeyCategories:
			v = s.state.Categories
		case storage.KeyCurrentUser:
			v = s.state.Session.CurrentUser
		default:
			return fmt.Errorf("unknown storage key %q", k)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %w", core.ErrPersistence, k, err)
		}
		values[k] = b
	}
	if err := storage.SaveAll(ctx, s.storage, values); err != nil {
		return fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return nil
}

// commit bumps the version and persists keys. The mutation stays applied
// even when saving fails. Callers hold mu.
func (s *Store) commit(ctx context.Context, keys ...string) error {
	s.version++
	if err := s.persist(ctx, keys...); err != nil {
		log.LogError(ctx, s.logger, "Failed to persist ledger", err, log.OpPersist, nil)
		return err
	}
	return nil
}

func (s *Store) publish(ctx context.Context, e core.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.LogError(ctx, s.logger, "Failed to publish ledger event", err, log.OpPublish,
			log.NewFields().WithComponent(log.ComponentLedger))
	}
}

func (s *Store) event(t core.EventType) core.Event {
	return core.Event{Type: t, Version: s.version, Timestamp: s.now().UTC()}
}

// AddCustomer creates a customer. Names are trimmed and must not be empty;
// duplicate names are allowed.
func (s *Store) AddCustomer(ctx context.Context, name, mobile, nic string) (core.Customer, error) {
	c := core.Customer{
		Name:   strings.TrimSpace(name),
		Mobile: strings.TrimSpace(mobile),
		NIC:    strings.TrimSpace(nic),
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}

	s.mu.Lock()
	c.ID = s.newID()
	c.CreatedAt = s.now().UTC()
	s.state.Customers = append(s.state.Customers, c)
	err := s.commit(ctx, storage.KeyCustomers)
	e := s.event(core.EventCustomerAdded)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Customer added",
		log.FieldOperation, log.OpCreate, log.FieldCustomerID, c.ID.String())
	e.CustomerID = c.ID
	s.publish(ctx, e)
	return c, err
}

// AddTransaction records a credit or payment against an existing customer.
func (s *Store) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := in.Type.Validate(); err != nil {
		return core.Transaction{}, err
	}
	category := strings.TrimSpace(in.Category)

	s.mu.Lock()
	if _, ok := s.state.FindCustomer(in.CustomerID); !ok {
		s.mu.Unlock()
		return core.Transaction{}, fmt.Errorf("customer %s: %w", in.CustomerID, core.ErrNotFound)
	}

	t := core.Transaction{
		ID:         s.newID(),
		CustomerID: in.CustomerID,
		Date:       in.Date.UTC(),
		Amount:     amount,
		Type:       in.Type,
		Note:       strings.TrimSpace(in.Note),
		Category:   category,
	}
	if in.Date.IsZero() {
		t.Date = s.now().UTC()
	}
	if t.Category == "" {
		t.Category = core.DefaultCategory
	}
	if cu := s.state.Session.CurrentUser; cu != nil {
		t.UserID = cu.ID
	}

	s.state.Transactions = append(s.state.Transactions, t)
	keys := []string{storage.KeyTransactions}
	if s.state.AddCategory(category) {
		keys = append(keys, storage.KeyCategories)
	}
	err = s.commit(ctx, keys...)
	e := s.event(core.EventTransactionRecorded)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction recorded", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(t.ID.String(), t.CustomerID.String(), string(t.Type), t.Amount.String(), t.Category).
		ToSlice()...)
	e.CustomerID = t.CustomerID
	e.Transaction = &t
	s.publish(ctx, e)
	return t, err
}

// RemoveCustomer deletes a customer together with its transactions.
func (s *Store) RemoveCustomer(ctx context.Context, id core.ID) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.state.Customers, func(c core.Customer) bool { return c.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("customer %s: %w", id, core.ErrNotFound)
	}
	s.state.Customers = slices.Delete(s.state.Customers, i, i+1)
	s.state.Transactions = slices.DeleteFunc(s.state.Transactions, func(t core.Transaction) bool {
		return t.CustomerID == id
	})
	if s.state.Session.SelectedCustomerID == id {
		s.state.Session.SelectedCustomerID = ""
	}
	err := s.commit(ctx, storage.KeyCustomers, storage.KeyTransactions)
	e := s.event(core.EventCustomerRemoved)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Customer removed",
		log.FieldOperation, log.OpDelete, log.FieldCustomerID, id.String())
	e.CustomerID = id
	s.publish(ctx, e)
	return err
}

// SwitchUser makes id the user stamped on new transactions. Only the
// current-user key is saved.
func (s *Store) SwitchUser(ctx context.Context, id core.ID) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.state.FindUser(id)
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	s.state.Session.CurrentUser = &u
	err := s.commit(ctx, storage.KeyCurrentUser)

	s.logger.InfoContext(ctx, "Current user switched",
		log.FieldOperation, log.OpSwitch, log.FieldUserID, id.String())
	return u, err
}

// SelectCustomer sets the customer shown in the detail view. An empty id
// clears the selection.
func (s *Store) SelectCustomer(id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.state.FindCustomer(id); !ok {
			return fmt.Errorf("customer %s: %w", id, core.ErrNotFound)
		}
	}
	s.state.Session.SelectedCustomerID = id
	return nil
}

func (s *Store) SetDashboardFilter(w core.Window) error {
	w, err := core.ParseWindow(string(w))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Session.DashboardFilter = w
	s.mu.Unlock()
	return nil
}

// Import parses data as an import document and applies it. Nothing changes
// when the document is invalid.
func (s *Store) Import(ctx context.Context, data []byte) (reconcile.Result, error) {
	doc, err := reconcile.ParseDocument(data)
	if err != nil {
		return reconcile.Result{}, err
	}
	return s.ImportDocument(ctx, doc)
}

func (s *Store) ImportDocument(ctx context.Context, doc reconcile.Document) (reconcile.Result, error) {
	if err := doc.Validate(); err != nil {
		return reconcile.Result{}, err
	}

	s.mu.Lock()
	next, res := reconcile.Apply(s.state, doc, s.newID)
	s.state = next
	err := s.commit(ctx, storage.Keys()...)
	e := s.event(core.EventLedgerImported)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger imported",
		log.FieldOperation, log.OpImport,
		"customers", res.Customers,
		"transactions", res.Transactions,
		"migrated", res.Migrated)
	e.Customers = res.Customers
	e.Transactions = res.Transactions
	s.publish(ctx, e)
	return res, err
}

// ExportFilename is the suggested name of a backup taken at now.
func ExportFilename(now time.Time) string {
	return "khata_backup_" + now.Format("2006-01-02") + ".json"
}

// Export returns a full snapshot and the filename to save it under.
func (s *Store) Export(now time.Time) (string, core.Document) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ExportFilename(now), s.state.Document()
}
