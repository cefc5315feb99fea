package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/reconcile"
	"khata/internal/storage"
	"khata/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

// recordingStorage wraps the memory store, remembers which keys were
// written and can be told to fail.
type recordingStorage struct {
	*memory.Store
	mu    sync.Mutex
	saved []string
	fail  bool
}

func (r *recordingStorage) Save(ctx context.Context, key string, value []byte) error {
	return r.SaveAll(ctx, map[string][]byte{key: value})
}

func (r *recordingStorage) SaveAll(ctx context.Context, values map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("quota exceeded")
	}
	for k := range values {
		r.saved = append(r.saved, k)
	}
	return r.Store.SaveAll(ctx, values)
}

func (r *recordingStorage) reset() {
	r.mu.Lock()
	r.saved = nil
	r.mu.Unlock()
}

type capturePublisher struct {
	events []core.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e core.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func sequentialIDs() func() core.ID {
	n := 0
	return func() core.ID {
		n++
		return core.ID(fmt.Sprintf("id-%d", n))
	}
}

func newTestStore(t *testing.T, st storage.Storage, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(sequentialIDs()),
		WithLogger(log.Discard()),
	}, opts...)
	s, err := Load(context.Background(), st, opts...)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestLoadDefaults(t *testing.T) {
	s := newTestStore(t, memory.New())

	users := s.Users()
	if len(users) != 2 || users[0].Name != "Masroor Anwar" || users[1].Name != "Mansoor Anwar" {
		t.Fatalf("unexpected default users: %+v", users)
	}
	cu, ok := s.CurrentUser()
	if !ok || cu.ID != "1" {
		t.Fatalf("expected first user as current, got %+v", cu)
	}
	if !slices.Equal(s.Categories(), core.DefaultCategories()) {
		t.Fatalf("unexpected categories: %v", s.Categories())
	}
	if len(s.Customers()) != 0 || len(s.Transactions()) != 0 {
		t.Fatalf("expected empty ledger")
	}
	if s.DashboardFilter() != core.DefaultWindow {
		t.Fatalf("unexpected filter %q", s.DashboardFilter())
	}
}

func TestLoadRejectsCorruptKey(t *testing.T) {
	st := memory.New()
	_ = st.Save(context.Background(), storage.KeyTransactions, []byte(`{not json`))

	_, err := Load(context.Background(), st, WithLogger(log.Discard()))
	if !errors.Is(err, core.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestLoadMigratesNestedTransactions(t *testing.T) {
	st := &recordingStorage{Store: memory.New()}
	_ = st.Store.Save(context.Background(), storage.KeyCustomers, []byte(`[
		{"id":"a","name":"Ali","createdAt":"2024-01-01T00:00:00Z","transactions":[
			{"id":"t1","date":"2024-01-02T00:00:00Z","amount":500,"type":"credit","category":"Goods","userId":1},
			{"id":"t2","date":"2024-01-03T00:00:00Z","amount":200,"type":"payment","category":"Payment","userId":1}
		]}
	]`))
	_ = st.Store.Save(context.Background(), storage.KeyCurrentUser, []byte(`{"id":2,"name":"Mansoor Anwar"}`))

	s := newTestStore(t, st)

	if got := len(s.Transactions()); got != 2 {
		t.Fatalf("expected 2 flattened transactions, got %d", got)
	}
	if got := s.Balance("a"); !got.Equal(decimal.NewFromInt(-300)) {
		t.Fatalf("expected -300, got %s", got)
	}
	if cu, _ := s.CurrentUser(); cu.ID != "2" {
		t.Fatalf("numeric current user id not restored: %+v", cu)
	}
	if !slices.Contains(st.saved, storage.KeyTransactions) {
		t.Fatalf("migration was not persisted, saved=%v", st.saved)
	}

	raw, _, _ := st.Load(context.Background(), storage.KeyCustomers)
	var stored []map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("decode stored customers: %v", err)
	}
	if _, nested := stored[0]["transactions"]; nested {
		t.Fatalf("stored customer still carries nested transactions")
	}
}

func TestAddCustomer(t *testing.T) {
	pub := &capturePublisher{}
	s := newTestStore(t, memory.New(), WithPublisher(pub))
	ctx := context.Background()

	c, err := s.AddCustomer(ctx, "  Ali Khan ", "0300", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.Name != "Ali Khan" || c.ID == "" || !c.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected customer %+v", c)
	}
	if _, err := s.AddCustomer(ctx, "Ali Khan", "", ""); err != nil {
		t.Fatalf("duplicate names are allowed: %v", err)
	}
	if len(s.Customers()) != 2 {
		t.Fatalf("expected 2 customers")
	}
	if len(pub.events) != 2 || pub.events[0].Type != core.EventCustomerAdded || pub.events[0].CustomerID != c.ID {
		t.Fatalf("unexpected events %+v", pub.events)
	}

	for _, name := range []string{"", "   "} {
		if _, err := s.AddCustomer(ctx, name, "", ""); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("name %q: expected ErrValidation, got %v", name, err)
		}
	}
	if len(s.Customers()) != 2 {
		t.Fatalf("rejected customer was stored")
	}
}

func TestAddTransaction(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	c, _ := s.AddCustomer(ctx, "Ali", "", "")

	tx, err := s.AddTransaction(ctx, core.TransactionInput{CustomerID: c.ID, Amount: "500", Type: core.Credit})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if tx.Category != core.DefaultCategory || tx.UserID != "1" || !tx.Date.Equal(fixedNow) {
		t.Fatalf("unexpected defaults %+v", tx)
	}
	if _, err := s.AddTransaction(ctx, core.TransactionInput{CustomerID: c.ID, Amount: "200", Type: core.Payment, Category: "Payment"}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if got := s.Balance(c.ID); !got.Equal(decimal.NewFromInt(-300)) {
		t.Fatalf("expected -300, got %s", got)
	}

	backdated := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	tx, err = s.AddTransaction(ctx, core.TransactionInput{CustomerID: c.ID, Amount: "12,5", Type: core.Credit, Category: "Repairs", Date: backdated})
	if err != nil {
		t.Fatalf("backdated: %v", err)
	}
	if !tx.Date.Equal(backdated) || !tx.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !slices.Contains(s.Categories(), "Repairs") {
		t.Fatalf("new category not remembered: %v", s.Categories())
	}
	if slices.Contains(s.Categories(), core.DefaultCategory) {
		t.Fatalf("default category should not be added to suggestions")
	}
}

func TestAddTransactionErrors(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	c, _ := s.AddCustomer(ctx, "Ali", "", "")

	cases := []struct {
		name string
		in   core.TransactionInput
		want error
	}{
		{"zero amount", core.TransactionInput{CustomerID: c.ID, Amount: "0", Type: core.Credit}, core.ErrValidation},
		{"negative amount", core.TransactionInput{CustomerID: c.ID, Amount: "-5", Type: core.Credit}, core.ErrInvalidAmount},
		{"not a number", core.TransactionInput{CustomerID: c.ID, Amount: "abc", Type: core.Payment}, core.ErrInvalidAmount},
		{"bad type", core.TransactionInput{CustomerID: c.ID, Amount: "5", Type: "gift"}, core.ErrInvalidType},
		{"unknown customer", core.TransactionInput{CustomerID: "missing", Amount: "5", Type: core.Credit}, core.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.AddTransaction(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n := len(s.Transactions()); n != 0 {
		t.Fatalf("rejected transactions were stored: %d", n)
	}
}

func TestRemoveCustomerCascades(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	a, _ := s.AddCustomer(ctx, "Ali", "", "")
	b, _ := s.AddCustomer(ctx, "Bilal", "", "")
	_, _ = s.AddTransaction(ctx, core.TransactionInput{CustomerID: a.ID, Amount: "100", Type: core.Credit})
	_, _ = s.AddTransaction(ctx, core.TransactionInput{CustomerID: b.ID, Amount: "50", Type: core.Credit})
	if err := s.SelectCustomer(a.ID); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := s.RemoveCustomer(ctx, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Customer(a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("customer still present")
	}
	txs := s.Transactions()
	if len(txs) != 1 || txs[0].CustomerID != b.ID {
		t.Fatalf("transactions not cascaded: %+v", txs)
	}
	if _, ok := s.SelectedCustomer(); ok {
		t.Fatalf("selection should be cleared")
	}
	if err := s.RemoveCustomer(ctx, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSwitchUserPersistsOnlyCurrentUser(t *testing.T) {
	st := &recordingStorage{Store: memory.New()}
	s := newTestStore(t, st)
	st.reset()

	u, err := s.SwitchUser(context.Background(), "2")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if u.Name != "Mansoor Anwar" {
		t.Fatalf("unexpected user %+v", u)
	}
	if !slices.Equal(st.saved, []string{storage.KeyCurrentUser}) {
		t.Fatalf("expected only the current user key to be saved, got %v", st.saved)
	}

	c, _ := s.AddCustomer(context.Background(), "Ali", "", "")
	tx, _ := s.AddTransaction(context.Background(), core.TransactionInput{CustomerID: c.ID, Amount: "1", Type: core.Credit})
	if tx.UserID != "2" {
		t.Fatalf("transaction not stamped with the switched user: %+v", tx)
	}

	if _, err := s.SwitchUser(context.Background(), "99"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if cu, _ := s.CurrentUser(); cu.ID != "2" {
		t.Fatalf("failed switch changed the current user")
	}
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	st := &recordingStorage{Store: memory.New()}
	s := newTestStore(t, st)
	st.fail = true

	c, err := s.AddCustomer(context.Background(), "Ali", "", "")
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if c.ID == "" {
		t.Fatalf("customer should still be returned")
	}
	if _, err := s.Customer(c.ID); err != nil {
		t.Fatalf("customer should remain in memory: %v", err)
	}
	if s.Version() != 1 {
		t.Fatalf("expected version 1, got %d", s.Version())
	}
}

func TestSessionSelections(t *testing.T) {
	s := newTestStore(t, memory.New())
	if err := s.SelectCustomer("nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetDashboardFilter(core.LastYear); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if s.DashboardFilter() != core.LastYear {
		t.Fatalf("filter not applied")
	}
	if err := s.SetDashboardFilter("2w"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestImport(t *testing.T) {
	pub := &capturePublisher{}
	s := newTestStore(t, memory.New(), WithPublisher(pub))
	ctx := context.Background()
	old, _ := s.AddCustomer(ctx, "Old", "", "")

	doc := []byte(`{
		"customers":[{"id":"c1","name":"Zara","createdAt":"2024-01-01T00:00:00Z","transactions":[
			{"id":"t1","date":"2024-03-01T00:00:00Z","amount":"700","type":"credit","category":"Goods","userId":"1"}
		]}],
		"categories":["Goods","Spare Parts"]
	}`)
	res, err := s.Import(ctx, doc)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Customers != 1 || res.Transactions != 1 || res.Migrated != 1 || !res.UsersKept {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := s.Customer(old.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("customers should be replaced")
	}
	if got := s.Balance("c1"); !got.Equal(decimal.NewFromInt(-700)) {
		t.Fatalf("expected -700, got %s", got)
	}
	if len(s.Users()) != 2 {
		t.Fatalf("users should be kept when the document has none")
	}
	if !slices.Contains(s.Categories(), "Spare Parts") {
		t.Fatalf("categories not merged: %v", s.Categories())
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != core.EventLedgerImported || last.Customers != 1 {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestImportInvalidLeavesStateUnchanged(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	c, _ := s.AddCustomer(ctx, "Ali", "", "")
	before := s.Version()

	for _, doc := range []string{
		`{`, `{"users":[]}`, `{"customers":null}`, `[]`,
		`{"customers":[{"id":"a","name":"A"}],"transactions":[{"customerId":"a","amount":100},{"customerId":"a","amount":-50,"type":"credit"}]}`,
		`{"customers":[{"id":"a","name":"A","transactions":[{"amount":0,"type":"payment"}]}]}`,
	} {
		if _, err := s.Import(ctx, []byte(doc)); !errors.Is(err, core.ErrInvalidFormat) {
			t.Fatalf("%s: expected ErrInvalidFormat, got %v", doc, err)
		}
	}
	if _, err := s.Customer(c.ID); err != nil {
		t.Fatalf("state changed by a rejected import")
	}
	if s.Version() != before {
		t.Fatalf("version changed by a rejected import")
	}
	if len(s.Transactions()) != 0 {
		t.Fatalf("rejected import added transactions: %+v", s.Transactions())
	}
}

func TestImportDocumentValidatesTransactions(t *testing.T) {
	s := newTestStore(t, memory.New())
	customers := []core.Customer{{ID: "a", Name: "A"}}
	doc := reconcile.Document{
		Customers:    &customers,
		Transactions: []core.Transaction{{ID: "t", CustomerID: "a", Amount: decimal.NewFromInt(100)}},
	}
	if _, err := s.ImportDocument(context.Background(), doc); !errors.Is(err, core.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if len(s.Customers()) != 0 {
		t.Fatalf("state changed by a rejected import")
	}
}

func TestExportRoundTrip(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	c, _ := s.AddCustomer(ctx, "Ali", "", "")
	_, _ = s.AddTransaction(ctx, core.TransactionInput{CustomerID: c.ID, Amount: "250", Type: core.Credit})

	name, doc := s.Export(fixedNow)
	if name != "khata_backup_2024-03-15.json" {
		t.Fatalf("unexpected filename %q", name)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	other := newTestStore(t, memory.New())
	if _, err := other.Import(ctx, data); err != nil {
		t.Fatalf("import export: %v", err)
	}
	if got := other.Balance(c.ID); !got.Equal(decimal.NewFromInt(-250)) {
		t.Fatalf("expected -250 after round trip, got %s", got)
	}
}

func TestDashboardQueries(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	a, _ := s.AddCustomer(ctx, "Ali", "", "")
	b, _ := s.AddCustomer(ctx, "Bilal", "", "")
	old := fixedNow.AddDate(0, -2, 0)
	_, _ = s.AddTransaction(ctx, core.TransactionInput{CustomerID: a.ID, Amount: "400", Type: core.Credit, Date: old})
	_, _ = s.AddTransaction(ctx, core.TransactionInput{CustomerID: b.ID, Amount: "100", Type: core.Credit})
	_, _ = s.AddTransaction(ctx, core.TransactionInput{CustomerID: b.ID, Amount: "30", Type: core.Payment})

	flow := s.CashFlow("")
	if !flow.CashOut.Equal(decimal.NewFromInt(100)) || !flow.CashIn.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected 30 day cash flow %+v", flow)
	}
	if flow := s.CashFlow(core.Last3Months); !flow.CashOut.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected 3 month cash out %s", flow.CashOut)
	}
	if !s.TotalReceivable().Equal(decimal.NewFromInt(470)) {
		t.Fatalf("unexpected total receivable %s", s.TotalReceivable())
	}
	debtors := s.OldestDebtors(5)
	if len(debtors) != 2 || debtors[0].Customer.ID != a.ID {
		t.Fatalf("unexpected debtors %+v", debtors)
	}
	if recent := s.Recent(2); len(recent) != 2 || recent[0].CustomerName != "Bilal" {
		t.Fatalf("unexpected recent %+v", recent)
	}
	hist, err := s.History(b.ID)
	if err != nil || len(hist) != 2 {
		t.Fatalf("unexpected history %v %v", hist, err)
	}
	if _, err := s.History("nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
