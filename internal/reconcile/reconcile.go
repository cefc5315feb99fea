// Package reconcile normalizes ledger data into the flat transaction shape.
//
// Older ledgers nested each customer's transactions inside the customer
// record. Both startup and every import funnel through this package so the
// migration rules live in one place.
package reconcile

import (
	"encoding/json"
	"fmt"

	"khata/internal/core"
)

// Document is an import payload. Customers is nil when the field is absent
// or null, which makes the document invalid.
type Document struct {
	Customers    *[]core.Customer   `json:"customers"`
	Transactions []core.Transaction `json:"transactions"`
	Users        []core.User        `json:"users"`
	Categories   []string           `json:"categories"`
}

// Result describes what an import changed.
type Result struct {
	Customers    int  `json:"customers"`
	Transactions int  `json:"transactions"`
	Migrated     int  `json:"migrated"`
	UsersKept    bool `json:"usersKept"`
}

// IDFunc generates ids for legacy transactions that never had one.
type IDFunc func() core.ID

// ParseDocument decodes an import payload. Malformed JSON, a missing
// customers field and any transaction that fails validation all yield
// core.ErrInvalidFormat.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", core.ErrInvalidFormat, err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks the customers field and every transaction, flat or nested
// in a legacy customer record. One bad transaction rejects the document.
func (d Document) Validate() error {
	if d.Customers == nil {
		return fmt.Errorf("%w: missing customers", core.ErrInvalidFormat)
	}
	for i, t := range d.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: transaction %d (%s): %v", core.ErrInvalidFormat, i, t.ID, err)
		}
	}
	for _, c := range *d.Customers {
		for i, t := range c.Legacy {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%w: customer %s transaction %d (%s): %v", core.ErrInvalidFormat, c.ID, i, t.ID, err)
			}
		}
	}
	return nil
}

// FromExport turns an export snapshot back into an import document.
func FromExport(d core.Document) Document {
	customers := d.Customers
	if customers == nil {
		customers = []core.Customer{}
	}
	return Document{
		Customers:    &customers,
		Transactions: d.Transactions,
		Users:        d.Users,
		Categories:   d.Categories,
	}
}

// MigrateLegacy moves transactions embedded in customers into the flat list.
// It only moves them while the flat list is empty; otherwise the nested
// lists are dropped. It returns how many transactions it moved. Running it
// again on flattened data changes nothing.
func MigrateLegacy(s *core.State, newID IDFunc) int {
	if len(s.Transactions) > 0 {
		for i := range s.Customers {
			s.Customers[i].Legacy = nil
		}
		return 0
	}
	moved := 0
	for i := range s.Customers {
		c := &s.Customers[i]
		if c.Legacy == nil {
			continue
		}
		for _, t := range c.Legacy {
			t.CustomerID = c.ID
			if t.ID == "" && newID != nil {
				t.ID = newID()
			}
			s.Transactions = append(s.Transactions, t)
			moved++
		}
		c.Legacy = nil
	}
	return moved
}

// Apply returns a new state with the document merged into base. base itself
// is never modified, so a caller can discard the result on a later failure.
//
// Customers and transactions are replaced wholesale. Users are replaced only
// by a non-empty list. Categories are merged in. The legacy migration runs
// once more in case the document used the nested shape.
func Apply(base core.State, doc Document, newID IDFunc) (core.State, Result) {
	next := base.Clone()

	next.Customers = make([]core.Customer, 0)
	if doc.Customers != nil {
		next.Customers = append(next.Customers, *doc.Customers...)
	}
	next.Transactions = append(make([]core.Transaction, 0, len(doc.Transactions)), doc.Transactions...)

	res := Result{UsersKept: true}
	if len(doc.Users) > 0 {
		next.Users = append([]core.User(nil), doc.Users...)
		res.UsersKept = false
	}
	for _, c := range doc.Categories {
		next.AddCategory(c)
	}
	if next.Session.SelectedCustomerID != "" {
		if _, ok := next.FindCustomer(next.Session.SelectedCustomerID); !ok {
			next.Session.SelectedCustomerID = ""
		}
	}
	next.EnsureCurrentUser()

	res.Migrated = MigrateLegacy(&next, newID)
	res.Customers = len(next.Customers)
	res.Transactions = len(next.Transactions)
	return next, res
}
