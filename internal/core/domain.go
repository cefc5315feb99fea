package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Credit  TxType = "credit"
	Payment TxType = "payment"
)

// DefaultCategory is stamped on transactions recorded without a category.
const DefaultCategory = "General"

type (
	// ID identifies users, customers and transactions. Older exports carry
	// numeric user ids, so decoding accepts both JSON numbers and strings.
	ID string

	// TxType is the direction of a transaction.
	TxType string

	User struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	}

	Customer struct {
		ID        ID        `json:"id"`
		Name      string    `json:"name"`
		Mobile    string    `json:"mobile,omitempty"`
		NIC       string    `json:"nic,omitempty"`
		CreatedAt time.Time `json:"createdAt"`

		// Legacy holds transactions embedded in the deprecated nested shape.
		// Reconciliation moves them into the flat list and clears this field.
		Legacy []Transaction `json:"transactions,omitempty"`
	}

	Transaction struct {
		ID         ID              `json:"id"`
		CustomerID ID              `json:"customerId"`
		Date       time.Time       `json:"date"`
		Amount     decimal.Decimal `json:"amount"`
		Type       TxType          `json:"type"`
		Note       string          `json:"note,omitempty"`
		Category   string          `json:"category"`
		UserID     ID              `json:"userId"`
	}

	// TransactionInput carries the caller-supplied fields of a new transaction.
	// Amount is raw user input; a zero Date means "now".
	TransactionInput struct {
		CustomerID ID
		Amount     string
		Type       TxType
		Note       string
		Category   string
		Date       time.Time
	}
)

func init() {
	// Persisted documents carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	ErrValidation     = errors.New("validation failed")
	ErrInvalidAmount  = fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	ErrInvalidType    = fmt.Errorf("%w: transaction type must be credit or payment", ErrValidation)
	ErrEmptyName      = fmt.Errorf("%w: name cannot be empty", ErrValidation)
	ErrNotFound       = errors.New("not found")
	ErrInvalidFormat  = errors.New("invalid format")
	ErrNetworkFailure = errors.New("network failure")
	ErrPersistence    = errors.New("persistence failed")
)

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts "abc", 12 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (t TxType) Validate() error {
	switch t {
	case Credit, Payment:
		return nil
	default:
		return ErrInvalidType
	}
}

// ParseTxType maps user input ("credit", "Payment", "in", "out") to a TxType.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "out":
		return Credit, nil
	case "payment", "in":
		return Payment, nil
	default:
		return "", ErrInvalidType
	}
}

func (t *TxType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := TxType(s)
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %q", err, s)
	}
	*t = v
	return nil
}

func (t Transaction) Validate() error {
	if t.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return t.Type.Validate()
}

// Signed returns the transaction's effect on the customer's balance. A
// transaction of unknown type has none, matching SumCashFlow.
func (t Transaction) Signed() decimal.Decimal {
	switch t.Type {
	case Credit:
		return t.Amount.Neg()
	case Payment:
		return t.Amount
	default:
		return decimal.Zero
	}
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
