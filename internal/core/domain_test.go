package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIDUnmarshalAcceptsNumbers(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"id":1,"name":"Masroor Anwar"}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.ID != "1" {
		t.Fatalf("expected id 1, got %q", u.ID)
	}

	var c Customer
	if err := json.Unmarshal([]byte(`{"id":"_k3j2h1","name":"Ali"}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.ID != "_k3j2h1" {
		t.Fatalf("unexpected id %q", c.ID)
	}

	if err := json.Unmarshal([]byte(`{"id":true}`), &u); err == nil {
		t.Fatalf("expected error for boolean id")
	}
}

func TestTransactionJSON(t *testing.T) {
	in := `{"id":"_a","customerId":"_c","date":"2025-01-02T03:04:05.678Z","amount":"500","type":"credit","category":"Goods","userId":2}`
	var tx Transaction
	if err := json.Unmarshal([]byte(in), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !tx.Amount.Equal(decimal.NewFromInt(500)) || tx.Type != Credit || tx.UserID != "2" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !tx.Date.Equal(time.Date(2025, 1, 2, 3, 4, 5, 678000000, time.UTC)) {
		t.Fatalf("unexpected date %v", tx.Date)
	}

	out, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"amount":500`) {
		t.Fatalf("amount should be a bare number: %s", out)
	}

	bad := strings.Replace(in, `"credit"`, `"debit"`, 1)
	if err := json.Unmarshal([]byte(bad), &tx); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{Amount: decimal.NewFromInt(1), Type: Payment}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Transaction{
		{Amount: decimal.Zero, Type: Payment},
		{Amount: decimal.NewFromInt(-5), Type: Credit},
		{Amount: decimal.NewFromInt(5), Type: "gift"},
	}
	for i, tx := range bads {
		if err := tx.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestTransactionSigned(t *testing.T) {
	tests := []struct {
		typ  TxType
		want int64
	}{
		{Credit, -40},
		{Payment, 40},
		{"", 0},
	}
	for _, tt := range tests {
		tx := Transaction{Amount: decimal.NewFromInt(40), Type: tt.typ}
		if got := tx.Signed(); !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("Signed(%q) = %s, want %d", tt.typ, got, tt.want)
		}
	}

	// An untyped transaction moves neither the balance nor the cash flow.
	txs := []Transaction{{CustomerID: "a", Amount: decimal.NewFromInt(100)}}
	if b := BalanceOf("a", txs); !b.IsZero() {
		t.Errorf("expected zero balance, got %s", b)
	}
	if cf := SumCashFlow(txs, Epoch); !cf.CashIn.IsZero() || !cf.CashOut.IsZero() {
		t.Errorf("expected empty cash flow, got %+v", cf)
	}
}

func TestParseTxType(t *testing.T) {
	cases := map[string]TxType{"credit": Credit, " Payment ": Payment, "out": Credit, "IN": Payment}
	for in, want := range cases {
		got, err := ParseTxType(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q err=%v", in, got, err)
		}
	}
	if _, err := ParseTxType("loan"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestCustomerValidate(t *testing.T) {
	if err := (Customer{Name: "Ali"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Customer{Name: "  "}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}
