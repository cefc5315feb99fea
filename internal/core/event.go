package core

import "time"

// EventType names a ledger change announced to subscribers.
type EventType string

const (
	EventCustomerAdded       EventType = "customer.added"
	EventCustomerRemoved     EventType = "customer.removed"
	EventTransactionRecorded EventType = "transaction.recorded"
	EventLedgerImported      EventType = "ledger.imported"
)

// Event describes one successful ledger mutation. Transaction is set only
// for transaction.recorded.
type Event struct {
	Type         EventType    `json:"type"`
	CustomerID   ID           `json:"customerId,omitempty"`
	Transaction  *Transaction `json:"transaction,omitempty"`
	Customers    int          `json:"customers,omitempty"`
	Transactions int          `json:"transactions,omitempty"`
	Version      int64        `json:"version"`
	Timestamp    time.Time    `json:"timestamp"`
}
