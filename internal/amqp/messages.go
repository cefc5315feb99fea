package amqp

import (
	"encoding/json"
	"fmt"

	"khata/internal/core"
)

// EventMessage is the body published for every ledger change. Consumers
// receive the full event, not just an id to look up.
type EventMessage struct {
	core.Event
}

// NewEventMessage wraps e, stamping it with the current time when unset.
func NewEventMessage(e core.Event) *EventMessage {
	if e.Timestamp.IsZero() {
		e.Timestamp = timeNow().UTC()
	}
	return &EventMessage{Event: e}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON creates a message from JSON bytes
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("event message without type")
	}
	return &msg, nil
}
