package amqp

import (
	"encoding/json"
	"time"
)

// Mutation actions carried in invalidation messages.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionBulkStatus = "bulk-status"
	ActionBulkDelete = "bulk-delete"
)

// Entity names carried in invalidation messages.
const (
	EntityInvoice   = "rechnung"
	EntityQuote     = "angebot"
	EntityExpense   = "projektkosten"
	EntityTimeEntry = "zeiterfassung"
)

// MutationMessage announces that a finance record changed. Consumers
// drop their caches and refresh snapshots; the message carries only the
// identity of the change, never the record itself.
type MutationMessage struct {
	Entity    string    `json:"entity"`
	ID        string    `json:"id,omitempty"` // empty for bulk actions
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationMessage creates an invalidation message for one change.
func NewMutationMessage(entity, id, action string) *MutationMessage {
	return &MutationMessage{
		Entity:    entity,
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON creates a message from JSON bytes
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
