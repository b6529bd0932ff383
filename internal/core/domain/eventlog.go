package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventLog records one received processor delivery and what became of it.
// Purely an audit trail: writes are best-effort and never gate the ledger.
type EventLog struct {
	ID               uuid.UUID `json:"id"`
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	PaymentReference string    `json:"payment_reference"`
	Result           string    `json:"result"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewEventLog creates an audit entry for a received event and its outcome.
func NewEventLog(event *PaymentEvent, result string) *EventLog {
	return &EventLog{
		ID:               uuid.New(),
		EventID:          event.EventID,
		EventType:        event.Type,
		PaymentReference: event.PaymentReference,
		Result:           result,
		CreatedAt:        time.Now(),
	}
}
