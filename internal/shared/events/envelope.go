package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	Aggregate = "ticket"

	TicketCreated  = "ticket.created"
	MessageCreated = "ticket.message_created"
	StatusChanged  = "ticket.status_changed"
)

type Envelope struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Aggregate   string          `json:"aggregate"`
	AggregateID string          `json:"aggregate_id"`
	RequestID   string          `json:"request_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

func New(eventType, aggregateID, requestID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		OccurredAt:  time.Now().UTC(),
		Aggregate:   Aggregate,
		AggregateID: aggregateID,
		RequestID:   requestID,
		Payload:     raw,
	}, nil
}
