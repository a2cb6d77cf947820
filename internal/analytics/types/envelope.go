package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
)

// Envelope is the analytics view of a relayed outbox message.
type Envelope struct {
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// Decode rebuilds an Envelope from a message body and its attributes. Type
// information comes from the attributes; the body's eventId wins over the
// event_id attribute, and created_at stands in for a missing occurredAt.
func Decode(data []byte, attrs map[string]string) (Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &stored); err != nil {
		return Envelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(attr(attrs, "event_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr(attrs, "aggregate_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr(attrs, "aggregate_id")
	if aggregateID == "" {
		return Envelope{}, errors.New("aggregate_id missing")
	}

	rawID := strings.TrimSpace(stored.EventID)
	if rawID == "" {
		rawID = attr(attrs, "event_id")
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil || eventID == uuid.Nil {
		return Envelope{}, fmt.Errorf("event_id %q is not a valid id", rawID)
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr(attrs, "created_at")); err == nil {
			occurredAt = created
		}
	}

	return Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}

func attr(attrs map[string]string, key string) string {
	return strings.TrimSpace(attrs[key])
}
