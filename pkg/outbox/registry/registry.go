// Package registry maps outbox event types to their topic and payload schema
// and validates rows before the relay publishes them.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

type EventRegistry struct {
	entries  map[enums.OutboxEventType]EventDescriptor
	validate *validator.Validate
}

// NewEventRegistry routes reservation and bag lifecycle events to the
// reservations topic. Pickups feed the analytics topic only.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.ReservationsTopic == "":
		return nil, errors.New("reservations topic is required")
	case cfg.AnalyticsTopic == "":
		return nil, errors.New("analytics topic is required")
	}

	r := &EventRegistry{
		entries:  make(map[enums.OutboxEventType]EventDescriptor),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	lifecycle := cfg.ReservationsTopic

	on[payloads.ReservationCreatedEvent](r, enums.EventReservationCreated, enums.AggregateReservation, lifecycle)
	on[payloads.ReservationStatusChangedEvent](r, enums.EventReservationConfirmed, enums.AggregateReservation, lifecycle)
	on[payloads.ReservationStatusChangedEvent](r, enums.EventReservationReady, enums.AggregateReservation, lifecycle)
	on[payloads.ReservationStatusChangedEvent](r, enums.EventReservationExpired, enums.AggregateReservation, lifecycle)
	on[payloads.ReservationCancelledEvent](r, enums.EventReservationCancelled, enums.AggregateReservation, lifecycle)
	on[payloads.ReservationPickedUpEvent](r, enums.EventReservationPickedUp, enums.AggregateReservation, cfg.AnalyticsTopic)
	on[payloads.RescueBagStatusEvent](r, enums.EventRescueBagPaused, enums.AggregateRescueBag, lifecycle)
	on[payloads.RescueBagStatusEvent](r, enums.EventRescueBagResumed, enums.AggregateRescueBag, lifecycle)
	on[payloads.RescueBagStatusEvent](r, enums.EventRescueBagExpired, enums.AggregateRescueBag, lifecycle)
	on[payloads.ImpactCreditedEvent](r, enums.EventImpactCredited, enums.AggregateUser, lifecycle)

	return r, nil
}

// on registers eventType with a decoder producing *T checked against its
// validate tags.
func on[T any](r *EventRegistry, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	r.entries[eventType] = EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(data json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, err
			}
			if err := r.validate.Struct(payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// Types lists every registered event type.
func (r *EventRegistry) Types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	return out
}

// Resolve checks a stored row against its descriptor and decodes the typed
// payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if desc.AggregateType != row.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", row.EventType))
	}
	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
