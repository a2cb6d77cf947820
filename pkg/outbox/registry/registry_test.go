package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	reservationID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.ReservationCreatedEvent{
		ReservationID: reservationID,
		UserID:        uuid.New(),
		RescueBagID:   uuid.New(),
		Quantity:      2,
		PaymentAmount: decimal.RequireFromString("11.98"),
	})

	event := models.OutboxEvent{
		EventType:     enums.EventReservationCreated,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservationID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "reservations-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.ReservationCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.ReservationID != reservationID || payload.Quantity != 2 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if !payload.PaymentAmount.Equal(decimal.RequireFromString("11.98")) {
		t.Fatalf("unexpected amount %s", payload.PaymentAmount)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestEventRegistryRoutesPickupsToAnalytics(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventReservationPickedUp,
		AggregateType: enums.AggregateReservation,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, mustMarshal(t, payloads.ReservationPickedUpEvent{
			ReservationID: uuid.New(),
			UserID:        uuid.New(),
			RescueBagID:   uuid.New(),
			Quantity:      1,
			CO2Saved:      4,
		})),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "analytics-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
}

func TestEventRegistryResolvesImpactCredited(t *testing.T) {
	reg := newTestEventRegistry(t)

	userID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventImpactCredited,
		AggregateType: enums.AggregateUser,
		AggregateID:   userID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.ImpactCreditedEvent{
			UserID:         userID,
			ReservationID:  uuid.New(),
			TotalSaved:     decimal.RequireFromString("24.50"),
			TotalCO2eSaved: 12.5,
		})),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "reservations-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.ImpactCreditedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.UserID != userID || payload.TotalCO2eSaved != 12.5 {
		t.Fatalf("payload mismatch %+v", payload)
	}
}

func TestEventRegistryResolveFailures(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "order_created",
			AggregateType: enums.AggregateReservation,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateRescueBag,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"payload fails validation": {
			EventType:     enums.EventReservationPickedUp,
			AggregateType: enums.AggregateReservation,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"reservation_id":"`+uuid.NewString()+`","quantity":0}`)),
		},
		"broken envelope": {
			EventType:     enums.EventRescueBagPaused,
			AggregateType: enums.AggregateRescueBag,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func TestEventRegistryCoversEveryEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	registered := map[enums.OutboxEventType]bool{}
	for _, et := range reg.Types() {
		registered[et] = true
	}
	for _, et := range enums.OutboxEventTypes() {
		if !registered[et] {
			t.Fatalf("event type %s has no route", et)
		}
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{AnalyticsTopic: "a"}); err == nil {
		t.Fatal("expected missing reservations topic error")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{ReservationsTopic: "r"}); err == nil {
		t.Fatal("expected missing analytics topic error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		ReservationsTopic: "reservations-topic",
		AnalyticsTopic:    "analytics-topic",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
