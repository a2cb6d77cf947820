// Package router maps analytics event types to the code that turns them into
// warehouse rows.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/foodrescue/rescue-backend/internal/analytics/types"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrMalformedPayload marks payloads that will never decode; redelivery
	// cannot fix them.
	ErrMalformedPayload = errors.New("malformed analytics payload")
)

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertImpactFact(ctx context.Context, row types.ImpactFactRow) error
}

type route func(ctx context.Context, envelope types.Envelope) error

type Router struct {
	routes map[enums.OutboxEventType]route
}

// New registers the built-in analytics routes.
func New(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	r := &Router{routes: map[enums.OutboxEventType]route{}}
	facts := impactFacts{writer: writer, logg: logg}
	On(r, enums.EventReservationPickedUp, facts.pickedUp)
	return r, nil
}

// On routes eventType to handle, replacing any earlier route. The payload is
// decoded into T first.
func On[T any](r *Router, eventType enums.OutboxEventType, handle func(context.Context, types.Envelope, T) error) {
	r.routes[eventType] = func(ctx context.Context, envelope types.Envelope) error {
		if len(bytes.TrimSpace(envelope.Payload)) == 0 {
			return fmt.Errorf("%w: empty %s payload", ErrMalformedPayload, eventType)
		}
		var payload T
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, eventType, err)
		}
		return handle(ctx, envelope, payload)
	}
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handle, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	return handle(ctx, envelope)
}
