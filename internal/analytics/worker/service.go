// Package worker consumes the analytics topic and hands each event to the
// router exactly once per event id.
package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/foodrescue/rescue-backend/internal/analytics/router"
	"github.com/foodrescue/rescue-backend/internal/analytics/types"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/outbox/idempotency"
)

const consumerName = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type deliveryGuard interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	guard        deliveryGuard
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, guard deliveryGuard, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case guard == nil:
		return nil, errors.New("idempotency guard is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, guard: guard, logg: logg}, nil
}

// Run receives messages until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

// process acks anything a redelivery cannot fix and nacks the rest.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := types.Decode(msg.Data, msg.Attributes)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping undecodable analytics message")
		return processResult{}
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":       envelope.EventID.String(),
		"event_type":     string(envelope.EventType),
		"aggregate_type": string(envelope.AggregateType),
		"aggregate_id":   envelope.AggregateID,
	})

	ran, err := s.guard.Once(logCtx, consumerName, envelope.EventID, func(ctx context.Context) error {
		return s.handler.Handle(ctx, envelope)
	})
	switch {
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Debug(logCtx, "analytics event type not handled")
		return processResult{}
	case errors.Is(err, router.ErrMalformedPayload):
		s.logg.Error(logCtx, "analytics payload rejected", err)
		return processResult{}
	case errors.Is(err, idempotency.ErrInFlight):
		s.logg.Info(logCtx, "event in flight on another delivery")
		return processResult{nack: true}
	case err != nil:
		s.logg.Error(logCtx, "analytics handler failed", err)
		return processResult{nack: true}
	case !ran:
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	s.logg.Info(logCtx, "analytics event handled")
	return processResult{}
}
