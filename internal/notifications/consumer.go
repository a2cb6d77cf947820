package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/outbox/idempotency"
	"github.com/foodrescue/rescue-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

const reservationNotificationConsumer = "reservation-notifications"

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type deliveryGuard interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer watches reservation lifecycle events and writes the user-facing
// notifications for them.
type Consumer struct {
	repo         notificationWriter
	subscription *pubsub.Subscriber
	idempotency  deliveryGuard
	logg         *logger.Logger
}

// NewConsumer builds a reservation notification consumer.
func NewConsumer(repo notificationWriter, subscription *pubsub.Subscriber, guard deliveryGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("reservations subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !handles(eventType) {
		c.logg.Debug(logCtx, "skipping event without notification")
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	notification, err := buildNotification(eventType, envelope.Data)
	if err != nil {
		// A payload that does not decode will not decode on redelivery either.
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{}
	}
	if notification == nil {
		c.logg.Debug(logCtx, "event does not notify the user")
		return processResult{}
	}

	created, err := c.idempotency.Once(logCtx, reservationNotificationConsumer, eventID, func(ctx context.Context) error {
		return c.repo.Create(ctx, notification)
	})
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		c.logg.Info(logCtx, "event in flight on another delivery")
		return processResult{nack: true}
	case err != nil:
		c.logg.Error(logCtx, "notification insert failed", err)
		return processResult{nack: true}
	case !created:
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"user_id":           notification.UserID.String(),
		"notification_type": notification.Type,
	}), "user notified")
	return processResult{}
}

func handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventReservationConfirmed,
		enums.EventReservationReady,
		enums.EventReservationExpired,
		enums.EventReservationCancelled,
		enums.EventImpactCredited:
		return true
	default:
		return false
	}
}

// buildNotification maps an event payload to the notification row. A nil
// notification means the event needs no message, such as a user cancelling
// their own reservation.
func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventReservationConfirmed, enums.EventReservationReady, enums.EventReservationExpired:
		var event payloads.ReservationStatusChangedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		return statusNotification(eventType, event)
	case enums.EventReservationCancelled:
		var event payloads.ReservationCancelledEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		return cancelledNotification(event)
	case enums.EventImpactCredited:
		var event payloads.ImpactCreditedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		return impactNotification(event)
	}
	return nil, nil
}

func statusNotification(eventType enums.OutboxEventType, event payloads.ReservationStatusChangedEvent) (*models.Notification, error) {
	if event.UserID == uuid.Nil || event.ReservationID == uuid.Nil {
		return nil, fmt.Errorf("reservation or user id missing")
	}
	n := reservationNotification(event.UserID, event.ReservationID)
	switch eventType {
	case enums.EventReservationConfirmed:
		n.Title = "Reservation confirmed"
		n.Message = "The business confirmed your rescue bag reservation."
	case enums.EventReservationReady:
		n.Type = enums.NotificationTypePickupReady
		n.Title = "Your bag is ready"
		n.Message = "Your rescue bag is packed and ready for pickup."
	case enums.EventReservationExpired:
		n.Title = "Reservation expired"
		n.Message = "The pickup window ended before the bag was collected."
	}
	return n, nil
}

func cancelledNotification(event payloads.ReservationCancelledEvent) (*models.Notification, error) {
	if event.CancelledBy == enums.CancelledByUser {
		return nil, nil
	}
	if event.UserID == uuid.Nil || event.ReservationID == uuid.Nil {
		return nil, fmt.Errorf("reservation or user id missing")
	}
	n := reservationNotification(event.UserID, event.ReservationID)
	n.Title = "Reservation cancelled"
	n.Message = "Your reservation was cancelled."
	if reason := strings.TrimSpace(event.Reason); reason != "" {
		n.Message = fmt.Sprintf("Your reservation was cancelled. Reason: %s", reason)
	}
	return n, nil
}

func impactNotification(event payloads.ImpactCreditedEvent) (*models.Notification, error) {
	if event.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	message := fmt.Sprintf("You have saved %s so far and kept %.1f kg of CO2e out of the air.",
		event.TotalSaved.StringFixed(2), event.TotalCO2eSaved)
	n := &models.Notification{
		UserID:  event.UserID,
		Type:    enums.NotificationTypeImpact,
		Title:   "Thanks for rescuing food",
		Message: message,
		Link:    stringPtr("/profile/impact"),
	}
	if event.ReservationID != uuid.Nil {
		id := event.ReservationID
		n.ReservationID = &id
	}
	return n, nil
}

func reservationNotification(userID, reservationID uuid.UUID) *models.Notification {
	id := reservationID
	return &models.Notification{
		UserID:        userID,
		ReservationID: &id,
		Type:          enums.NotificationTypeReservation,
		Link:          stringPtr(fmt.Sprintf("/reservations/%s", reservationID)),
	}
}

func stringPtr(value string) *string {
	return &value
}
