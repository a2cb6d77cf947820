package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

// DomainEvent is a state change to publish once its transaction commits.
// Version and OccurredAt default to EnvelopeVersion and the emit time.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit appends events to the outbox through tx, so they commit or roll back
// with the state change they describe.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	now := s.now()
	rows := make([]models.OutboxEvent, 0, len(events))
	for _, event := range events {
		if !event.EventType.IsValid() {
			return fmt.Errorf("unknown outbox event type %q", event.EventType)
		}
		id := uuid.New()
		payload, err := seal(id, event, now)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event.EventType, err)
		}
		rows = append(rows, models.OutboxEvent{
			ID:            id,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       payload,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.repo.InsertTx(tx.WithContext(ctx), rows...); err != nil {
		return fmt.Errorf("queue outbox events: %w", err)
	}

	if s.logg != nil {
		for _, row := range rows {
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"event_id":       row.ID.String(),
				"event_type":     string(row.EventType),
				"aggregate_type": string(row.AggregateType),
				"aggregate_id":   row.AggregateID.String(),
			}), "outbox event queued")
		}
	}
	return nil
}
