package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/foodrescue/rescue-backend/pkg/db/dbtest"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmitStoresEnvelopeInTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	aggregateID := uuid.New()
	occurred := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{UserID: uuid.New(), Role: "user"},
			Data:          map[string]any{"quantity": 2},
			OccurredAt:    occurred,
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.True(t, env.OccurredAt.Equal(occurred))
	assert.JSONEq(t, `{"quantity":2}`, string(env.Data))
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   uuid.New(),
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventReservationCreated}))

	db := dbtest.Open(t)
	err := svc.Emit(context.Background(), db, DomainEvent{EventType: "order_created"})
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     enums.EventReservationExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   uuid.New(),
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("publish timeout")))
	require.NoError(t, repo.MarkTerminalTx(db, rows[2].ID, errors.New("bad payload")))

	pending, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "publish timeout", *pending[0].LastError)

	exhausted, err := repo.FetchUnpublishedForPublish(db, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, exhausted)

	deleted, err := repo.DeletePublishedBefore(db, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestEmitBatchSharesRowAndEnvelopeID(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	require.NoError(t, svc.Emit(context.Background(), db,
		DomainEvent{EventType: enums.EventReservationCreated, AggregateType: enums.AggregateReservation, AggregateID: uuid.New()},
		DomainEvent{EventType: enums.EventReservationConfirmed, AggregateType: enums.AggregateReservation, AggregateID: uuid.New(), Version: 2},
	))
	require.NoError(t, svc.Emit(context.Background(), db))

	var rows []models.OutboxEvent
	require.NoError(t, db.Order("event_type").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		var env PayloadEnvelope
		require.NoError(t, json.Unmarshal(row.Payload, &env))
		assert.Equal(t, row.ID.String(), env.EventID)
		assert.False(t, env.OccurredAt.IsZero())
	}
}

func deadLetterFor(row models.OutboxEvent, msg string) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
	}
}

func TestDeadLetterTruncatesMessage(t *testing.T) {
	db := dbtest.Open(t)
	dlq := NewDeadLetters(db)
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventReservationCreated,
		AggregateType: enums.AggregateReservation,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}

	require.NoError(t, dlq.InsertTx(db, deadLetterFor(row, strings.Repeat("é", maxDeadLetterMessage))))

	got, err := dlq.Find(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ErrorMessage)
	assert.LessOrEqual(t, len(*got.ErrorMessage), maxDeadLetterMessage)
	assert.True(t, utf8.ValidString(*got.ErrorMessage))

	missing, err := dlq.Find(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRequeueResetsExistingRow(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	dlq := NewDeadLetters(db)
	svc := NewService(repo, nil)

	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventReservationPickedUp,
		AggregateType: enums.AggregateReservation,
		AggregateID:   uuid.New(),
	}))
	rows, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, dlq.InsertTx(db, deadLetterFor(rows[0], "boom")))
	require.NoError(t, repo.MarkTerminalTx(db, rows[0].ID, errors.New("boom")))

	require.NoError(t, dlq.Requeue(context.Background(), rows[0].ID))

	pending, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].AttemptCount)
	assert.Nil(t, pending[0].LastError)

	left, err := dlq.Find(context.Background(), rows[0].ID)
	require.NoError(t, err)
	assert.Nil(t, left)

	assert.ErrorIs(t, dlq.Requeue(context.Background(), rows[0].ID), ErrNotDeadLettered)
}

func TestRequeueRecreatesDeletedRow(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	dlq := NewDeadLetters(db)
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventReservationExpired,
		AggregateType: enums.AggregateReservation,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
	require.NoError(t, dlq.InsertTx(db, deadLetterFor(row, "gone")))

	require.NoError(t, dlq.Requeue(context.Background(), row.ID))

	pending, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, row.ID, pending[0].ID)
	assert.JSONEq(t, `{"version":1}`, string(pending[0].Payload))
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "a", truncate("aé", 2))
	assert.Equal(t, "aé", truncate("aé", 3))
}
