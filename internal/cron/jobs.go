package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
)

const (
	defaultBagExpiryBatch  = 200
	defaultOutboxRetention = 30 * 24 * time.Hour
)

type overdueReservationExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

type endedBagExpirer interface {
	ExpireEnded(ctx context.Context, limit int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// ReservationExpiryJobParams configure the overdue reservation sweep.
type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	Reservations overdueReservationExpirer
	Metrics      *metrics.CronJobMetrics
}

// NewReservationExpiryJob builds the job that expires reservations whose
// pickup window ended without a pickup and returns their units to stock.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	return &reservationExpiryJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		metrics:      params.Metrics,
	}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	reservations overdueReservationExpirer
	metrics      *metrics.CronJobMetrics
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.reservations.ExpireOverdue(ctx)
	j.metrics.AddProcessed(j.Name(), expired)
	if err != nil {
		return fmt.Errorf("expire overdue reservations: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "reservation expiry sweep complete")
	return nil
}

// BagExpiryJobParams configure the ended rescue bag sweep.
type BagExpiryJobParams struct {
	Logger    *logger.Logger
	Bags      endedBagExpirer
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewBagExpiryJob builds the job that materializes the expired status on
// bags whose pickup window has closed.
func NewBagExpiryJob(params BagExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bags == nil {
		return nil, fmt.Errorf("rescue bag service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBagExpiryBatch
	}
	return &bagExpiryJob{
		logg:    params.Logger,
		bags:    params.Bags,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type bagExpiryJob struct {
	logg    *logger.Logger
	bags    endedBagExpirer
	metrics *metrics.CronJobMetrics
	batch   int
}

func (j *bagExpiryJob) Name() string { return "rescue-bag-expiry" }

func (j *bagExpiryJob) Run(ctx context.Context) error {
	expired, err := j.bags.ExpireEnded(ctx, j.batch)
	j.metrics.AddProcessed(j.Name(), expired)
	if err != nil {
		return fmt.Errorf("expire ended bags: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "rescue bag expiry sweep complete")
	return nil
}


// OutboxRetentionJobParams configure pruning of published outbox rows.
// Dead-lettered rows are published too and age out the same way; their
// copy in outbox_dlq is kept.
type OutboxRetentionJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Outbox    publishedPruner
	Metrics   *metrics.CronJobMetrics
	Retention time.Duration
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	outbox    publishedPruner
	metrics   *metrics.CronJobMetrics
	retention time.Duration
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeletePublishedBefore(tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("prune published outbox rows: %w", err)
	}
	j.metrics.AddProcessed(j.Name(), int(deleted))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"deleted": deleted,
	}), "outbox retention sweep complete")
	return nil
}
