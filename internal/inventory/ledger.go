package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	opReserve = "reserve"
	opRelease = "release"
)

// Snapshot is the bag state observed right after a ledger mutation.
type Snapshot struct {
	BagID     uuid.UUID
	Available int
	Reserved  int
	Status    enums.RescueBagStatus
}

// Ledger moves units between a bag's free and reserved pools. Every method
// runs inside the caller's transaction.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, bagID uuid.UUID, qty int, now time.Time) (*Snapshot, error)
	Release(ctx context.Context, tx *gorm.DB, bagID uuid.UUID, qty int, now time.Time) (*Snapshot, error)
}

type ledger struct {
	bags    rescuebags.Repository
	metrics *metrics.ReservationMetrics
}

// NewLedger builds the inventory ledger. metrics may be nil.
func NewLedger(bags rescuebags.Repository, m *metrics.ReservationMetrics) (Ledger, error) {
	if bags == nil {
		return nil, fmt.Errorf("rescue bag repository required")
	}
	return &ledger{bags: bags, metrics: m}, nil
}

// Reserve claims qty units with a single conditional update. The update only
// matches a bag that is not paused, whose pickup window has not closed at now
// and that can cover qty; any other bag is left untouched.
func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, bagID uuid.UUID, qty int, now time.Time) (*Snapshot, error) {
	if err := validateArgs(tx, bagID, qty); err != nil {
		return nil, err
	}

	res := tx.WithContext(ctx).Exec(`
UPDATE rescue_bags
SET reserved_qty = reserved_qty + ?,
    updated_at = ?
WHERE id = ?
  AND paused_at IS NULL
  AND pickup_end >= ?
  AND available_qty - reserved_qty >= ?
`, qty, now.UTC(), bagID, now.UTC(), qty)
	if res.Error != nil {
		l.metrics.ObserveInventory(opReserve, "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve rescue bag quantity")
	}
	if res.RowsAffected == 0 {
		err := l.explainMiss(ctx, tx, bagID, qty, now)
		l.metrics.ObserveInventory(opReserve, outcomeFor(err))
		return nil, err
	}

	snap, err := l.sync(ctx, tx, bagID, now)
	if err != nil {
		l.metrics.ObserveInventory(opReserve, "error")
		return nil, err
	}
	l.metrics.ObserveInventory(opReserve, "ok")
	return snap, nil
}

// Release returns qty units to the free pool. The reserved count never goes
// below zero, so a duplicate release is harmless.
func (l *ledger) Release(ctx context.Context, tx *gorm.DB, bagID uuid.UUID, qty int, now time.Time) (*Snapshot, error) {
	if err := validateArgs(tx, bagID, qty); err != nil {
		return nil, err
	}

	res := tx.WithContext(ctx).Exec(`
UPDATE rescue_bags
SET reserved_qty = CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END,
    updated_at = ?
WHERE id = ?
`, qty, qty, now.UTC(), bagID)
	if res.Error != nil {
		l.metrics.ObserveInventory(opRelease, "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release rescue bag quantity")
	}
	if res.RowsAffected == 0 {
		l.metrics.ObserveInventory(opRelease, "not_found")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rescue bag not found")
	}

	snap, err := l.sync(ctx, tx, bagID, now)
	if err != nil {
		l.metrics.ObserveInventory(opRelease, "error")
		return nil, err
	}
	l.metrics.ObserveInventory(opRelease, "ok")
	return snap, nil
}

func (l *ledger) sync(ctx context.Context, tx *gorm.DB, bagID uuid.UUID, now time.Time) (*Snapshot, error) {
	bag, err := rescuebags.SyncStatus(ctx, l.bags.WithTx(tx), bagID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync rescue bag status")
	}
	return snapshotOf(bag), nil
}

// explainMiss reports why the reserve update matched no row.
func (l *ledger) explainMiss(ctx context.Context, tx *gorm.DB, bagID uuid.UUID, qty int, now time.Time) error {
	bag, err := l.bags.WithTx(tx).FindByID(ctx, bagID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rescue bag not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rescue bag")
	}
	if status := rescuebags.DeriveStatus(*bag, now); status == enums.RescueBagStatusPaused || status == enums.RescueBagStatusExpired {
		return pkgerrors.New(pkgerrors.CodeBagUnavailable, "rescue bag is not available").
			WithDetails(map[string]any{"status": status})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientQuantity, "insufficient quantity available").
		WithDetails(map[string]any{
			"requested": qty,
			"available": rescuebags.Remaining(*bag),
		})
}

func validateArgs(tx *gorm.DB, bagID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if bagID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "rescue bag id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": qty})
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return "not_found"
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientQuantity):
		return "insufficient_quantity"
	case pkgerrors.HasCode(err, pkgerrors.CodeBagUnavailable):
		return "bag_unavailable"
	default:
		return "error"
	}
}

func snapshotOf(bag *models.RescueBag) *Snapshot {
	return &Snapshot{
		BagID:     bag.ID,
		Available: bag.AvailableQty,
		Reserved:  bag.ReservedQty,
		Status:    bag.Status,
	}
}
