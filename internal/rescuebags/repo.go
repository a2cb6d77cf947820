package rescuebags

import (
	"context"
	"time"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists rescue bags.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bag *models.RescueBag) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RescueBag, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]models.RescueBag, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.RescueBagStatus) error
	SetPaused(ctx context.Context, id uuid.UUID, pausedAt *time.Time) (bool, error)
	ListWindowEnded(ctx context.Context, now time.Time, limit int) ([]models.RescueBag, error)
	ListOpenByBusinesses(ctx context.Context, businessIDs []uuid.UUID, now time.Time) ([]models.RescueBag, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a rescue bag repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bag *models.RescueBag) error {
	if bag.ID == uuid.Nil {
		bag.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(bag).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RescueBag, error) {
	var bag models.RescueBag
	if err := r.db.WithContext(ctx).First(&bag, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bag, nil
}

func (r *repository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]models.RescueBag, error) {
	var bags []models.RescueBag
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("pickup_start ASC").
		Order("id ASC").
		Find(&bags).Error
	return bags, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.RescueBagStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.RescueBag{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SetPaused toggles the explicit pause flag and reports whether the row changed.
func (r *repository) SetPaused(ctx context.Context, id uuid.UUID, pausedAt *time.Time) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.RescueBag{}).Where("id = ?", id)
	if pausedAt != nil {
		query = query.Where("paused_at IS NULL")
	} else {
		query = query.Where("paused_at IS NOT NULL")
	}
	res := query.Update("paused_at", pausedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListWindowEnded returns bags whose pickup window has closed but whose
// materialized status does not yet reflect it. Paused bags keep their status.
func (r *repository) ListWindowEnded(ctx context.Context, now time.Time, limit int) ([]models.RescueBag, error) {
	var bags []models.RescueBag
	query := r.db.WithContext(ctx).
		Where("pickup_end < ?", now).
		Where("paused_at IS NULL").
		Where("status <> ?", enums.RescueBagStatusExpired).
		Order("pickup_end ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&bags).Error
	return bags, err
}

// ListOpenByBusinesses returns the unpaused bags of the given businesses that
// still have stock and an open or upcoming window at now, newest first.
func (r *repository) ListOpenByBusinesses(ctx context.Context, businessIDs []uuid.UUID, now time.Time) ([]models.RescueBag, error) {
	if len(businessIDs) == 0 {
		return nil, nil
	}
	var bags []models.RescueBag
	err := r.db.WithContext(ctx).
		Where("business_id IN ?", businessIDs).
		Where("paused_at IS NULL").
		Where("pickup_end >= ?", now).
		Where("reserved_qty < available_qty").
		Order("created_at DESC").
		Order("id ASC").
		Find(&bags).Error
	return bags, err
}

// SyncStatus reloads the bag and writes the derived status when it differs
// from the stored one. Callers run it inside the transaction that changed the
// counters or the pause flag.
func SyncStatus(ctx context.Context, repo Repository, id uuid.UUID, now time.Time) (*models.RescueBag, error) {
	bag, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	derived := DeriveStatus(*bag, now)
	if derived == bag.Status {
		return bag, nil
	}
	if err := repo.UpdateStatus(ctx, id, derived); err != nil {
		return nil, err
	}
	bag.Status = derived
	return bag, nil
}
