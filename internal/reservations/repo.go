package reservations

import (
	"context"
	"time"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.ReservationStatus, to enums.ReservationStatus, fields map[string]any) (bool, error)
	ListByUser(ctx context.Context, query ListQuery) ([]models.Reservation, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
	ListOverdue(ctx context.Context, now time.Time, limit int, skip []uuid.UUID) ([]models.Reservation, error)
}

// ListQuery filters a user's reservations. Rows come back newest first.
type ListQuery struct {
	UserID uuid.UUID
	Status *enums.ReservationStatus
	Cursor *pagination.Cursor
	Limit  int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservation repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// Transition moves the reservation to to only while its status is one of
// from. It reports false when the guard did not match.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.ReservationStatus, to enums.ReservationStatus, fields map[string]any) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, query ListQuery) ([]models.Reservation, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", query.UserID)
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	var rows []models.Reservation
	err := q.Scopes(pagination.Newest(query.Cursor, query.Limit)).Find(&rows).Error
	return rows, err
}

func (r *repository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("status IN ?", []enums.ReservationStatus{enums.ReservationStatusConfirmed, enums.ReservationStatusReady}).
		Order("scheduled_time ASC").
		Find(&rows).Error
	return rows, err
}

// ListOverdue returns non-terminal reservations whose pickup window ended
// before now, oldest window first. Ids in skip are left out.
func (r *repository) ListOverdue(ctx context.Context, now time.Time, limit int, skip []uuid.UUID) ([]models.Reservation, error) {
	q := r.db.WithContext(ctx).
		Where("status IN ?", enums.NonTerminalReservationStatuses).
		Where("pickup_window_end < ?", now).
		Order("pickup_window_end ASC").
		Order("id ASC")
	if len(skip) > 0 {
		q = q.Where("id NOT IN ?", skip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Reservation
	err := q.Find(&rows).Error
	return rows, err
}
