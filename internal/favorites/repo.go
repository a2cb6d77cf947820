package favorites

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
)

// Repository persists the user to business favorite links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListBusinesses(ctx context.Context, userID uuid.UUID) ([]models.Business, error)
	Add(ctx context.Context, favorite *models.Favorite) (bool, error)
	Remove(ctx context.Context, userID, businessID uuid.UUID) (bool, error)
	SetNotifications(ctx context.Context, userID, businessID uuid.UUID, enabled bool) (bool, error)
	SetGlobalNotifications(ctx context.Context, userID uuid.UUID, enabled bool) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a favorites repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListBusinesses returns the active businesses userID follows, most recently
// added first.
func (r *repository) ListBusinesses(ctx context.Context, userID uuid.UUID) ([]models.Business, error) {
	var rows []models.Business
	err := r.db.WithContext(ctx).
		Table("businesses").
		Select("businesses.*").
		Joins("JOIN favorites ON favorites.business_id = businesses.id").
		Where("favorites.user_id = ?", userID).
		Where("businesses.is_active = ?", true).
		Order("favorites.created_at DESC").
		Order("businesses.id ASC").
		Find(&rows).Error
	return rows, err
}

// Add inserts the link and reports false when it already existed.
func (r *repository) Add(ctx context.Context, favorite *models.Favorite) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "business_id"}},
			DoNothing: true,
		}).
		Create(favorite)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Remove(ctx context.Context, userID, businessID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND business_id = ?", userID, businessID).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetNotifications reports false when userID does not follow businessID.
func (r *repository) SetNotifications(ctx context.Context, userID, businessID uuid.UUID, enabled bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ? AND business_id = ?", userID, businessID).
		Update("notifications_enabled", enabled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetGlobalNotifications(ctx context.Context, userID uuid.UUID, enabled bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("favorites_notifications_enabled", enabled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
