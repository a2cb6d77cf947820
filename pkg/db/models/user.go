package models

import (
	"time"

	"github.com/foodrescue/rescue-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User holds the identity fields this service reads plus cumulative impact
// totals, which only ever grow.
type User struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email           string          `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name            string          `gorm:"column:name;not null"`
	TotalSaved      decimal.Decimal `gorm:"column:total_saved;type:numeric(14,2);not null"`
	TotalCO2eSaved  float64         `gorm:"column:total_co2e_saved;not null;default:0"`
	TotalWaterSaved float64         `gorm:"column:total_water_saved;not null;default:0"`
	// FavoritesNotificationsEnabled is the global switch for favorite alerts.
	FavoritesNotificationsEnabled bool                  `gorm:"column:favorites_notifications_enabled;not null;default:true"`
	Preferences                   types.UserPreferences `gorm:"column:preferences;type:jsonb;not null"`
	CreatedAt                     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
