package models

import (
	"time"

	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RescueBag is a discounted surplus-food offering with a fixed pickup window.
// Status is materialized and always equals the derived value for the row's
// counters, pause flag and window at the time of the last mutation.
type RescueBag struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID    uuid.UUID             `gorm:"column:business_id;type:uuid;not null;index"`
	Title         string                `gorm:"column:title;not null"`
	Description   string                `gorm:"column:description"`
	Category      string                `gorm:"column:category"`
	Price         decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	OriginalValue decimal.NullDecimal   `gorm:"column:original_value;type:numeric(12,2)"`
	AvailableQty  int                   `gorm:"column:available_qty;not null"`
	ReservedQty   int                   `gorm:"column:reserved_qty;not null;default:0"`
	PickupStart   time.Time             `gorm:"column:pickup_start;not null"`
	PickupEnd     time.Time             `gorm:"column:pickup_end;not null"`
	Status        enums.RescueBagStatus `gorm:"column:status;type:text;not null"`
	PausedAt      *time.Time            `gorm:"column:paused_at"`
	CO2Saved      float64               `gorm:"column:co2_saved;not null;default:0"`
	WaterSaved    float64               `gorm:"column:water_saved;not null;default:0"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (RescueBag) TableName() string { return "rescue_bags" }
