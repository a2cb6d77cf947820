package models

import (
	"time"

	"github.com/foodrescue/rescue-backend/pkg/types"
	"github.com/google/uuid"
)

// Business is a food vendor offering rescue bags.
type Business struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OwnerUserID        uuid.UUID            `gorm:"column:owner_user_id;type:uuid;not null"`
	Name               string               `gorm:"column:name;not null"`
	Timezone           string               `gorm:"column:timezone;not null"`
	OperatingHours     types.OperatingHours `gorm:"column:operating_hours;type:jsonb;not null"`
	AdvanceNoticeHours float64              `gorm:"column:advance_notice_hours;not null"`
	RequiresReadyStep  bool                 `gorm:"column:requires_ready_step;not null"`
	MaxBagsPerDay      int                  `gorm:"column:max_bags_per_day;not null"`
	IsActive           bool                 `gorm:"column:is_active;not null"`
	Latitude           *float64             `gorm:"column:latitude"`
	Longitude          *float64             `gorm:"column:longitude"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Business) TableName() string { return "businesses" }
