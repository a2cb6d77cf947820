package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite links a user to a business they follow. NotificationsEnabled opts
// the user into alerts for that business specifically.
type Favorite struct {
	UserID               uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	BusinessID           uuid.UUID `gorm:"column:business_id;type:uuid;primaryKey"`
	NotificationsEnabled bool      `gorm:"column:notifications_enabled;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Favorite) TableName() string { return "favorites" }
