package models

import (
	"time"

	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
)

// Notification is an in-app message about one of the user's reservations.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	ReservationID *uuid.UUID             `gorm:"column:reservation_id;type:uuid" json:"reservationId,omitempty"`
	Type          enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Title         string                 `gorm:"column:title;not null" json:"title"`
	Message       string                 `gorm:"column:message;not null" json:"message"`
	Link          *string                `gorm:"column:link" json:"link,omitempty"`
	ReadAt        *time.Time             `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
