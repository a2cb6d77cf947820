package models

import (
	"time"

	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reservation is a user's claim on a quantity of one rescue bag. Payment
// amount and impact snapshot are fixed at creation.
type Reservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	RescueBagID uuid.UUID               `gorm:"column:rescue_bag_id;type:uuid;not null;index"`
	BusinessID  uuid.UUID               `gorm:"column:business_id;type:uuid;not null;index"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	Status      enums.ReservationStatus `gorm:"column:status;type:text;not null"`

	PaymentAmount        decimal.Decimal     `gorm:"column:payment_amount;type:numeric(12,2);not null"`
	PaymentCurrency      enums.Currency      `gorm:"column:payment_currency;type:text;not null"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	PaymentTransactionID *string             `gorm:"column:payment_transaction_id"`

	ScheduledTime       time.Time          `gorm:"column:scheduled_time;not null"`
	PickupWindowStart   time.Time          `gorm:"column:pickup_window_start;not null"`
	PickupWindowEnd     time.Time          `gorm:"column:pickup_window_end;not null;index"`
	PickupConfirmedAt   *time.Time         `gorm:"column:pickup_confirmed_at"`
	PickupMethod        enums.PickupMethod `gorm:"column:pickup_method;type:text;not null"`
	SpecialInstructions *string            `gorm:"column:special_instructions"`

	CO2Saved   float64         `gorm:"column:co2_saved;not null"`
	WaterSaved float64         `gorm:"column:water_saved;not null"`
	MoneySaved decimal.Decimal `gorm:"column:money_saved;type:numeric(12,2);not null"`

	CancellationReason *string            `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time         `gorm:"column:cancelled_at"`
	CancelledBy        *enums.CancelledBy `gorm:"column:cancelled_by;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Reservation) TableName() string { return "reservations" }
