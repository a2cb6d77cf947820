package payloads

import (
	"time"

	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationCreatedEvent is emitted once a reservation holds inventory.
type ReservationCreatedEvent struct {
	ReservationID     uuid.UUID       `json:"reservation_id" validate:"required"`
	UserID            uuid.UUID       `json:"user_id" validate:"required"`
	BusinessID        uuid.UUID       `json:"business_id"`
	RescueBagID       uuid.UUID       `json:"rescue_bag_id" validate:"required"`
	Quantity          int             `json:"quantity" validate:"gt=0"`
	PaymentAmount     decimal.Decimal `json:"payment_amount"`
	PickupWindowStart time.Time       `json:"pickup_window_start"`
	PickupWindowEnd   time.Time       `json:"pickup_window_end"`
}

// ReservationStatusChangedEvent covers confirm, ready and expiry transitions.
type ReservationStatusChangedEvent struct {
	ReservationID uuid.UUID               `json:"reservation_id" validate:"required"`
	UserID        uuid.UUID               `json:"user_id" validate:"required"`
	BusinessID    uuid.UUID               `json:"business_id"`
	RescueBagID   uuid.UUID               `json:"rescue_bag_id" validate:"required"`
	From          enums.ReservationStatus `json:"from"`
	To            enums.ReservationStatus `json:"to"`
	ReleasedQty   int                     `json:"released_qty,omitempty"`
	ChangedAt     time.Time               `json:"changed_at"`
}

// ReservationCancelledEvent is emitted when a user, business or the system cancels.
type ReservationCancelledEvent struct {
	ReservationID uuid.UUID         `json:"reservation_id" validate:"required"`
	UserID        uuid.UUID         `json:"user_id" validate:"required"`
	BusinessID    uuid.UUID         `json:"business_id"`
	RescueBagID   uuid.UUID         `json:"rescue_bag_id" validate:"required"`
	ReleasedQty   int               `json:"released_qty"`
	CancelledBy   enums.CancelledBy `json:"cancelled_by"`
	Reason        string            `json:"reason"`
	CancelledAt   time.Time         `json:"cancelled_at"`
}

// ReservationPickedUpEvent carries the impact snapshot consumed by analytics.
type ReservationPickedUpEvent struct {
	ReservationID uuid.UUID          `json:"reservation_id" validate:"required"`
	UserID        uuid.UUID          `json:"user_id" validate:"required"`
	BusinessID    uuid.UUID          `json:"business_id"`
	RescueBagID   uuid.UUID          `json:"rescue_bag_id" validate:"required"`
	Quantity      int                `json:"quantity" validate:"gt=0"`
	PaymentAmount decimal.Decimal    `json:"payment_amount"`
	MoneySaved    decimal.Decimal    `json:"money_saved"`
	CO2Saved      float64            `json:"co2_saved"`
	WaterSaved    float64            `json:"water_saved"`
	PickupMethod  enums.PickupMethod `json:"pickup_method"`
	PickedUpAt    time.Time          `json:"picked_up_at"`
}

// RescueBagStatusEvent is emitted when a business pauses or resumes a bag or
// its window closes.
type RescueBagStatusEvent struct {
	RescueBagID uuid.UUID             `json:"rescue_bag_id" validate:"required"`
	BusinessID  uuid.UUID             `json:"business_id"`
	Status      enums.RescueBagStatus `json:"status"`
	ChangedAt   time.Time             `json:"changed_at"`
}

// ImpactCreditedEvent carries a user's running totals after a pickup is credited.
type ImpactCreditedEvent struct {
	UserID          uuid.UUID       `json:"user_id" validate:"required"`
	ReservationID   uuid.UUID       `json:"reservation_id" validate:"required"`
	TotalSaved      decimal.Decimal `json:"total_saved"`
	TotalCO2eSaved  float64         `json:"total_co2e_saved"`
	TotalWaterSaved float64         `json:"total_water_saved"`
	CreditedAt      time.Time       `json:"credited_at"`
}
