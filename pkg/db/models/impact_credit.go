package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImpactCredit records that a picked-up reservation has been added to the
// user's totals. At most one row exists per reservation.
type ImpactCredit struct {
	ReservationID uuid.UUID       `gorm:"column:reservation_id;type:uuid;primaryKey"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	MoneySaved    decimal.Decimal `gorm:"column:money_saved;type:numeric(12,2);not null"`
	CO2Saved      float64         `gorm:"column:co2_saved;not null"`
	WaterSaved    float64         `gorm:"column:water_saved;not null"`
	CreditedAt    time.Time       `gorm:"column:credited_at;not null"`
}

func (ImpactCredit) TableName() string { return "impact_credits" }
