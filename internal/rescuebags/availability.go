package rescuebags

import (
	"time"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// DeriveStatus is the single merge function for a bag's status. Precedence is
// explicit pause, then an elapsed pickup window, then exhausted stock.
func DeriveStatus(bag models.RescueBag, now time.Time) enums.RescueBagStatus {
	switch {
	case bag.PausedAt != nil:
		return enums.RescueBagStatusPaused
	case now.After(bag.PickupEnd):
		return enums.RescueBagStatusExpired
	case bag.ReservedQty >= bag.AvailableQty:
		return enums.RescueBagStatusSoldOut
	default:
		return enums.RescueBagStatusActive
	}
}

// Remaining returns the units still reservable.
func Remaining(bag models.RescueBag) int {
	if left := bag.AvailableQty - bag.ReservedQty; left > 0 {
		return left
	}
	return 0
}

// IsAvailable reports whether the bag can take a new reservation at now.
func IsAvailable(bag models.RescueBag, now time.Time) bool {
	return DeriveStatus(bag, now) == enums.RescueBagStatusActive &&
		Remaining(bag) > 0 &&
		!now.After(bag.PickupEnd)
}

// TimeUntilPickup returns the wait until the pickup window opens, zero while
// it is open and nil once it has closed.
func TimeUntilPickup(bag models.RescueBag, now time.Time) *time.Duration {
	var d time.Duration
	switch {
	case now.Before(bag.PickupStart):
		d = bag.PickupStart.Sub(now)
	case now.After(bag.PickupEnd):
		return nil
	}
	return &d
}

// IsPickupWindowActive reports whether now falls inside the bag's window.
func IsPickupWindowActive(bag models.RescueBag, now time.Time) bool {
	return !now.Before(bag.PickupStart) && !now.After(bag.PickupEnd)
}

// DiscountPercentage is round((original - price) / original * 100). It is 0
// when no original value is recorded or the price is not below it.
func DiscountPercentage(bag models.RescueBag) int {
	if !bag.OriginalValue.Valid {
		return 0
	}
	original := bag.OriginalValue.Decimal
	if !original.IsPositive() || !original.GreaterThan(bag.Price) {
		return 0
	}
	pct := original.Sub(bag.Price).Div(original).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

// MoneySavedPerUnit is original value minus price, floored at zero.
func MoneySavedPerUnit(bag models.RescueBag) decimal.Decimal {
	if !bag.OriginalValue.Valid {
		return decimal.Zero
	}
	saved := bag.OriginalValue.Decimal.Sub(bag.Price)
	if saved.IsNegative() {
		return decimal.Zero
	}
	return saved
}

// View is the read model returned to clients.
type View struct {
	ID                   string                `json:"id"`
	BusinessID           string                `json:"businessId"`
	Title                string                `json:"title"`
	Description          string                `json:"description,omitempty"`
	Category             string                `json:"category,omitempty"`
	Price                decimal.Decimal       `json:"price"`
	OriginalValue        *decimal.Decimal      `json:"originalValue,omitempty"`
	DiscountPercentage   int                   `json:"discountPercentage"`
	Available            int                   `json:"available"`
	Reserved             int                   `json:"reserved"`
	Remaining            int                   `json:"remaining"`
	Status               enums.RescueBagStatus `json:"status"`
	IsAvailable          bool                  `json:"isAvailable"`
	PickupStart          time.Time             `json:"pickupStart"`
	PickupEnd            time.Time             `json:"pickupEnd"`
	IsPickupWindowActive bool                  `json:"isPickupWindowActive"`
	TimeUntilPickupSecs  *int64                `json:"timeUntilPickupSeconds"`
	CO2Saved             float64               `json:"co2Saved"`
	WaterSaved           float64               `json:"waterSaved"`
}

// BuildView composes the availability helpers for the read path. Status is
// derived at now so stale materialized values are never surfaced.
func BuildView(bag models.RescueBag, now time.Time) View {
	view := View{
		ID:                   bag.ID.String(),
		BusinessID:           bag.BusinessID.String(),
		Title:                bag.Title,
		Description:          bag.Description,
		Category:             bag.Category,
		Price:                bag.Price,
		DiscountPercentage:   DiscountPercentage(bag),
		Available:            bag.AvailableQty,
		Reserved:             bag.ReservedQty,
		Remaining:            Remaining(bag),
		Status:               DeriveStatus(bag, now),
		IsAvailable:          IsAvailable(bag, now),
		PickupStart:          bag.PickupStart,
		PickupEnd:            bag.PickupEnd,
		IsPickupWindowActive: IsPickupWindowActive(bag, now),
		CO2Saved:             bag.CO2Saved,
		WaterSaved:           bag.WaterSaved,
	}
	if bag.OriginalValue.Valid {
		original := bag.OriginalValue.Decimal
		view.OriginalValue = &original
	}
	if wait := TimeUntilPickup(bag, now); wait != nil {
		secs := int64(wait.Seconds())
		view.TimeUntilPickupSecs = &secs
	}
	return view
}
