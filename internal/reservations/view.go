package reservations

import (
	"time"

	"github.com/foodrescue/rescue-backend/internal/impact"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// View is the reservation representation returned by the API.
type View struct {
	ID           string                  `json:"id"`
	UserID       string                  `json:"userId"`
	RescueBagID  string                  `json:"rescueBagId"`
	BusinessID   string                  `json:"businessId"`
	Quantity     int                     `json:"quantity"`
	Status       enums.ReservationStatus `json:"status"`
	Payment      PaymentView             `json:"payment"`
	Pickup       PickupView              `json:"pickupDetails"`
	Impact       ImpactView              `json:"environmentalImpact"`
	Cancellation *CancellationView       `json:"cancellation,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

type PaymentView struct {
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	TransactionID *string             `json:"transactionId,omitempty"`
}

type PickupView struct {
	ScheduledTime       time.Time          `json:"scheduledTime"`
	WindowStart         time.Time          `json:"windowStart"`
	WindowEnd           time.Time          `json:"windowEnd"`
	ConfirmedAt         *time.Time         `json:"pickupConfirmedAt,omitempty"`
	Method              enums.PickupMethod `json:"pickupMethod"`
	SpecialInstructions *string            `json:"specialInstructions,omitempty"`
}

type ImpactView struct {
	CO2Saved   float64         `json:"co2Saved"`
	WaterSaved float64         `json:"waterSaved"`
	MoneySaved decimal.Decimal `json:"moneySaved"`
}

type CancellationView struct {
	Reason      string             `json:"reason"`
	CancelledAt *time.Time         `json:"cancelledAt,omitempty"`
	CancelledBy *enums.CancelledBy `json:"cancelledBy,omitempty"`
}

// ActivePickup decorates a confirmed or ready reservation with timing hints.
type ActivePickup struct {
	View
	IsPickupWindowActive bool               `json:"isPickupWindowActive"`
	TimeUntilPickupSecs  *int64             `json:"timeUntilPickupSeconds"`
	IsOverdue            bool               `json:"isOverdue"`
	PickupStatus         enums.PickupStatus `json:"pickupStatus"`
}

// PickupConfirmation is returned once a pickup has been recorded.
type PickupConfirmation struct {
	Reservation  View          `json:"reservation"`
	UpdatedStats impact.Totals `json:"updatedStats"`
	Credited     bool          `json:"credited"`
}

// ListResult is one page of reservations.
type ListResult struct {
	Reservations []View `json:"reservations"`
	NextCursor   string `json:"nextCursor,omitempty"`
}

// Instructions guide the user through collecting a reservation.
type Instructions struct {
	BusinessName        string             `json:"businessName"`
	BagTitle            string             `json:"bagTitle"`
	ScheduledTime       time.Time          `json:"scheduledTime"`
	WindowStart         time.Time          `json:"windowStart"`
	WindowEnd           time.Time          `json:"windowEnd"`
	Method              enums.PickupMethod `json:"pickupMethod"`
	SpecialInstructions *string            `json:"specialInstructions,omitempty"`
	Steps               []string           `json:"steps"`
}

// BuildView maps the stored row to its API shape.
func BuildView(r models.Reservation) View {
	view := View{
		ID:          r.ID.String(),
		UserID:      r.UserID.String(),
		RescueBagID: r.RescueBagID.String(),
		BusinessID:  r.BusinessID.String(),
		Quantity:    r.Quantity,
		Status:      r.Status,
		Payment: PaymentView{
			Amount:        r.PaymentAmount,
			Currency:      r.PaymentCurrency,
			Method:        r.PaymentMethod,
			Status:        r.PaymentStatus,
			TransactionID: r.PaymentTransactionID,
		},
		Pickup: PickupView{
			ScheduledTime:       r.ScheduledTime,
			WindowStart:         r.PickupWindowStart,
			WindowEnd:           r.PickupWindowEnd,
			ConfirmedAt:         r.PickupConfirmedAt,
			Method:              r.PickupMethod,
			SpecialInstructions: r.SpecialInstructions,
		},
		Impact: ImpactView{
			CO2Saved:   r.CO2Saved,
			WaterSaved: r.WaterSaved,
			MoneySaved: r.MoneySaved,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CancellationReason != nil {
		view.Cancellation = &CancellationView{
			Reason:      *r.CancellationReason,
			CancelledAt: r.CancelledAt,
			CancelledBy: r.CancelledBy,
		}
	}
	return view
}

// PickupStatusAt classifies now against the reservation's window.
func PickupStatusAt(r models.Reservation, now time.Time) enums.PickupStatus {
	switch {
	case now.Before(r.PickupWindowStart):
		return enums.PickupStatusUpcoming
	case now.After(r.PickupWindowEnd):
		return enums.PickupStatusExpired
	default:
		return enums.PickupStatusActive
	}
}

// IsOverdue reports a ready reservation whose window has passed.
func IsOverdue(r models.Reservation, now time.Time) bool {
	return r.Status == enums.ReservationStatusReady && now.After(r.PickupWindowEnd)
}

func buildActivePickup(r models.Reservation, now time.Time) ActivePickup {
	out := ActivePickup{
		View:                 BuildView(r),
		IsPickupWindowActive: !now.Before(r.PickupWindowStart) && !now.After(r.PickupWindowEnd),
		IsOverdue:            IsOverdue(r, now),
		PickupStatus:         PickupStatusAt(r, now),
	}
	if !now.After(r.PickupWindowEnd) {
		var secs int64
		if now.Before(r.PickupWindowStart) {
			secs = int64(r.PickupWindowStart.Sub(now).Seconds())
		}
		out.TimeUntilPickupSecs = &secs
	}
	return out
}

func pickupSteps(method enums.PickupMethod) []string {
	steps := []string{
		"Arrive at the business during your pickup window",
		"Show your reservation confirmation to staff",
		"Confirm pickup in the app",
		"Collect your rescue bag",
		"Enjoy your food and help reduce waste!",
	}
	if method != enums.PickupMethodCurbside {
		return steps
	}
	curbside := []string{"Call the business when you arrive", steps[0], "Wait for staff to bring your order outside"}
	return append(curbside, steps[1:]...)
}
