package impact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const recentPickupsLimit = 10

// Accumulator maintains each user's cumulative impact totals.
type Accumulator interface {
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*CreditResult, error)
	Totals(ctx context.Context, userID uuid.UUID) (*Totals, error)
	Profile(ctx context.Context, userID uuid.UUID) (*ProfileStats, error)
}

// CreditInput is the impact snapshot of one picked-up reservation.
type CreditInput struct {
	ReservationID uuid.UUID
	UserID        uuid.UUID
	MoneySaved    decimal.Decimal
	CO2Saved      float64
	WaterSaved    float64
	CreditedAt    time.Time
}

// Totals are the cumulative figures stored on the user.
type Totals struct {
	TotalSaved      decimal.Decimal `json:"totalSaved"`
	TotalCO2eSaved  float64         `json:"totalCO2eSaved"`
	TotalWaterSaved float64         `json:"totalWaterSaved"`
}

// CreditResult reports the totals after crediting. Credited is false when
// the reservation had already been counted.
type CreditResult struct {
	Credited bool
	Totals   Totals
}

// ProfileStats backs the profile impact page.
type ProfileStats struct {
	Totals
	TotalOrders       int64           `json:"totalOrders"`
	TotalSpent        decimal.Decimal `json:"totalSpent"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	Equivalents       Equivalents     `json:"environmentalEquivalents"`
	RecentPickups     []RecentPickup  `json:"recentPickups"`
}

type service struct {
	repo    Repository
	metrics *metrics.ReservationMetrics
}

// NewService wires the accumulator. metrics may be nil.
func NewService(repo Repository, m *metrics.ReservationMetrics) (Accumulator, error) {
	if repo == nil {
		return nil, fmt.Errorf("impact repository required")
	}
	return &service{repo: repo, metrics: m}, nil
}

// Credit adds the snapshot to the user's totals at most once per reservation.
// It must run inside the transaction that marks the reservation picked up.
func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*CreditResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.ReservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.MoneySaved.IsNegative() || input.CO2Saved < 0 || input.WaterSaved < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "impact values must not be negative")
	}
	if input.CreditedAt.IsZero() {
		input.CreditedAt = time.Now()
	}

	repo := s.repo.WithTx(tx)
	inserted, err := repo.InsertCredit(ctx, &models.ImpactCredit{
		ReservationID: input.ReservationID,
		UserID:        input.UserID,
		MoneySaved:    input.MoneySaved,
		CO2Saved:      input.CO2Saved,
		WaterSaved:    input.WaterSaved,
		CreditedAt:    input.CreditedAt.UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record impact credit")
	}
	if inserted {
		if err := repo.IncrementTotals(ctx, input.UserID, input.MoneySaved, input.CO2Saved, input.WaterSaved); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment impact totals")
		}
	}
	s.metrics.ObserveCredit(inserted)

	user, err := repo.FindUser(ctx, input.UserID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return &CreditResult{Credited: inserted, Totals: totalsOf(user)}, nil
}

func (s *service) Totals(ctx context.Context, userID uuid.UUID) (*Totals, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	totals := totalsOf(user)
	return &totals, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*ProfileStats, error) {
	totals, err := s.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.PickupSummary(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize pickups")
	}
	recent, err := s.repo.RecentPickups(ctx, userID, recentPickupsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent pickups")
	}

	average := decimal.Zero
	if summary.Orders > 0 {
		average = summary.Spent.Div(decimal.NewFromInt(summary.Orders)).Round(2)
	}
	return &ProfileStats{
		Totals:            *totals,
		TotalOrders:       summary.Orders,
		TotalSpent:        summary.Spent,
		AverageOrderValue: average,
		Equivalents:       EquivalentsFor(totals.TotalCO2eSaved, totals.TotalWaterSaved),
		RecentPickups:     recent,
	}, nil
}

func totalsOf(user *models.User) Totals {
	return Totals{
		TotalSaved:      user.TotalSaved,
		TotalCO2eSaved:  user.TotalCO2eSaved,
		TotalWaterSaved: user.TotalWaterSaved,
	}
}

func mapUserErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}
