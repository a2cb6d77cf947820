package impact

import (
	"context"
	"time"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists impact credits and user totals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertCredit(ctx context.Context, credit *models.ImpactCredit) (bool, error)
	IncrementTotals(ctx context.Context, userID uuid.UUID, money decimal.Decimal, co2, water float64) error
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	PickupSummary(ctx context.Context, userID uuid.UUID) (PickupSummary, error)
	RecentPickups(ctx context.Context, userID uuid.UUID, limit int) ([]RecentPickup, error)
}

// PickupSummary aggregates a user's picked-up reservations.
type PickupSummary struct {
	Orders int64
	Spent  decimal.Decimal
}

// RecentPickup is a compact row for the profile page.
type RecentPickup struct {
	ReservationID uuid.UUID       `json:"reservationId"`
	RescueBagID   uuid.UUID       `json:"rescueBagId"`
	Title         string          `json:"title"`
	Quantity      int             `json:"quantity"`
	MoneySaved    decimal.Decimal `json:"moneySaved"`
	CO2Saved      float64         `json:"co2Saved"`
	WaterSaved    float64         `json:"waterSaved"`
	PickedUpAt    *time.Time      `json:"pickedUpAt"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an impact repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertCredit stores the credit row and reports false when the reservation
// was credited before.
func (r *repository) InsertCredit(ctx context.Context, credit *models.ImpactCredit) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reservation_id"}},
			DoNothing: true,
		}).
		Create(credit)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementTotals(ctx context.Context, userID uuid.UUID, money decimal.Decimal, co2, water float64) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"total_saved":       gorm.Expr("total_saved + ?", money),
			"total_co2e_saved":  gorm.Expr("total_co2e_saved + ?", co2),
			"total_water_saved": gorm.Expr("total_water_saved + ?", water),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) PickupSummary(ctx context.Context, userID uuid.UUID) (PickupSummary, error) {
	var rows []struct {
		PaymentAmount decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Select("payment_amount").
		Where("user_id = ? AND status = ?", userID, enums.ReservationStatusPickedUp).
		Scan(&rows).Error
	if err != nil {
		return PickupSummary{}, err
	}
	summary := PickupSummary{Spent: decimal.Zero}
	for _, row := range rows {
		summary.Orders++
		summary.Spent = summary.Spent.Add(row.PaymentAmount)
	}
	return summary, nil
}

func (r *repository) RecentPickups(ctx context.Context, userID uuid.UUID, limit int) ([]RecentPickup, error) {
	var rows []struct {
		ID                uuid.UUID
		RescueBagID       uuid.UUID
		Title             string
		Quantity          int
		MoneySaved        decimal.Decimal
		CO2Saved          float64 `gorm:"column:co2_saved"`
		WaterSaved        float64
		PickupConfirmedAt *time.Time
	}
	query := r.db.WithContext(ctx).
		Table("reservations AS r").
		Select("r.id, r.rescue_bag_id, b.title, r.quantity, r.money_saved, r.co2_saved, r.water_saved, r.pickup_confirmed_at").
		Joins("JOIN rescue_bags b ON b.id = r.rescue_bag_id").
		Where("r.user_id = ? AND r.status = ?", userID, enums.ReservationStatusPickedUp).
		Order("r.pickup_confirmed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]RecentPickup, 0, len(rows))
	for _, row := range rows {
		out = append(out, RecentPickup{
			ReservationID: row.ID,
			RescueBagID:   row.RescueBagID,
			Title:         row.Title,
			Quantity:      row.Quantity,
			MoneySaved:    row.MoneySaved,
			CO2Saved:      row.CO2Saved,
			WaterSaved:    row.WaterSaved,
			PickedUpAt:    row.PickupConfirmedAt,
		})
	}
	return out, nil
}
