package dbtest

import (
	"testing"
	"time"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeedUser inserts a user with zero impact totals.
func SeedUser(t testing.TB, conn *gorm.DB) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:         id,
		Email:      id.String() + "@example.com",
		Name:       "Test User",
		TotalSaved: decimal.Zero,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedBusiness inserts an active UTC business open every day 08:00-20:00
// with a two hour advance notice. mutate may adjust fields before insert.
func SeedBusiness(t testing.TB, conn *gorm.DB, ownerID uuid.UUID, mutate func(*models.Business)) models.Business {
	t.Helper()
	hours := types.OperatingHours{}
	for day := time.Sunday; day <= time.Saturday; day++ {
		hours[types.WeekdayKey(day)] = types.DayHours{Open: "08:00", Close: "20:00"}
	}
	business := models.Business{
		ID:                 uuid.New(),
		OwnerUserID:        ownerID,
		Name:               "Corner Bakery",
		Timezone:           "UTC",
		OperatingHours:     hours,
		AdvanceNoticeHours: 2,
		RequiresReadyStep:  true,
		MaxBagsPerDay:      10,
		IsActive:           true,
	}
	if mutate != nil {
		mutate(&business)
	}
	if err := conn.Create(&business).Error; err != nil {
		t.Fatalf("seed business: %v", err)
	}
	return business
}

// SeedBag inserts an active bag priced 5.99 (worth 15.00) with the given
// quantity and pickup window.
func SeedBag(t testing.TB, conn *gorm.DB, businessID uuid.UUID, qty int, start, end time.Time, mutate func(*models.RescueBag)) models.RescueBag {
	t.Helper()
	bag := models.RescueBag{
		ID:            uuid.New(),
		BusinessID:    businessID,
		Title:         "Pastry surprise",
		Category:      "bakery",
		Price:         decimal.RequireFromString("5.99"),
		OriginalValue: decimal.NewNullDecimal(decimal.RequireFromString("15.00")),
		AvailableQty:  qty,
		PickupStart:   start.UTC(),
		PickupEnd:     end.UTC(),
		Status:        enums.RescueBagStatusActive,
		CO2Saved:      2.0,
		WaterSaved:    50,
	}
	if mutate != nil {
		mutate(&bag)
	}
	if err := conn.Create(&bag).Error; err != nil {
		t.Fatalf("seed rescue bag: %v", err)
	}
	return bag
}

// ReloadBag fetches the current row.
func ReloadBag(t testing.TB, conn *gorm.DB, id uuid.UUID) models.RescueBag {
	t.Helper()
	var bag models.RescueBag
	if err := conn.First(&bag, "id = ?", id).Error; err != nil {
		t.Fatalf("reload rescue bag: %v", err)
	}
	return bag
}
