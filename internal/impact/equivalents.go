package impact

import "math"

const (
	co2PerTreeKg      = 0.022
	carMilesPerCO2Kg  = 2.3
	waterPerShowerMin = 2.5
	phoneChargesPerKg = 0.5
)

// Equivalents restates saved CO2 and water in everyday units.
type Equivalents struct {
	TreesPlanted       int64 `json:"treesPlanted"`
	CarMilesSaved      int64 `json:"carMilesSaved"`
	ShowerMinutesSaved int64 `json:"showerMinutesSaved"`
	PhoneChargesSaved  int64 `json:"phoneChargesSaved"`
}

// EquivalentsFor converts totals, rounding each figure to the nearest unit.
func EquivalentsFor(co2Kg, water float64) Equivalents {
	return Equivalents{
		TreesPlanted:       round(co2Kg / co2PerTreeKg),
		CarMilesSaved:      round(co2Kg * carMilesPerCO2Kg),
		ShowerMinutesSaved: round(water / waterPerShowerMin),
		PhoneChargesSaved:  round(co2Kg * phoneChargesPerKg),
	}
}

func round(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}
