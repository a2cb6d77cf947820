package enums

import "slices"

// RescueBagStatus is the materialized, derived status of a rescue bag.
type RescueBagStatus string

const (
	RescueBagStatusActive  RescueBagStatus = "active"
	RescueBagStatusPaused  RescueBagStatus = "paused"
	RescueBagStatusSoldOut RescueBagStatus = "sold-out"
	RescueBagStatusExpired RescueBagStatus = "expired"
)

var validRescueBagStatuses = []RescueBagStatus{
	RescueBagStatusActive,
	RescueBagStatusPaused,
	RescueBagStatusSoldOut,
	RescueBagStatusExpired,
}

// String implements fmt.Stringer.
func (s RescueBagStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RescueBagStatus.
func (s RescueBagStatus) IsValid() bool {
	return slices.Contains(validRescueBagStatuses, s)
}

// ParseRescueBagStatus converts raw input into a RescueBagStatus.
func ParseRescueBagStatus(value string) (RescueBagStatus, error) {
	return parseOneOf("rescue bag status", validRescueBagStatuses, value)
}
