package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DayHours is a single open/close pair in "HH:MM" 24h notation.
type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// OperatingHours maps lowercase weekday names to their opening hours and is
// stored as jsonb. A missing weekday means the business is closed that day.
type OperatingHours map[string]DayHours

func (h OperatingHours) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("operating hours: %w", err)
	}
	return string(raw), nil
}

func (h *OperatingHours) Scan(value interface{}) error {
	if value == nil {
		*h = OperatingHours{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("operating hours: unsupported scan type %T", value)
	}

	out := OperatingHours{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("operating hours: %w", err)
		}
	}
	*h = out
	return nil
}

// WeekdayKey is the map key used for day.
func WeekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// For returns the hours configured for the weekday.
func (h OperatingHours) For(day time.Weekday) (DayHours, bool) {
	hours, ok := h[WeekdayKey(day)]
	return hours, ok
}

// Validate checks every entry uses a known weekday and parseable clock values.
func (h OperatingHours) Validate() error {
	for day, hours := range h {
		if _, ok := weekdays[day]; !ok {
			return fmt.Errorf("operating hours: unknown weekday %q", day)
		}
		if _, err := ParseClock(hours.Open); err != nil {
			return fmt.Errorf("operating hours %s open: %w", day, err)
		}
		if _, err := ParseClock(hours.Close); err != nil {
			return fmt.Errorf("operating hours %s close: %w", day, err)
		}
	}
	return nil
}

var weekdays = map[string]struct{}{
	"sunday": {}, "monday": {}, "tuesday": {}, "wednesday": {},
	"thursday": {}, "friday": {}, "saturday": {},
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
