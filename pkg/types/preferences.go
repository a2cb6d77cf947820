package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// NotificationPreferences toggles the notification categories a user receives.
type NotificationPreferences struct {
	FavoritesAlerts   bool `json:"favoritesAlerts"`
	PickupReminders   bool `json:"pickupReminders"`
	NewRescueBags     bool `json:"newRescueBags"`
	PromotionalOffers bool `json:"promotionalOffers"`
}

// PrivacyPreferences controls what other parties may see about a user.
type PrivacyPreferences struct {
	ProfileVisibility      string `json:"profileVisibility"`
	OrderHistoryVisibility string `json:"orderHistoryVisibility"`
	LocationSharing        bool   `json:"locationSharing"`
}

// UserPreferences is stored as a single jsonb column on users.
type UserPreferences struct {
	Dietary       []string                `json:"dietary"`
	Notifications NotificationPreferences `json:"notifications"`
	Privacy       PrivacyPreferences      `json:"privacy"`
}

// DefaultUserPreferences is what a user without stored preferences gets.
func DefaultUserPreferences() UserPreferences {
	return UserPreferences{
		Dietary: []string{},
		Notifications: NotificationPreferences{
			FavoritesAlerts: true,
			PickupReminders: true,
			NewRescueBags:   true,
		},
		Privacy: PrivacyPreferences{
			ProfileVisibility:      "private",
			OrderHistoryVisibility: "private",
		},
	}
}

// Value stores an unset struct as an empty document so it reads back as the
// defaults.
func (p UserPreferences) Value() (driver.Value, error) {
	if p.Dietary == nil && p.Notifications == (NotificationPreferences{}) && p.Privacy == (PrivacyPreferences{}) {
		return "{}", nil
	}
	if p.Dietary == nil {
		p.Dietary = []string{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("user preferences: %w", err)
	}
	return string(raw), nil
}

// Scan overlays the stored document on the defaults, so keys added later
// read with their default value.
func (p *UserPreferences) Scan(value interface{}) error {
	out := DefaultUserPreferences()
	if value == nil {
		*p = out
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("user preferences: unsupported scan type %T", value)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("user preferences: %w", err)
		}
	}
	if out.Dietary == nil {
		out.Dietary = []string{}
	}
	*p = out
	return nil
}
