// Package users owns the profile settings a user edits about themselves.
package users

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/types"
)

// DietaryOptions are the accepted dietary preference values.
var DietaryOptions = []string{"vegetarian", "vegan", "gluten-free", "dairy-free", "nut-free", "none"}

// VisibilityOptions are the accepted privacy visibility values.
var VisibilityOptions = []string{"public", "private"}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service reads and patches user preferences.
type Service interface {
	Preferences(ctx context.Context, userID uuid.UUID) (*PreferencesView, error)
	UpdatePreferences(ctx context.Context, input UpdatePreferencesInput) (*PreferencesView, error)
}

// PreferencesView is returned by both operations.
type PreferencesView struct {
	types.UserPreferences
	FavoritesNotificationsEnabled bool `json:"favoritesNotificationsEnabled"`
}

// UpdatePreferencesInput is a partial update: nil fields keep their stored
// value and Dietary replaces the whole list.
type UpdatePreferencesInput struct {
	UserID        uuid.UUID
	Dietary       *[]string
	Notifications *NotificationsPatch
	Privacy       *PrivacyPatch
}

type NotificationsPatch struct {
	FavoritesAlerts   *bool
	PickupReminders   *bool
	NewRescueBags     *bool
	PromotionalOffers *bool
}

type PrivacyPatch struct {
	ProfileVisibility      *string
	OrderHistoryVisibility *string
	LocationSharing        *bool
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the preferences service. logg may be nil.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) Preferences(ctx context.Context, userID uuid.UUID) (*PreferencesView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapFindErr(err)
	}
	return &PreferencesView{
		UserPreferences:               user.Preferences,
		FavoritesNotificationsEnabled: user.FavoritesNotificationsEnabled,
	}, nil
}

func (s *service) UpdatePreferences(ctx context.Context, input UpdatePreferencesInput) (*PreferencesView, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validatePatch(input); err != nil {
		return nil, err
	}

	var view PreferencesView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.LockByID(ctx, input.UserID)
		if err != nil {
			return mapFindErr(err)
		}
		prefs := apply(user.Preferences, input)
		if err := repo.UpdatePreferences(ctx, input.UserID, prefs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update preferences")
		}
		view = PreferencesView{
			UserPreferences:               prefs,
			FavoritesNotificationsEnabled: user.FavoritesNotificationsEnabled,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, input.UserID.String()), "preferences updated")
	}
	return &view, nil
}

func apply(prefs types.UserPreferences, input UpdatePreferencesInput) types.UserPreferences {
	if input.Dietary != nil {
		dietary := make([]string, 0, len(*input.Dietary))
		for _, d := range *input.Dietary {
			if !slices.Contains(dietary, d) {
				dietary = append(dietary, d)
			}
		}
		prefs.Dietary = dietary
	}
	if n := input.Notifications; n != nil {
		setBool(&prefs.Notifications.FavoritesAlerts, n.FavoritesAlerts)
		setBool(&prefs.Notifications.PickupReminders, n.PickupReminders)
		setBool(&prefs.Notifications.NewRescueBags, n.NewRescueBags)
		setBool(&prefs.Notifications.PromotionalOffers, n.PromotionalOffers)
	}
	if p := input.Privacy; p != nil {
		if p.ProfileVisibility != nil {
			prefs.Privacy.ProfileVisibility = *p.ProfileVisibility
		}
		if p.OrderHistoryVisibility != nil {
			prefs.Privacy.OrderHistoryVisibility = *p.OrderHistoryVisibility
		}
		setBool(&prefs.Privacy.LocationSharing, p.LocationSharing)
	}
	return prefs
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func validatePatch(input UpdatePreferencesInput) error {
	details := map[string]any{}
	if input.Dietary != nil {
		for _, d := range *input.Dietary {
			if !slices.Contains(DietaryOptions, d) {
				details["dietaryPreferences"] = fmt.Sprintf("unknown value %q", d)
				break
			}
		}
	}
	if p := input.Privacy; p != nil {
		if p.ProfileVisibility != nil && !slices.Contains(VisibilityOptions, *p.ProfileVisibility) {
			details["privacy.profileVisibility"] = "must be public or private"
		}
		if p.OrderHistoryVisibility != nil && !slices.Contains(VisibilityOptions, *p.OrderHistoryVisibility) {
			details["privacy.orderHistoryVisibility"] = "must be public or private"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid preferences").WithDetails(details)
	}
	return nil
}

func mapFindErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}
