package controllers

import (
	"net/http"

	"github.com/foodrescue/rescue-backend/api/middleware"
	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/api/validators"
	"github.com/foodrescue/rescue-backend/internal/impact"
	"github.com/foodrescue/rescue-backend/internal/users"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

type preferencesRequest struct {
	DietaryPreferences *[]string                 `json:"dietaryPreferences,omitempty" validate:"omitempty,max=6,dive,oneof=vegetarian vegan gluten-free dairy-free nut-free none"`
	Notifications      *notificationPrefsRequest `json:"notifications,omitempty"`
	Privacy            *privacyPrefsRequest      `json:"privacy,omitempty"`
}

type notificationPrefsRequest struct {
	FavoritesAlerts   *bool `json:"favoritesAlerts,omitempty"`
	PickupReminders   *bool `json:"pickupReminders,omitempty"`
	NewRescueBags     *bool `json:"newRescueBags,omitempty"`
	PromotionalOffers *bool `json:"promotionalOffers,omitempty"`
}

type privacyPrefsRequest struct {
	ProfileVisibility      *string `json:"profileVisibility,omitempty" validate:"omitempty,oneof=public private"`
	OrderHistoryVisibility *string `json:"orderHistoryVisibility,omitempty" validate:"omitempty,oneof=public private"`
	LocationSharing        *bool   `json:"locationSharing,omitempty"`
}

// ProfileImpact returns the caller's cumulative rescue impact.
func ProfileImpact(accumulator impact.Accumulator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if accumulator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "impact service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		stats, err := accumulator.Profile(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// ProfilePreferences returns the caller's stored preferences.
func ProfilePreferences(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		view, err := svc.Preferences(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// UpdateProfilePreferences patches the caller's preferences. Omitted fields
// keep their stored values.
func UpdateProfilePreferences(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var body preferencesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := users.UpdatePreferencesInput{UserID: actor.UserID, Dietary: body.DietaryPreferences}
		if n := body.Notifications; n != nil {
			input.Notifications = &users.NotificationsPatch{
				FavoritesAlerts:   n.FavoritesAlerts,
				PickupReminders:   n.PickupReminders,
				NewRescueBags:     n.NewRescueBags,
				PromotionalOffers: n.PromotionalOffers,
			}
		}
		if p := body.Privacy; p != nil {
			input.Privacy = &users.PrivacyPatch{
				ProfileVisibility:      p.ProfileVisibility,
				OrderHistoryVisibility: p.OrderHistoryVisibility,
				LocationSharing:        p.LocationSharing,
			}
		}

		view, err := svc.UpdatePreferences(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
