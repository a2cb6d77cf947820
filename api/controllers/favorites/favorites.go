package favorites

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/foodrescue/rescue-backend/api/middleware"
	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/api/validators"
	internalfavorites "github.com/foodrescue/rescue-backend/internal/favorites"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

type addFavoriteRequest struct {
	BusinessID string `json:"businessId" validate:"required,uuid"`
}

type notificationsRequest struct {
	Enabled    *bool   `json:"enabled" validate:"required"`
	BusinessID *string `json:"businessId,omitempty" validate:"omitempty,uuid"`
}

func unavailable(r *http.Request, logg *logger.Logger, w http.ResponseWriter) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "favorites service unavailable"))
}

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (middleware.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
	}
	return actor, ok
}

// List returns the caller's favorite businesses.
func List(svc internalfavorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w)
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		views, err := svc.List(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// Add follows a business.
func Add(svc internalfavorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w)
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body addFavoriteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Add(r.Context(), actor.UserID, uuid.MustParse(body.BusinessID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// Remove unfollows a business.
func Remove(svc internalfavorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w)
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		businessID, err := validators.ParseUUIDParam(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		removed, err := svc.Remove(r.Context(), actor.UserID, businessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"removed": removed})
	}
}

// Alerts lists available bags from favorite businesses near lat/lng.
func Alerts(svc internalfavorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w)
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		lat, err := validators.ParseQueryFloat(r, "lat", true, 0, -90, 90)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := validators.ParseQueryFloat(r, "lng", true, 0, -180, 180)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		radius, err := validators.ParseQueryFloat(r, "radius", false,
			internalfavorites.DefaultRadiusKm, internalfavorites.MinRadiusKm, internalfavorites.MaxRadiusKm)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		alerts, err := svc.Alerts(r.Context(), internalfavorites.AlertsInput{
			UserID:    actor.UserID,
			Latitude:  lat,
			Longitude: lng,
			RadiusKm:  radius,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"alerts": alerts, "count": len(alerts)})
	}
}

// UpdateNotifications toggles favorite alerts globally or for one business.
func UpdateNotifications(svc internalfavorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w)
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body notificationsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalfavorites.NotificationsInput{UserID: actor.UserID, Enabled: *body.Enabled}
		if body.BusinessID != nil {
			id := uuid.MustParse(*body.BusinessID)
			input.BusinessID = &id
		}
		if err := svc.UpdateNotifications(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"enabled": input.Enabled})
	}
}
