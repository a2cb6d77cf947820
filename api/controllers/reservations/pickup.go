package reservations

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/foodrescue/rescue-backend/api/middleware"
	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/api/validators"
	internalreservations "github.com/foodrescue/rescue-backend/internal/reservations"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

type confirmPickupRequest struct {
	ReservationID string `json:"reservationId" validate:"required,uuid"`
	PickupMethod  string `json:"pickupMethod,omitempty" validate:"omitempty,oneof=in-store curbside delivery"`
}

// ConfirmPickup records that the user collected the order and credits the
// reservation's impact to their profile.
func ConfirmPickup(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var body confirmPickupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalreservations.ConfirmPickupInput{
			ActorInput: toActorInput(actor, uuid.MustParse(body.ReservationID)),
		}
		if body.PickupMethod != "" {
			method := enums.PickupMethod(body.PickupMethod)
			input.PickupMethod = &method
		}

		result, err := svc.ConfirmPickup(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ActivePickups lists confirmed and ready reservations with timing hints.
func ActivePickups(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		pickups, err := svc.ActivePickups(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"activePickups": pickups,
			"count":         len(pickups),
		})
	}
}

// PickupInstructions returns the step list for collecting a reservation.
func PickupInstructions(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := actorInput(w, r, svc, logg)
		if !ok {
			return
		}
		instructions, err := svc.PickupInstructions(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, instructions)
	}
}
