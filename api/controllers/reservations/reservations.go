package reservations

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/foodrescue/rescue-backend/api/middleware"
	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/api/validators"
	"github.com/foodrescue/rescue-backend/internal/pickupwindow"
	internalreservations "github.com/foodrescue/rescue-backend/internal/reservations"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/pagination"
)

const maxCancelReasonLen = 200

type createReservationRequest struct {
	RescueBagID         string               `json:"rescueBagId" validate:"required,uuid"`
	Quantity            int                  `json:"quantity" validate:"required,min=1,max=50"`
	PickupTime          time.Time            `json:"pickupTime"`
	PaymentMethod       string               `json:"paymentMethod" validate:"required,oneof=credit_card digital_wallet stripe razorpay"`
	PickupMethod        string               `json:"pickupMethod,omitempty" validate:"omitempty,oneof=in-store curbside delivery"`
	SpecialInstructions *string              `json:"specialInstructions,omitempty" validate:"omitempty,max=500"`
	PickupWindow        *pickupWindowRequest `json:"pickupWindow,omitempty"`
}

type pickupWindowRequest struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=200"`
}

// Create reserves units of a rescue bag for the authenticated user.
func Create(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body createReservationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.PickupTime.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"pickupTime": "is required"}))
			return
		}

		input := internalreservations.CreateInput{
			UserID:        actor.UserID,
			RescueBagID:   uuid.MustParse(body.RescueBagID),
			Quantity:      body.Quantity,
			PickupTime:    body.PickupTime,
			PaymentMethod: enums.PaymentMethod(body.PaymentMethod),
			PickupMethod:  enums.PickupMethod(body.PickupMethod),
		}
		if body.SpecialInstructions != nil {
			cleaned := validators.SanitizeString(*body.SpecialInstructions, 500)
			if cleaned != "" {
				input.SpecialInstructions = &cleaned
			}
		}
		if body.PickupWindow != nil {
			input.Window = &pickupwindow.Override{Start: body.PickupWindow.Start, End: body.PickupWindow.End}
		}

		view, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// List pages through the caller's reservations, newest first.
func List(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
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

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalreservations.ListInput{
			UserID: actor.UserID,
			Page: pagination.Params{
				Limit:  limit,
				Cursor: validators.QueryString(r, "cursor"),
			},
		}
		if raw := validators.QueryString(r, "status"); raw != "" {
			status, err := enums.ParseReservationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			input.Status = &status
		}

		page, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Detail returns one reservation to its owner or the owning business.
func Detail(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := actorInput(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.Get(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Cancel releases the reservation's units. Users and businesses share the
// handler; the service decides who the cancellation is attributed to.
func Cancel(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := actorInput(w, r, svc, logg)
		if !ok {
			return
		}

		var body cancelRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Cancel(r.Context(), internalreservations.CancelInput{
			ActorInput: input,
			Reason:     validators.SanitizeString(body.Reason, maxCancelReasonLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// actorInput resolves the caller and the reservationId path parameter,
// writing the error response itself when either is missing.
func actorInput(w http.ResponseWriter, r *http.Request, svc internalreservations.Service, logg *logger.Logger) (internalreservations.ActorInput, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
		return internalreservations.ActorInput{}, false
	}
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
		return internalreservations.ActorInput{}, false
	}
	reservationID, err := validators.ParseUUIDParam(r, "reservationId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return internalreservations.ActorInput{}, false
	}
	return toActorInput(actor, reservationID), true
}

func toActorInput(actor middleware.Actor, reservationID uuid.UUID) internalreservations.ActorInput {
	return internalreservations.ActorInput{
		ReservationID:   reservationID,
		ActorUserID:     actor.UserID,
		ActorBusinessID: actor.BusinessID,
		ActorRole:       actor.Role,
	}
}
