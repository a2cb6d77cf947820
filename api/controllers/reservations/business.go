package reservations

import (
	"net/http"

	"github.com/foodrescue/rescue-backend/api/responses"
	internalreservations "github.com/foodrescue/rescue-backend/internal/reservations"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

// BusinessConfirm accepts a pending reservation on behalf of the business.
func BusinessConfirm(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := actorInput(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.Confirm(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// BusinessReady marks a confirmed reservation as packed and waiting.
func BusinessReady(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := actorInput(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.MarkReady(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
