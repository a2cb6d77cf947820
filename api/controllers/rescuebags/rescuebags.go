package rescuebags

import (
	"net/http"

	"github.com/foodrescue/rescue-backend/api/middleware"
	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/api/validators"
	internalbags "github.com/foodrescue/rescue-backend/internal/rescuebags"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

// Detail returns a bag with its derived availability.
func Detail(svc internalbags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rescue bag service unavailable"))
			return
		}
		bagID, err := validators.ParseUUIDParam(r, "bagId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), bagID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListForBusiness returns the bags a business currently offers.
func ListForBusiness(svc internalbags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rescue bag service unavailable"))
			return
		}
		businessID, err := validators.ParseUUIDParam(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bags, err := svc.ListForBusiness(r.Context(), businessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"rescueBags": bags, "count": len(bags)})
	}
}

// Pause hides a bag from ordering without touching its counters.
func Pause(svc internalbags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := bagActorInput(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.Pause(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Resume makes a paused bag orderable again.
func Resume(svc internalbags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := bagActorInput(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.Resume(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func bagActorInput(w http.ResponseWriter, r *http.Request, svc internalbags.Service, logg *logger.Logger) (internalbags.ActorInput, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rescue bag service unavailable"))
		return internalbags.ActorInput{}, false
	}
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
		return internalbags.ActorInput{}, false
	}
	bagID, err := validators.ParseUUIDParam(r, "bagId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return internalbags.ActorInput{}, false
	}
	return internalbags.ActorInput{
		BagID:           bagID,
		ActorUserID:     actor.UserID,
		ActorBusinessID: actor.BusinessID,
		ActorRole:       actor.Role,
	}, true
}
