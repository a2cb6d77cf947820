package middleware

import (
	"net/http"

	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

// RequireRole admits callers holding any of the roles. Admins always pass.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := enums.ActorRole(RoleFromContext(r.Context()))
			if current == enums.ActorRoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if current == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}
