package middleware

import (
	"net/http"
	"strings"

	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/pkg/auth"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

// Auth requires a bearer access token and stores the caller on the context.
func Auth(tokens *auth.Tokens, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			id, err := tokens.Verify(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actor := Actor{UserID: id.UserID, Role: id.Role}
			if id.BusinessID != nil {
				actor.BusinessID = *id.BusinessID
			}
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithUserID(ctx, actor.UserID.String())
				ctx = logg.WithActorRole(ctx, string(actor.Role))
				if id.BusinessID != nil {
					ctx = logg.WithBusinessID(ctx, id.BusinessID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearer accepts "Bearer <token>" in any case, or a bare token.
func bearer(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	if found {
		return ""
	}
	return header
}
