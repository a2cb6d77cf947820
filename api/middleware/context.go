package middleware

import (
	"context"

	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxUserID     contextKey = "user_id"
	ctxRole       contextKey = "actor_role"
	ctxBusinessID contextKey = "business_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func BusinessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxBusinessID).(string); ok {
		return v
	}
	return ""
}

// Actor is the authenticated caller in typed form.
type Actor struct {
	UserID     uuid.UUID
	BusinessID uuid.UUID
	Role       enums.ActorRole
}

// ActorFromContext parses the identity seeded by Auth. ok is false when the
// request is anonymous or the stored values are malformed.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, false
	}
	role, err := enums.ParseActorRole(RoleFromContext(ctx))
	if err != nil {
		return Actor{}, false
	}
	actor := Actor{UserID: userID, Role: role}
	if raw := BusinessIDFromContext(ctx); raw != "" {
		businessID, err := uuid.Parse(raw)
		if err != nil {
			return Actor{}, false
		}
		actor.BusinessID = businessID
	}
	return actor, true
}

// WithActor injects an identity into the context, mirroring what Auth does.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(actor.Role))
	if actor.BusinessID != uuid.Nil {
		ctx = context.WithValue(ctx, ctxBusinessID, actor.BusinessID.String())
	}
	return ctx
}
