package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// Actor is the authenticated caller resolved from the access token.
type Actor struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	Approval  enums.ApprovalStatus
	SessionID string
}

// WithActor injects the authenticated caller into the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext reports false for anonymous requests.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Role
	}
	return ""
}
