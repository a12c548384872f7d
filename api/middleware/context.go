package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the authenticated caller into the context.
func WithActor(ctx context.Context, actor ledger.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the caller set by the Actor middleware.
func ActorFromContext(ctx context.Context) (ledger.Actor, bool) {
	if ctx == nil {
		return ledger.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(ledger.Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == uuid.Nil {
		return ""
	}
	return actor.ID.String()
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}
