package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/api/responses"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

const (
	ActorIDHeader   = "X-Actor-Id"
	ActorRoleHeader = "X-Actor-Role"
)

// Actor reads the caller identity forwarded by the gateway. The system role
// is reserved for the scheduler and is rejected at the HTTP boundary.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := strings.TrimSpace(r.Header.Get(ActorIDHeader))
			rawRole := strings.ToLower(strings.TrimSpace(r.Header.Get(ActorRoleHeader)))
			if rawID == "" || rawRole == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor headers required"))
				return
			}
			id, err := uuid.Parse(rawID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id"))
				return
			}
			role, err := enums.ParseActorRole(rawRole)
			if err != nil || role == enums.ActorRoleSystem {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid actor role"))
				return
			}

			ctx := WithActor(r.Context(), ledger.Actor{ID: id, Role: role})
			if logg != nil {
				ctx = logg.WithActorID(ctx, id.String())
				ctx = logg.WithActorRole(ctx, string(role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
