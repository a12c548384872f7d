package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/aquaflow-backend/api/middleware"
	"github.com/angelmondragon/aquaflow-backend/api/responses"
	"github.com/angelmondragon/aquaflow-backend/api/validators"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/pagination"
)

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (ledger.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required"))
		return ledger.Actor{}, false
	}
	return actor, true
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
