package controllers

import (
	"net/http"

	"github.com/angelmondragon/aquaflow-backend/api/middleware"
	"github.com/angelmondragon/aquaflow-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// ActorPing echoes the caller identity resolved from the gateway headers.
func ActorPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"scope":    "actor",
			"status":   "ok",
			"actor_id": middleware.UserIDFromContext(r.Context()),
			"role":     string(middleware.RoleFromContext(r.Context())),
		})
	}
}
