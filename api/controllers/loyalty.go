package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/api/responses"
	"github.com/angelmondragon/aquaflow-backend/api/validators"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/loyalty"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/pagination"
)

type pointsResponse struct {
	CustomerID uuid.UUID                          `json:"customer_id"`
	Balance    int                                `json:"balance"`
	History    pagination.Page[models.LoyaltyLog] `json:"history"`
}

// CustomerPoints returns the balance and a page of loyalty ledger rows.
func CustomerPoints(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := ownedCustomer(w, r, logg)
		if !ok {
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.Balance(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.History(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pointsResponse{CustomerID: customerID, Balance: balance, History: history})
	}
}

// CustomerPointsReconcile compares the stored balance with the loyalty ledger.
func CustomerPointsReconcile(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.ReconcileCustomer(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ownedCustomer parses {customerId} and lets customers read only their own records.
func ownedCustomer(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	actor, ok := requireActor(w, r, logg)
	if !ok {
		return uuid.Nil, false
	}
	customerID, err := validators.ParseUUIDParam(r, "customerId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, false
	}
	if !actor.Role.IsOperator() && !(actor.Role == enums.ActorRoleCustomer && actor.ID == customerID) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot read another customer's records"))
		return uuid.Nil, false
	}
	return customerID, true
}
