package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/aquaflow-backend/api/responses"
	"github.com/angelmondragon/aquaflow-backend/api/validators"
	"github.com/angelmondragon/aquaflow-backend/internal/inventory"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

type adjustRequest struct {
	Delta  int    `json:"delta" validate:"ne=0"`
	Type   string `json:"type"`
	Reason string `json:"reason" validate:"required,max=255"`
}

// InventoryAdjust books a manual stock correction through the inventory ledger.
func InventoryAdjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var changeType enums.InventoryChangeType
		if raw := strings.TrimSpace(body.Type); raw != "" {
			if changeType, err = enums.ParseInventoryChangeType(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
		}
		stock, err := svc.Adjust(r.Context(), inventory.AdjustCommand{
			ProductID: productID,
			Delta:     body.Delta,
			Type:      changeType,
			Reason:    validators.SanitizeString(body.Reason, 255),
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "stock_quantity": stock})
	}
}

func InventoryHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.InventoryHistory(r.Context(), productID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// InventoryReconcile compares a product's stock with the sum of its ledger rows.
func InventoryReconcile(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.ReconcileProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
