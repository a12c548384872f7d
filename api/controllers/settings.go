package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/aquaflow-backend/api/responses"
	"github.com/angelmondragon/aquaflow-backend/api/validators"
	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

// SettingsStore reads and overrides the commerce settings table.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Snapshot, error)
	Set(ctx context.Context, key, value string) (settings.Snapshot, error)
	Reset(ctx context.Context, key string) (settings.Snapshot, error)
}

type settingsResponse struct {
	PointsPerUnit           int                     `json:"points_per_unit"`
	PesoPerPoint            string                  `json:"peso_per_point"`
	DefaultDeliveryFeeCents int64                   `json:"default_delivery_fee_cents"`
	StockDeductOn           settings.StockPolicy    `json:"stock_deduct_on"`
	PointsCategories        []enums.ProductCategory `json:"points_categories"`
}

type settingUpdateRequest struct {
	Value string `json:"value" validate:"required,max=500"`
}

func toSettingsResponse(s settings.Snapshot) settingsResponse {
	return settingsResponse{
		PointsPerUnit:           s.PointsPerUnit,
		PesoPerPoint:            s.PesoPerPoint.String(),
		DefaultDeliveryFeeCents: s.DefaultDeliveryFeeCents,
		StockDeductOn:           s.StockDeductOn,
		PointsCategories:        s.PointsCategories,
	}
}

func SettingsDetail(store SettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettingsResponse(snap))
	}
}

// SettingUpdate stores an override; later operations load it.
func SettingUpdate(store SettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body settingUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := store.Set(r.Context(), chi.URLParam(r, "key"), body.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettingsResponse(snap))
	}
}

func SettingReset(store SettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.Reset(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettingsResponse(snap))
	}
}
