package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/api/responses"
	"github.com/angelmondragon/aquaflow-backend/api/validators"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/subscriptions"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

type createSubscriptionRequest struct {
	CustomerID    uuid.UUID          `json:"customer_id" validate:"required"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	FrequencyDays int                `json:"frequency_days" validate:"gte=1,lte=365"`
	StartDate     string             `json:"start_date"`
	ZoneID        *uuid.UUID         `json:"zone_id"`
	Address       string             `json:"address" validate:"max=500"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
}

func SubscriptionCreate(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body createSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method"))
			return
		}
		var start *time.Time
		if raw := strings.TrimSpace(body.StartDate); raw != "" {
			parsed, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "start_date must be YYYY-MM-DD"))
				return
			}
			start = &parsed
		}
		items := make([]subscriptions.ItemInput, 0, len(body.Items))
		for _, item := range body.Items {
			items = append(items, subscriptions.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		sub, err := svc.Create(r.Context(), subscriptions.CreateSubscriptionInput{
			CustomerID:    body.CustomerID,
			Items:         items,
			FrequencyDays: body.FrequencyDays,
			StartDate:     start,
			ZoneID:        body.ZoneID,
			Address:       validators.SanitizeString(body.Address, 500),
			PaymentMethod: method,
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

func SubscriptionDetail(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionAction(logg, svc.Get)
}

func SubscriptionPause(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionAction(logg, svc.Pause)
}

func SubscriptionResume(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionAction(logg, svc.Resume)
}

func SubscriptionCancel(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionAction(logg, svc.Cancel)
}

func CustomerSubscriptions(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByCustomer(r.Context(), customerID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type subscriptionOp func(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error)

func subscriptionAction(logg *logger.Logger, op subscriptionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := op(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}
