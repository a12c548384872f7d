package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/api/responses"
	"github.com/angelmondragon/aquaflow-backend/api/validators"
	internalorders "github.com/angelmondragon/aquaflow-backend/internal/orders"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

type orderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,lte=1000"`
}

type createOrderRequest struct {
	CustomerID    uuid.UUID          `json:"customer_id" validate:"required"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	Address       string             `json:"address" validate:"max=500"`
	ZoneID        *uuid.UUID         `json:"zone_id"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
	RedeemPoints  int                `json:"redeem_points" validate:"gte=0"`
	Source        string             `json:"source"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// OrderCreate places an order for a customer. Walk-in sales pass source "pos".
func OrderCreate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method"))
			return
		}
		var source enums.OrderSource
		if raw := strings.TrimSpace(body.Source); raw != "" {
			if source, err = enums.ParseOrderSource(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source"))
				return
			}
		}

		items := make([]internalorders.ItemInput, 0, len(body.Items))
		for _, item := range body.Items {
			items = append(items, internalorders.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		order, err := svc.Create(r.Context(), internalorders.CreateOrderCommand{
			CustomerID:    body.CustomerID,
			Items:         items,
			Address:       validators.SanitizeString(body.Address, 500),
			ZoneID:        body.ZoneID,
			PaymentMethod: method,
			RedeemPoints:  body.RedeemPoints,
			Source:        source,
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderTransition moves an order through its state machine. Customers may
// only cancel; delivery staff go through the delivery endpoints.
func OrderTransition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		result, err := svc.Transition(r.Context(), internalorders.TransitionOrderCommand{
			OrderID: orderID,
			Status:  status,
			Reason:  validators.SanitizeString(body.Reason, 500),
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CustomerOrders lists a customer's orders, newest first, with an optional status filter.
func CustomerOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter internalorders.ListFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &status
		}
		page, err := svc.ListByCustomer(r.Context(), customerID, actor, params, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
