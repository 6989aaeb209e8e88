// Package orders exposes the storefront and admin order endpoints.
package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/orderbridge-backend/api/responses"
	"github.com/angelmondragon/orderbridge-backend/api/validators"
	internalorders "github.com/angelmondragon/orderbridge-backend/internal/orders"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/pagination"
)

// Create handles POST /orders. Prices come from the catalog; the body only
// names products and quantities.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateOrderInput{
			Items: make([]internalorders.CartItem, 0, len(payload.Items)),
			Customer: internalorders.CustomerInfo{
				Name:  validators.SanitizeString(payload.CustomerInfo.Name, 200),
				Email: strings.ToLower(validators.SanitizeString(payload.CustomerInfo.Email, 254)),
				Phone: validators.SanitizeOptional(payload.CustomerInfo.Phone, 40),
			},
			Shipping: internalorders.ShippingInfo{
				Address: payload.ShippingInfo.addressRequest.model(),
			},
			PaymentMethod:   enums.PaymentMethod(payload.PaymentMethod),
			PaymentIntentID: validators.SanitizeOptional(payload.PaymentIntentID, 255),
			Notes:           validators.SanitizeOptional(payload.Notes, 1000),
		}
		for _, item := range payload.Items {
			input.Items = append(input.Items, internalorders.CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if payload.ShippingInfo.Billing != nil {
			billing := payload.ShippingInfo.Billing.model()
			input.Shipping.Billing = &billing
		}

		result, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Get handles GET /orders/{id}.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// List handles GET /orders?status=&paymentStatus=&email=&page=&limit=.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrders(r.Context(), filters, pagination.Params{Page: page, Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPage(list))
	}
}

// UpdateStatus handles PATCH /orders/{id}/status for fulfillment moves.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateFulfillment(r.Context(), internalorders.FulfillmentInput{
			OrderID:        orderID,
			Status:         enums.OrderStatus(payload.Status),
			TrackingNumber: validators.SanitizeOptional(payload.TrackingNumber, 100),
			CarrierName:    validators.SanitizeOptional(payload.CarrierName, 100),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// UpdatePayment handles PATCH /orders/{id}/payment, the admin override for
// payment status.
func UpdatePayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updatePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdatePaymentStatus(r.Context(), internalorders.PaymentStatusInput{
			OrderID:         orderID,
			PaymentStatus:   enums.PaymentStatus(payload.PaymentStatus),
			PaymentIntentID: validators.SanitizeOptional(payload.PaymentIntentID, 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// Cancel handles DELETE /orders/{id}.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CancelOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func buildListFilters(r *http.Request) (internalorders.ListFilters, error) {
	q := r.URL.Query()
	filters := internalorders.ListFilters{
		Email: strings.ToLower(strings.TrimSpace(q.Get("email"))),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("paymentStatus")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid paymentStatus filter").WithDetails(map[string]any{"field": "paymentStatus"})
		}
		filters.PaymentStatus = &status
	}
	return filters, nil
}
