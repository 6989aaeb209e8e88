package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// OrderEvent is the common body of every order lifecycle event.
type OrderEvent struct {
	OrderID               uuid.UUID           `json:"order_id"`
	OrderNumber           string              `json:"order_number"`
	Status                enums.OrderStatus   `json:"status"`
	PaymentStatus         enums.PaymentStatus `json:"payment_status"`
	PreviousStatus        enums.OrderStatus   `json:"previous_status,omitempty"`
	PreviousPaymentStatus enums.PaymentStatus `json:"previous_payment_status,omitempty"`
	PaymentMethod         enums.PaymentMethod `json:"payment_method"`
	Trigger               string              `json:"trigger,omitempty"`
	Total                 decimal.Decimal     `json:"total"`
	Currency              enums.Currency      `json:"currency"`
}

// OrderCreatedItem snapshots one line as sold.
type OrderCreatedItem struct {
	ProductID        uuid.UUID       `json:"product_id"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	InventoryClamped bool            `json:"inventory_clamped,omitempty"`
}

type OrderCreatedEvent struct {
	OrderEvent
	Subtotal decimal.Decimal    `json:"subtotal"`
	Tax      decimal.Decimal    `json:"tax"`
	Shipping decimal.Decimal    `json:"shipping"`
	Items    []OrderCreatedItem `json:"items"`
}

// OrderPaymentEvent covers order_paid and order_payment_failed.
type OrderPaymentEvent struct {
	OrderEvent
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	Source          string `json:"source"`
	Error           string `json:"error,omitempty"`
}

type OrderCancelledEvent struct {
	OrderEvent
	RestoredItems int `json:"restored_items"`
}

type OrderFulfillmentEvent struct {
	OrderEvent
	TrackingNumber *string `json:"tracking_number,omitempty"`
	CarrierName    *string `json:"carrier_name,omitempty"`
}

type OrderRefundedEvent struct {
	OrderEvent
	PaymentIntentID string          `json:"payment_intent_id"`
	RefundID        string          `json:"refund_id"`
	Amount          decimal.Decimal `json:"amount"`
	Partial         bool            `json:"partial"`
}

// ReconciliationDiscrepancyEvent flags a processor outcome that contradicts the
// recorded order state.
type ReconciliationDiscrepancyEvent struct {
	OrderID         *uuid.UUID          `json:"order_id,omitempty"`
	PaymentIntentID string              `json:"payment_intent_id"`
	Provider        enums.PaymentMethod `json:"provider,omitempty"`
	Source          string              `json:"source"`
	Reason          string              `json:"reason"`
	Outcome         string              `json:"outcome"`
	OrderStatus     enums.OrderStatus   `json:"order_status,omitempty"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status,omitempty"`
	Detail          map[string]any      `json:"detail,omitempty"`
}
