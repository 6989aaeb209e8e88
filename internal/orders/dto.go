package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderbridge-backend/internal/pricing"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// CartItem is one requested product line. Prices are taken from the catalog
// at creation time, never from the client.
type CartItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type CustomerInfo struct {
	Name  string
	Email string
	Phone *string
}

type ShippingInfo struct {
	Address models.Address
	// Billing defaults to Address when nil.
	Billing *models.Address
}

type CreateOrderInput struct {
	Items           []CartItem
	Customer        CustomerInfo
	Shipping        ShippingInfo
	PaymentMethod   enums.PaymentMethod
	PaymentIntentID *string
	Notes           *string
}

type CreateOrderResult struct {
	OrderID     uuid.UUID      `json:"orderId"`
	OrderNumber string         `json:"orderNumber"`
	Totals      pricing.Totals `json:"totals"`
}

// ListFilters narrows the admin order list.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Email         string
}

type FulfillmentInput struct {
	OrderID        uuid.UUID
	Status         enums.OrderStatus
	TrackingNumber *string
	CarrierName    *string
}

type PaymentStatusInput struct {
	OrderID         uuid.UUID
	PaymentStatus   enums.PaymentStatus
	PaymentIntentID *string
}
