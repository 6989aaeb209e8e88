package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/pagination"
)

type orderItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=1000"`
}

type customerInfoRequest struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

type addressRequest struct {
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postalCode" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,max=60"`
}

type shippingInfoRequest struct {
	addressRequest
	Billing *addressRequest `json:"billing,omitempty" validate:"omitempty"`
}

type createOrderRequest struct {
	Items           []orderItemRequest  `json:"items" validate:"required,min=1,dive"`
	CustomerInfo    customerInfoRequest `json:"customerInfo"`
	ShippingInfo    shippingInfoRequest `json:"shippingInfo"`
	PaymentMethod   string              `json:"paymentMethod,omitempty" validate:"omitempty,oneof=card wallet"`
	PaymentIntentID *string             `json:"paymentIntentId,omitempty" validate:"omitempty,max=255"`
	Notes           *string             `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type updateStatusRequest struct {
	Status         string  `json:"status" validate:"required,oneof=shipped delivered"`
	TrackingNumber *string `json:"trackingNumber,omitempty" validate:"omitempty,max=100"`
	CarrierName    *string `json:"carrierName,omitempty" validate:"omitempty,max=100"`
}

type updatePaymentRequest struct {
	PaymentStatus   string  `json:"paymentStatus" validate:"required,oneof=pending paid failed refunded partially_refunded"`
	PaymentIntentID *string `json:"paymentIntentId,omitempty" validate:"omitempty,max=255"`
}

func (a addressRequest) model() models.Address {
	return models.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type orderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage *string         `json:"productImage,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	PaymentIntentID *string             `json:"paymentIntentId,omitempty"`
	PaymentError    *string             `json:"paymentError,omitempty"`
	CustomerName    string              `json:"customerName"`
	CustomerEmail   string              `json:"customerEmail"`
	CustomerPhone   *string             `json:"customerPhone,omitempty"`
	ShippingAddress models.Address      `json:"shippingAddress"`
	BillingAddress  models.Address      `json:"billingAddress"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Tax             decimal.Decimal     `json:"tax"`
	Shipping        decimal.Decimal     `json:"shipping"`
	Total           decimal.Decimal     `json:"total"`
	Currency        enums.Currency      `json:"currency"`
	Notes           *string             `json:"notes,omitempty"`
	TrackingNumber  *string             `json:"trackingNumber,omitempty"`
	CarrierName     *string             `json:"carrierName,omitempty"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	ShippedAt       *time.Time          `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	RefundedAt      *time.Time          `json:"refundedAt,omitempty"`
}

func newOrderResponse(o *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			LineTotal:    it.LineTotal,
		})
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		PaymentIntentID: o.ExternalPaymentRef,
		PaymentError:    o.PaymentError,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Total:           o.Total,
		Currency:        o.Currency,
		Notes:           o.Notes,
		TrackingNumber:  o.TrackingNumber,
		CarrierName:     o.CarrierName,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		RefundedAt:      o.RefundedAt,
	}
}

func newOrderPage(page *pagination.Page[models.Order]) pagination.Page[orderResponse] {
	out := pagination.Page[orderResponse]{
		Items: make([]orderResponse, 0, len(page.Items)),
		Page:  page.Page,
		Limit: page.Limit,
		Total: page.Total,
	}
	for i := range page.Items {
		out.Items = append(out.Items, newOrderResponse(&page.Items[i]))
	}
	return out
}
