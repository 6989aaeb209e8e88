package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// Address is embedded into orders with a shipping_/billing_ column prefix.
type Address struct {
	Line1      string  `gorm:"column:line1" json:"line1"`
	Line2      *string `gorm:"column:line2" json:"line2,omitempty"`
	City       string  `gorm:"column:city" json:"city"`
	State      string  `gorm:"column:state" json:"state"`
	PostalCode string  `gorm:"column:postal_code" json:"postalCode"`
	Country    string  `gorm:"column:country" json:"country"`
}

// Order is the storefront's record of a checkout. Monetary fields are fixed at
// creation and never recomputed.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	Status             enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending';index"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	ExternalPaymentRef *string             `gorm:"column:external_payment_ref;index"`
	PaymentError       *string             `gorm:"column:payment_error"`

	CustomerName  string  `gorm:"column:customer_name;not null"`
	CustomerEmail string  `gorm:"column:customer_email;not null;index"`
	CustomerPhone *string `gorm:"column:customer_phone"`

	ShippingAddress Address `gorm:"embedded;embeddedPrefix:shipping_"`
	BillingAddress  Address `gorm:"embedded;embeddedPrefix:billing_"`

	Subtotal decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax      decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping decimal.Decimal `gorm:"column:shipping;type:numeric(12,2);not null"`
	Total    decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Currency enums.Currency  `gorm:"column:currency;not null;default:'usd'"`
	Notes    *string         `gorm:"column:notes"`

	TrackingNumber *string `gorm:"column:tracking_number"`
	CarrierName    *string `gorm:"column:carrier_name"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	RefundedAt  *time.Time `gorm:"column:refunded_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
