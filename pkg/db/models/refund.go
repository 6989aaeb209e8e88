package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// Refund records one processor refund against a payment intent.
type Refund struct {
	ID              string             `gorm:"column:id;primaryKey"`
	PaymentIntentID string             `gorm:"column:payment_intent_id;not null;index"`
	Amount          decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason          *string            `gorm:"column:reason"`
	Status          enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
