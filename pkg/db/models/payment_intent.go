package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// PaymentIntent mirrors one processor-side transaction. The primary key is the
// id the processor assigned; it is never generated locally.
type PaymentIntent struct {
	ID            string              `gorm:"column:id;primaryKey"`
	OrderID       *uuid.UUID          `gorm:"column:order_id;type:uuid;index"`
	Provider      enums.PaymentMethod `gorm:"column:provider;type:payment_method;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency      `gorm:"column:currency;not null;default:'usd'"`
	Status        enums.IntentStatus  `gorm:"column:status;type:intent_status;not null;default:'requires_action'"`
	CustomerEmail *string             `gorm:"column:customer_email"`
	ErrorMessage  *string             `gorm:"column:error_message"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
