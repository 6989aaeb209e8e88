// Package payments wraps the card and wallet processors behind one Gateway
// contract and keeps the local payment intent and refund registry.
package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

// MetadataOrderID is the processor metadata key carrying the local order id.
const MetadataOrderID = "order_id"

type IntentRequest struct {
	Amount         decimal.Decimal
	Currency       enums.Currency
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
	// SourceID is the single-use wallet token; card intents ignore it.
	SourceID string
}

type IntentHandle struct {
	IntentID string
	// ClientSecret is what the storefront needs to finish payment: the card
	// client secret, or the wallet payment id.
	ClientSecret string
	Status       enums.IntentStatus
	Amount       decimal.Decimal
}

type IntentSnapshot struct {
	IntentID     string
	Status       enums.IntentStatus
	Amount       decimal.Decimal
	Metadata     map[string]string
	ErrorMessage string
}

// OrderID returns the order id recorded at CreateIntent time, if any.
func (s IntentSnapshot) OrderID() string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[MetadataOrderID]
}

type RefundRequest struct {
	IntentID string
	// Amount nil refunds the processor's remaining balance.
	Amount         *decimal.Decimal
	Currency       enums.Currency
	Reason         string
	IdempotencyKey string
}

type RefundResult struct {
	RefundID string
	Amount   decimal.Decimal
	Status   enums.RefundStatus
}

// Gateway is one processor rail. Implementations talk only to the processor
// and never touch local storage.
type Gateway interface {
	Method() enums.PaymentMethod
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentHandle, error)
	RetrieveIntent(ctx context.Context, intentID string) (*IntentSnapshot, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// Gateways selects a rail by payment method.
type Gateways struct {
	byMethod map[enums.PaymentMethod]Gateway
}

func NewGateways(gateways ...Gateway) *Gateways {
	g := &Gateways{byMethod: make(map[enums.PaymentMethod]Gateway, len(gateways))}
	for _, gw := range gateways {
		if gw != nil {
			g.byMethod[gw.Method()] = gw
		}
	}
	return g
}

func (g *Gateways) For(method enums.PaymentMethod) (Gateway, error) {
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
	if g != nil {
		if gw, ok := g.byMethod[method]; ok {
			return gw, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment method %s is not configured", method))
}
