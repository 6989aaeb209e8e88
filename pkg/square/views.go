package square

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

// Payment statuses reported by Square.
const (
	PaymentStatusApproved  = "APPROVED"
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusCanceled  = "CANCELED"
	PaymentStatusFailed    = "FAILED"
)

// Refund statuses reported by Square.
const (
	RefundStatusPending   = "PENDING"
	RefundStatusCompleted = "COMPLETED"
	RefundStatusRejected  = "REJECTED"
	RefundStatusFailed    = "FAILED"
)

// MoneyView is Square's money object in minor units.
type MoneyView struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentView is the subset of a Square payment this service consumes. The
// same shape arrives in API responses and in payment.* webhook objects.
type PaymentView struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	AmountMoney *MoneyView `json:"amount_money,omitempty"`
	ReferenceID string     `json:"reference_id,omitempty"`
	Note        string     `json:"note,omitempty"`
	ReceiptURL  string     `json:"receipt_url,omitempty"`
}

// AmountCents returns the payment amount, zero when absent.
func (p PaymentView) AmountCents() int64 {
	if p.AmountMoney == nil {
		return 0
	}
	return p.AmountMoney.Amount
}

// StatusUpper normalizes the status string.
func (p PaymentView) StatusUpper() string {
	return strings.ToUpper(strings.TrimSpace(p.Status))
}

// RefundView is the subset of a Square refund this service consumes.
type RefundView struct {
	ID          string     `json:"id"`
	PaymentID   string     `json:"payment_id"`
	Status      string     `json:"status"`
	AmountMoney *MoneyView `json:"amount_money,omitempty"`
}

func (r RefundView) AmountCents() int64 {
	if r.AmountMoney == nil {
		return 0
	}
	return r.AmountMoney.Amount
}

// viewOf re-reads an SDK object through its JSON form.
func viewOf[T any](src any) (*T, error) {
	if src == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstreamPayment, "square returned an empty object")
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamPayment, err, "encode square object")
	}
	if string(raw) == "null" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstreamPayment, "square returned an empty object")
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamPayment, err, "decode square object")
	}
	return &out, nil
}
