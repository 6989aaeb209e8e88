package payments

import (
	"context"
	"strings"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
	"github.com/angelmondragon/orderbridge-backend/pkg/square"
)

type squareAPI interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*square.PaymentView, error)
	GetPayment(ctx context.Context, paymentID string) (*square.PaymentView, error)
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*square.RefundView, error)
}

// WalletGateway is the wallet rail backed by Square payments. The storefront
// tokenizes the wallet and hands the token over as SourceID; the payment is
// created and completed in one call, so the payment id is the intent id.
type WalletGateway struct {
	api squareAPI
}

func NewWalletGateway(api squareAPI) (*WalletGateway, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square client required")
	}
	return &WalletGateway{api: api}, nil
}

func (g *WalletGateway) Method() enums.PaymentMethod { return enums.PaymentMethodWallet }

func (g *WalletGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentHandle, error) {
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet payments require a sourceId token")
	}
	view, err := g.api.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    money.ToMinorUnits(req.Amount),
		Currency:       string(req.Currency),
		SourceID:       req.SourceID,
		BuyerEmail:     req.CustomerEmail,
		IdempotencyKey: req.IdempotencyKey,
		ReferenceID:    req.Metadata[MetadataOrderID],
	})
	if err != nil {
		return nil, err
	}
	return &IntentHandle{
		IntentID:     view.ID,
		ClientSecret: view.ID,
		Status:       walletIntentStatus(view.StatusUpper()),
		Amount:       money.FromMinorUnits(view.AmountCents()),
	}, nil
}

func (g *WalletGateway) RetrieveIntent(ctx context.Context, intentID string) (*IntentSnapshot, error) {
	view, err := g.api.GetPayment(ctx, intentID)
	if err != nil {
		return nil, err
	}
	snap := &IntentSnapshot{
		IntentID: view.ID,
		Status:   walletIntentStatus(view.StatusUpper()),
		Amount:   money.FromMinorUnits(view.AmountCents()),
	}
	if view.ReferenceID != "" {
		snap.Metadata = map[string]string{MetadataOrderID: view.ReferenceID}
	}
	if snap.Status == enums.IntentStatusFailed {
		snap.ErrorMessage = "wallet payment " + strings.ToLower(view.StatusUpper())
	}
	return snap, nil
}

func (g *WalletGateway) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.Amount == nil {
		// Square requires an explicit amount; refund the full captured amount.
		view, err := g.api.GetPayment(ctx, req.IntentID)
		if err != nil {
			return nil, err
		}
		full := money.FromMinorUnits(view.AmountCents())
		req.Amount = &full
	}
	view, err := g.api.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:      req.IntentID,
		AmountCents:    money.ToMinorUnits(*req.Amount),
		Currency:       string(req.Currency),
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		RefundID: view.ID,
		Amount:   money.FromMinorUnits(view.AmountCents()),
		Status:   WalletRefundStatus(view.Status),
	}, nil
}

func walletIntentStatus(status string) enums.IntentStatus {
	switch status {
	case square.PaymentStatusCompleted:
		return enums.IntentStatusSucceeded
	case square.PaymentStatusApproved, square.PaymentStatusPending:
		return enums.IntentStatusProcessing
	case square.PaymentStatusFailed, square.PaymentStatusCanceled:
		return enums.IntentStatusFailed
	default:
		return enums.IntentStatusRequiresAction
	}
}

// WalletRefundStatus maps a Square refund status onto the local vocabulary.
func WalletRefundStatus(status string) enums.RefundStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case square.RefundStatusCompleted:
		return enums.RefundStatusSucceeded
	case square.RefundStatusRejected, square.RefundStatusFailed:
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}

// WalletIntentStatus maps a raw Square payment status onto the local vocabulary.
func WalletIntentStatus(status string) enums.IntentStatus {
	return walletIntentStatus(strings.ToUpper(strings.TrimSpace(status)))
}
