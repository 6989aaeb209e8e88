package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/internal/pricing"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
)

const defaultProcessorTimeout = 15 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderLookup interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// IntentItem is a priced cart line as the storefront submits it.
type IntentItem struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type CreateIntentInput struct {
	Items          []IntentItem
	Shipping       decimal.Decimal
	Tax            decimal.Decimal
	CustomerEmail  string
	OrderID        *uuid.UUID
	PaymentMethod  enums.PaymentMethod
	SourceID       string
	IdempotencyKey string
}

type CreateIntentResult struct {
	ClientSecret string             `json:"clientSecret"`
	IntentID     string             `json:"intentId"`
	Amount       decimal.Decimal    `json:"amount"`
	Status       enums.IntentStatus `json:"status"`
}

// Service creates processor intents and links them to orders.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error)
	LinkOrder(ctx context.Context, tx *gorm.DB, intentID string, orderID uuid.UUID, orderTotal decimal.Decimal) error
}

type ServiceParams struct {
	Intents          IntentRepository
	Tx               txRunner
	Gateways         *Gateways
	Orders           orderLookup
	Logger           *logger.Logger
	ProcessorTimeout time.Duration
}

type service struct {
	intents          IntentRepository
	tx               txRunner
	gateways         *Gateways
	orders           orderLookup
	logg             *logger.Logger
	processorTimeout time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	if params.Intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intent repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Gateways == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateways required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lookup required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	timeout := params.ProcessorTimeout
	if timeout <= 0 {
		timeout = defaultProcessorTimeout
	}
	return &service{
		intents:          params.Intents,
		tx:               params.Tx,
		gateways:         params.Gateways,
		orders:           params.Orders,
		logg:             params.Logger,
		processorTimeout: timeout,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error) {
	amount, err := intentAmount(input)
	if err != nil {
		return nil, err
	}

	method := input.PaymentMethod
	metadata := map[string]string{}
	if input.OrderID != nil {
		order, err := s.orders.GetOrder(ctx, *input.OrderID)
		if err != nil {
			return nil, err
		}
		if method == "" {
			method = order.PaymentMethod
		}
		if err := checkLinkable(order, amount); err != nil {
			return nil, err
		}
		if method != order.PaymentMethod {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method does not match the order").
				WithDetails(map[string]any{"order_payment_method": order.PaymentMethod})
		}
		metadata[MetadataOrderID] = order.ID.String()
	}
	if method == "" {
		method = enums.PaymentMethodCard
	}
	gateway, err := s.gateways.For(method)
	if err != nil {
		return nil, err
	}

	idemKey := strings.TrimSpace(input.IdempotencyKey)
	if idemKey == "" {
		idemKey = uuid.NewString()
	}
	callCtx, cancel := context.WithTimeout(ctx, s.processorTimeout)
	defer cancel()
	handle, err := gateway.CreateIntent(callCtx, IntentRequest{
		Amount:         amount,
		Currency:       enums.CurrencyUSD,
		CustomerEmail:  strings.TrimSpace(input.CustomerEmail),
		Metadata:       metadata,
		IdempotencyKey: idemKey,
		SourceID:       input.SourceID,
	})
	if err != nil {
		return nil, AsUpstream(err, "create payment intent")
	}

	record := &models.PaymentIntent{
		ID:       handle.IntentID,
		Provider: method,
		Amount:   amount,
		Currency: enums.CurrencyUSD,
		Status:   handle.Status,
	}
	if email := strings.TrimSpace(input.CustomerEmail); email != "" {
		record.CustomerEmail = &email
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.intents.WithTx(tx).Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record payment intent")
		}
		if input.OrderID != nil {
			return s.LinkOrder(ctx, tx, record.ID, *input.OrderID, amount)
		}
		return nil
	})
	if err != nil {
		s.logg.Error(s.logg.WithIntentID(ctx, handle.IntentID), "processor intent created but not recorded", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"intent_id": handle.IntentID,
		"provider":  method,
		"amount":    amount.StringFixed(money.Places),
	}), "payment intent created")
	return &CreateIntentResult{
		ClientSecret: handle.ClientSecret,
		IntentID:     handle.IntentID,
		Amount:       amount,
		Status:       handle.Status,
	}, nil
}

// LinkOrder attaches intentID to orderID. The intent amount must equal the
// order total exactly; a mismatch is a conflict and nothing is written.
func (s *service) LinkOrder(ctx context.Context, tx *gorm.DB, intentID string, orderID uuid.UUID, orderTotal decimal.Decimal) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required to link intent")
	}
	repo := s.intents.WithTx(tx)
	intent, err := repo.FindByIDForUpdate(ctx, intentID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load payment intent")
	}
	if intent.OrderID != nil {
		if *intent.OrderID == orderID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "payment intent already linked to another order").
			WithDetails(map[string]any{"intent_id": intentID})
	}
	if !money.Equal(intent.Amount, orderTotal) {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment intent amount does not match order total").
			WithDetails(map[string]any{
				"intent_amount": intent.Amount.StringFixed(money.Places),
				"order_total":   orderTotal.StringFixed(money.Places),
			})
	}
	if err := repo.SetOrderID(ctx, intentID, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "link payment intent")
	}
	err = tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("external_payment_ref", intentID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record order payment reference")
	}
	return nil
}

func intentAmount(input CreateIntentInput) (decimal.Decimal, error) {
	if len(input.Items) == 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	if input.Shipping.IsNegative() || input.Tax.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "shipping and tax must be non-negative")
	}
	sum := decimal.Zero
	for i, item := range input.Items {
		if item.UnitPrice.IsNegative() || item.Quantity < 1 {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid item").
				WithDetails(map[string]any{"field": fmt.Sprintf("items[%d]", i)})
		}
		sum = sum.Add(pricing.LineTotal(item.UnitPrice, item.Quantity))
	}
	amount := money.Round(sum.Add(input.Shipping).Add(input.Tax))
	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	return amount, nil
}

func checkLinkable(order *models.Order, amount decimal.Decimal) error {
	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusPaymentFailed {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order is not awaiting payment: status is %s", order.Status)).
			WithDetails(map[string]any{"current_status": order.Status})
	}
	if !money.Equal(order.Total, amount) {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment amount does not match order total").
			WithDetails(map[string]any{
				"amount":      amount.StringFixed(money.Places),
				"order_total": order.Total.StringFixed(money.Places),
			})
	}
	return nil
}

// AsUpstream keeps typed processor errors and wraps anything else, such as
// timeouts or transport failures, as an upstream payment failure.
func AsUpstream(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamPayment, err, op)
}
