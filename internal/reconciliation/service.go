// Package reconciliation brings local order and intent state in line with what
// the payment processors report. Confirm calls, webhooks, refunds and sweeps
// all end in Apply so the transition rules live in one place.
package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/internal/lifecycle"
	"github.com/angelmondragon/orderbridge-backend/internal/orders"
	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/payloads"
)

const defaultProcessorTimeout = 15 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gatewaySelector interface {
	For(method enums.PaymentMethod) (payments.Gateway, error)
}

type intentLinker interface {
	LinkOrder(ctx context.Context, tx *gorm.DB, intentID string, orderID uuid.UUID, orderTotal decimal.Decimal) error
}

type alerter interface {
	Discrepancy(reason string, fields map[string]any)
}

type outcomeMetrics interface {
	IncOutcome(source, result string)
	IncDiscrepancy(reason string)
}

// Result reports what Apply did.
type Result struct {
	IntentID     string             `json:"intentId"`
	IntentStatus enums.IntentStatus `json:"intentStatus"`
	// Order is nil when the intent is not linked to an order yet.
	Order *models.Order `json:"-"`
	// Applied is false for confirmations of state already recorded.
	Applied     bool `json:"applied"`
	Discrepancy bool `json:"discrepancy"`
}

type ConfirmResult struct {
	Status        enums.IntentStatus  `json:"status"`
	Message       string              `json:"message"`
	OrderStatus   enums.OrderStatus   `json:"orderStatus,omitempty"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus,omitempty"`
}

type RefundInput struct {
	IntentID string
	// Amount nil refunds whatever has not been refunded yet.
	Amount         *decimal.Decimal
	Reason         string
	IdempotencyKey string
}

type RefundResult struct {
	RefundID      string              `json:"refundId"`
	Status        enums.RefundStatus  `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus,omitempty"`
}

type Service interface {
	Apply(ctx context.Context, out Outcome) (*Result, error)
	Confirm(ctx context.Context, intentID string, orderID uuid.UUID) (*ConfirmResult, error)
	Recheck(ctx context.Context, intentID string) (*Result, error)
	SettleLinked(ctx context.Context, intentID string) (*Result, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
}

type ServiceParams struct {
	Intents          payments.IntentRepository
	Refunds          payments.RefundRepository
	Orders           orders.Repository
	Tx               txRunner
	Outbox           outboxPublisher
	Gateways         gatewaySelector
	Linker           intentLinker
	Alerts           alerter
	Metrics          outcomeMetrics
	Logger           *logger.Logger
	ProcessorTimeout time.Duration
	Now              func() time.Time
}

type service struct {
	intents          payments.IntentRepository
	refunds          payments.RefundRepository
	orders           orders.Repository
	tx               txRunner
	outbox           outboxPublisher
	gateways         gatewaySelector
	linker           intentLinker
	alerts           alerter
	metrics          outcomeMetrics
	logg             *logger.Logger
	processorTimeout time.Duration
	now              func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intent repository required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Gateways == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateways required")
	}
	if params.Linker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intent linker required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	timeout := params.ProcessorTimeout
	if timeout <= 0 {
		timeout = defaultProcessorTimeout
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		intents:          params.Intents,
		refunds:          params.Refunds,
		orders:           params.Orders,
		tx:               params.Tx,
		outbox:           params.Outbox,
		gateways:         params.Gateways,
		linker:           params.Linker,
		alerts:           params.Alerts,
		metrics:          params.Metrics,
		logg:             params.Logger,
		processorTimeout: timeout,
		now:              now,
	}, nil
}

// Apply is the shared "apply payment outcome" routine. It is idempotent:
// replaying an outcome that is already reflected writes nothing and emits no
// events. An outcome that contradicts the order state commits the intent update
// and a discrepancy event, then returns CodeDiscrepancy.
func (s *service) Apply(ctx context.Context, out Outcome) (*Result, error) {
	if strings.TrimSpace(out.IntentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}
	switch out.Kind {
	case OutcomeSucceeded, OutcomeFailed, OutcomePending, OutcomeRefunded:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown outcome %q", out.Kind))
	}
	if out.Kind == OutcomeRefunded && (out.Refund == nil || out.Refund.RefundID == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund details required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"intent_id": out.IntentID,
		"source":    string(out.Source),
		"outcome":   string(out.Kind),
	})

	var (
		res  *Result
		disc *discrepancy
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, disc = nil, nil
		intent, err := s.lockIntent(ctx, tx, out.IntentID)
		if err != nil {
			return err
		}
		res = &Result{IntentID: intent.ID, IntentStatus: intent.Status}

		if out.Kind == OutcomeRefunded {
			disc, err = s.applyRefundOutcome(ctx, tx, intent, out, res)
			return err
		}

		if out.Kind == OutcomeFailed && intentRank[intent.Status] >= intentRank[enums.IntentStatusSucceeded] {
			// Failure for an earlier attempt delivered after the success.
			s.logg.Warn(ctx, "stale payment failure ignored")
			return nil
		}
		next := out.targetIntentStatus()
		if advances(intent.Status, next) {
			var errMsg *string
			if out.Kind == OutcomeFailed && out.ErrorMessage != "" {
				msg := out.ErrorMessage
				errMsg = &msg
			}
			if err := s.intents.WithTx(tx).UpdateStatus(ctx, intent.ID, next, errMsg); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update payment intent status")
			}
			res.IntentStatus = next
		}
		if out.Kind == OutcomePending {
			return nil
		}

		orderID := intent.OrderID
		if orderID == nil {
			orderID = out.orderHint()
		}
		if orderID == nil {
			s.logg.Info(ctx, "payment outcome recorded for intent without an order")
			return nil
		}

		repo := s.orders.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, *orderID)
		if err != nil {
			if db.IsNotFound(err) {
				disc = newDiscrepancy(out, intent, nil, reasonOrderMissing, map[string]any{"order_id": orderID.String()})
				return s.emitDiscrepancy(ctx, tx, disc)
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
		}
		res.Order = order

		trigger := lifecycle.TriggerPaymentSucceeded
		if out.Kind == OutcomeFailed {
			trigger = lifecycle.TriggerPaymentFailed
		}
		disc, err = s.transitionPayment(ctx, tx, repo, order, intent, trigger, out, res)
		return err
	})
	if err != nil {
		s.count(out.Source, "error")
		return nil, err
	}
	if disc != nil {
		res.Discrepancy = true
		s.count(out.Source, "discrepancy")
		return res, s.report(ctx, disc)
	}
	if res.Applied {
		s.count(out.Source, "applied")
	} else {
		s.count(out.Source, "noop")
	}
	return res, nil
}

func (s *service) transitionPayment(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, intent *models.PaymentIntent, trigger lifecycle.Trigger, out Outcome, res *Result) (*discrepancy, error) {
	from := orders.StateOf(order)
	tr, err := lifecycle.Next(from, trigger)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeDiscrepancy) {
			d := newDiscrepancy(out, intent, order, reasonFor(trigger, from), pkgerrors.As(err).Details())
			return d, s.emitDiscrepancy(ctx, tx, d)
		}
		return nil, err
	}
	if tr.Noop {
		// A second intent succeeding for an already-paid order is money taken twice.
		if trigger == lifecycle.TriggerPaymentSucceeded && order.ExternalPaymentRef != nil && *order.ExternalPaymentRef != intent.ID {
			d := newDiscrepancy(out, intent, order, reasonDuplicatePayment, map[string]any{
				"paid_intent_id": *order.ExternalPaymentRef,
			})
			return d, s.emitDiscrepancy(ctx, tx, d)
		}
		return nil, nil
	}

	extras := orders.Extras{}
	data := payloads.OrderPaymentEvent{PaymentIntentID: intent.ID, Source: string(out.Source)}
	if trigger == lifecycle.TriggerPaymentSucceeded {
		ref := intent.ID
		extras.ExternalPaymentRef = &ref
	} else {
		msg := out.ErrorMessage
		if msg == "" {
			msg = "payment failed"
		}
		extras.PaymentError = &msg
		data.Error = msg
	}
	if err := orders.ApplyTransition(ctx, repo, order, tr, extras, s.now()); err != nil {
		return nil, err
	}
	res.Applied = true
	data.OrderEvent = orders.BaseEvent(order, from, trigger)
	if err := s.outbox.Emit(ctx, tx, orders.NewOrderEvent(order, orders.EventTypeFor(trigger), data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "emit payment event")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	}), "payment outcome applied")
	return nil, nil
}

// applyRefundOutcome records a refund reported by the processor. A refund that
// is already on file is a confirmation: its status may settle but the order
// does not move again.
func (s *service) applyRefundOutcome(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, out Outcome, res *Result) (*discrepancy, error) {
	r := out.Refund
	refunds := s.refunds.WithTx(tx)
	existing, err := refunds.FindByID(ctx, r.RefundID)
	if err == nil {
		if existing.Status != r.Status && r.Status != enums.RefundStatusPending {
			if err := refunds.UpdateStatus(ctx, existing.ID, r.Status); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update refund status")
			}
		}
		return nil, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load refund")
	}

	record := newRefundRecord(intent.ID, r.RefundID, money.Round(r.Amount), r.Status, r.Reason)
	if err := refunds.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record refund")
	}
	if r.Status == enums.RefundStatusFailed {
		return nil, nil
	}
	return s.settleRefund(ctx, tx, intent, record, out, res)
}

// settleRefund moves the intent and its order to refunded or partially
// refunded based on everything refunded so far.
func (s *service) settleRefund(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, record *models.Refund, out Outcome, res *Result) (*discrepancy, error) {
	refunded, err := s.refunds.WithTx(tx).SumActiveByIntent(ctx, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "sum refunds")
	}
	full := refunded.GreaterThanOrEqual(intent.Amount)
	trigger, next := lifecycle.TriggerRefundPartial, enums.IntentStatusPartiallyRefunded
	if full {
		trigger, next = lifecycle.TriggerRefundFull, enums.IntentStatusRefunded
	}
	if advances(intent.Status, next) {
		if err := s.intents.WithTx(tx).UpdateStatus(ctx, intent.ID, next, nil); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update payment intent status")
		}
		res.IntentStatus = next
	}
	if intent.OrderID == nil {
		return nil, nil
	}

	repo := s.orders.WithTx(tx)
	order, err := repo.FindByIDForUpdate(ctx, *intent.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			d := newDiscrepancy(out, intent, nil, reasonOrderMissing, map[string]any{"order_id": intent.OrderID.String()})
			return d, s.emitDiscrepancy(ctx, tx, d)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
	}
	res.Order = order

	from := orders.StateOf(order)
	tr, err := lifecycle.Next(from, trigger)
	if err != nil {
		if out.Source != SourceRefund && pkgerrors.Is(err, pkgerrors.CodeConflict) {
			d := newDiscrepancy(out, intent, order, reasonRefundOnUnpaid, pkgerrors.As(err).Details())
			return d, s.emitDiscrepancy(ctx, tx, d)
		}
		return nil, err
	}
	if err := orders.ApplyTransition(ctx, repo, order, tr, orders.Extras{}, s.now()); err != nil {
		return nil, err
	}
	if tr.Noop {
		return nil, nil
	}
	res.Applied = true
	data := payloads.OrderRefundedEvent{
		OrderEvent:      orders.BaseEvent(order, from, trigger),
		PaymentIntentID: intent.ID,
		RefundID:        record.ID,
		Amount:          record.Amount,
		Partial:         !full,
	}
	if err := s.outbox.Emit(ctx, tx, orders.NewOrderEvent(order, enums.EventOrderRefunded, data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "emit refund event")
	}
	return nil, nil
}

// Confirm re-reads the intent from its processor and applies the result. The
// intent is linked to orderID first when the storefront has not done so yet.
func (s *service) Confirm(ctx context.Context, intentID string, orderID uuid.UUID) (*ConfirmResult, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intentId and orderId are required")
	}
	intent, err := s.loadIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.OrderID != nil && *intent.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment intent belongs to another order").
			WithDetails(map[string]any{"intent_id": intentID})
	}
	if intent.OrderID == nil {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, orderID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
			}
			return s.linker.LinkOrder(ctx, tx, intentID, orderID, order.Total)
		})
		if err != nil {
			return nil, err
		}
	}

	res, err := s.retrieveAndApply(ctx, intent, SourceConfirm)
	if err != nil && !pkgerrors.Is(err, pkgerrors.CodeDiscrepancy) {
		return nil, err
	}
	out := &ConfirmResult{Status: res.IntentStatus, Message: confirmMessage(res)}
	if res.Order != nil {
		out.OrderStatus = res.Order.Status
		out.PaymentStatus = res.Order.PaymentStatus
	}
	// Discrepancies are returned to the caller alongside the snapshot.
	return out, err
}

// Recheck is Confirm without a caller: the sweep uses it for intents whose
// webhook never arrived.
func (s *service) Recheck(ctx context.Context, intentID string) (*Result, error) {
	intent, err := s.loadIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return s.retrieveAndApply(ctx, intent, SourceSweep)
}

// SettleLinked replays a stored success or failure onto the order the intent
// was just linked to. It covers webhooks that arrived before checkout wrote the
// order. Intents that have not settled are left to confirm and the sweep.
func (s *service) SettleLinked(ctx context.Context, intentID string) (*Result, error) {
	intent, err := s.loadIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	out := Outcome{Source: SourceCheckout, IntentID: intent.ID, IntentStatus: intent.Status}
	switch intent.Status {
	case enums.IntentStatusSucceeded:
		out.Kind = OutcomeSucceeded
	case enums.IntentStatusFailed:
		out.Kind = OutcomeFailed
		if intent.ErrorMessage != nil {
			out.ErrorMessage = *intent.ErrorMessage
		}
	default:
		return &Result{IntentID: intent.ID, IntentStatus: intent.Status}, nil
	}
	return s.Apply(ctx, out)
}

func (s *service) retrieveAndApply(ctx context.Context, intent *models.PaymentIntent, source Source) (*Result, error) {
	gateway, err := s.gateways.For(intent.Provider)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.processorTimeout)
	defer cancel()
	snap, err := gateway.RetrieveIntent(callCtx, intent.ID)
	if err != nil {
		return nil, payments.AsUpstream(err, "retrieve payment intent")
	}
	return s.Apply(ctx, FromSnapshot(snap, source))
}

// Refund issues a processor refund for an intent. The amount is checked
// against the un-refunded balance, and the order against the refund rules,
// before the processor is called. The intent row stays locked for the whole
// operation so concurrent refunds cannot overdraw it.
func (s *service) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	intentID := strings.TrimSpace(input.IntentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intentId is required")
	}
	if input.Amount != nil && !money.Round(*input.Amount).IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	ctx = s.logg.WithIntentID(ctx, intentID)

	var out *RefundResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		out = nil
		intent, err := s.lockIntent(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if intent.Status != enums.IntentStatusSucceeded && intent.Status != enums.IntentStatusPartiallyRefunded {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("payment intent cannot be refunded: status is %s", intent.Status)).
				WithDetails(map[string]any{"intent_status": intent.Status})
		}
		refunded, err := s.refunds.WithTx(tx).SumActiveByIntent(ctx, intent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "sum refunds")
		}
		remaining := money.Round(intent.Amount.Sub(refunded))
		requested := remaining
		if input.Amount != nil {
			requested = money.Round(*input.Amount)
		}
		if !remaining.IsPositive() || requested.GreaterThan(remaining) {
			return pkgerrors.New(pkgerrors.CodeConflict, "refund amount exceeds remaining balance").
				WithDetails(map[string]any{
					"requested": requested.StringFixed(money.Places),
					"remaining": remaining.StringFixed(money.Places),
				})
		}
		if err := s.precheckRefund(ctx, tx, intent, requested.Equal(remaining)); err != nil {
			return err
		}

		gateway, err := s.gateways.For(intent.Provider)
		if err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, s.processorTimeout)
		defer cancel()
		result, err := gateway.CreateRefund(callCtx, payments.RefundRequest{
			IntentID:       intent.ID,
			Amount:         &requested,
			Currency:       intent.Currency,
			Reason:         strings.TrimSpace(input.Reason),
			IdempotencyKey: strings.TrimSpace(input.IdempotencyKey),
		})
		if err != nil {
			return payments.AsUpstream(err, "create refund")
		}
		amount := result.Amount
		if amount.IsZero() {
			amount = requested
		}
		record := newRefundRecord(intent.ID, result.RefundID, amount, result.Status, input.Reason)
		if err := s.refunds.WithTx(tx).Create(ctx, record); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "refund_id", result.RefundID), "processor refund created but not recorded", err)
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record refund")
		}
		out = &RefundResult{RefundID: record.ID, Status: record.Status, Amount: record.Amount}
		if record.Status == enums.RefundStatusFailed {
			return nil
		}

		res := &Result{IntentID: intent.ID, IntentStatus: intent.Status}
		if _, err := s.settleRefund(ctx, tx, intent, record, Outcome{Source: SourceRefund, IntentID: intent.ID}, res); err != nil {
			return err
		}
		if res.Order != nil {
			out.PaymentStatus = res.Order.PaymentStatus
		}
		return nil
	})
	if err != nil {
		s.count(SourceRefund, "error")
		return nil, err
	}
	s.count(SourceRefund, "applied")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"refund_id": out.RefundID,
		"amount":    out.Amount.StringFixed(money.Places),
		"status":    out.Status,
	}), "refund created")
	return out, nil
}

// precheckRefund rejects refunds the order's lifecycle would refuse, so the
// processor is never asked for money the order cannot give back.
func (s *service) precheckRefund(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, full bool) error {
	if intent.OrderID == nil {
		return nil
	}
	order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, *intent.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
	}
	trigger := lifecycle.TriggerRefundPartial
	if full {
		trigger = lifecycle.TriggerRefundFull
	}
	_, err = lifecycle.Next(orders.StateOf(order), trigger)
	return err
}

func (s *service) lockIntent(ctx context.Context, tx *gorm.DB, intentID string) (*models.PaymentIntent, error) {
	intent, err := s.intents.WithTx(tx).FindByIDForUpdate(ctx, intentID)
	if err != nil {
		return nil, mapIntentError(err)
	}
	return intent, nil
}

func (s *service) loadIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		return nil, mapIntentError(err)
	}
	return intent, nil
}

func (s *service) count(source Source, result string) {
	if s.metrics != nil {
		s.metrics.IncOutcome(string(source), result)
	}
}

func mapIntentError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load payment intent")
}

func newRefundRecord(intentID, refundID string, amount decimal.Decimal, status enums.RefundStatus, reason string) *models.Refund {
	record := &models.Refund{
		ID:              refundID,
		PaymentIntentID: intentID,
		Amount:          amount,
		Status:          status,
	}
	if status == "" {
		record.Status = enums.RefundStatusPending
	}
	if r := strings.TrimSpace(reason); r != "" {
		record.Reason = &r
	}
	return record
}

func confirmMessage(res *Result) string {
	switch {
	case res.Discrepancy:
		return "payment outcome conflicts with the order state and was flagged for review"
	case res.IntentStatus == enums.IntentStatusSucceeded:
		return "payment confirmed"
	case res.IntentStatus == enums.IntentStatusFailed:
		return "payment failed"
	default:
		return "payment is still processing"
	}
}
