package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/internal/inventory"
	"github.com/angelmondragon/orderbridge-backend/internal/lifecycle"
	"github.com/angelmondragon/orderbridge-backend/internal/pricing"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderbridge-backend/pkg/pagination"
)

const (
	orderNumberConstraint = "ux_orders_order_number"
	// sqlite reports the column rather than the index name.
	orderNumberColumn     = "orders.order_number"
	defaultNumberAttempts = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryLedger is the atomic stock counter used at checkout and cancel.
type InventoryLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (inventory.Adjustment, error)
	Increment(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// IntentLinker attaches a previously created payment intent to the new order.
type IntentLinker interface {
	LinkOrder(ctx context.Context, tx *gorm.DB, intentID string, orderID uuid.UUID, orderTotal decimal.Decimal) error
}

// IntentSettler applies an outcome the processor reported before the order
// was written.
type IntentSettler interface {
	SettleLinked(ctx context.Context, intentID string) error
}

type pricer interface {
	Compute(lines []pricing.Line) (pricing.Totals, error)
}

type restoreMetrics interface {
	IncRestoreFailure()
}

// Service defines the order operations exposed to the HTTP layer and jobs.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filters ListFilters, params pagination.Params) (*pagination.Page[models.Order], error)
	UpdateFulfillment(ctx context.Context, input FulfillmentInput) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, input PaymentStatusInput) (*models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// ServiceParams names the dependencies of the order service.
type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Outbox         outboxPublisher
	Inventory      InventoryLedger
	Pricing        pricer
	Intents        IntentLinker
	Settler        IntentSettler
	Metrics        restoreMetrics
	Logger         *logger.Logger
	NumberAttempts int
	Now            func() time.Time
	NewNumber      func(time.Time) string
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory InventoryLedger
	pricing   pricer
	intents   IntentLinker
	settler   IntentSettler
	metrics   restoreMetrics
	logg      *logger.Logger
	attempts  int
	now       func() time.Time
	newNumber func(time.Time) string
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	}
	if params.Pricing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pricing engine required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	attempts := params.NumberAttempts
	if attempts <= 0 {
		attempts = defaultNumberAttempts
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newNumber := params.NewNumber
	if newNumber == nil {
		newNumber = NewOrderNumber
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		inventory: params.Inventory,
		pricing:   params.Pricing,
		intents:   params.Intents,
		settler:   params.Settler,
		metrics:   params.Metrics,
		logg:      params.Logger,
		attempts:  attempts,
		now:       now,
		newNumber: newNumber,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if err := validateCreate(&input); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load products")
	}
	var missing []string
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown products in cart").
			WithDetails(map[string]any{"product_ids": missing})
	}

	lines := make([]pricing.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, pricing.Line{UnitPrice: products[item.ProductID].Price, Quantity: item.Quantity})
	}
	totals, err := s.pricing.Compute(lines)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price cart")
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		order := s.buildOrder(input, products, totals)
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.persistOrder(ctx, tx, order, input)
		})
		if err == nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Info(s.logg.WithField(logCtx, "order_number", order.OrderNumber), "order created")
			s.settleLinked(logCtx, input.PaymentIntentID)
			return &CreateOrderResult{OrderID: order.ID, OrderNumber: order.OrderNumber, Totals: totals}, nil
		}
		if !isOrderNumberCollision(err) {
			if pkgerrors.As(err) != nil {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create order")
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_number": order.OrderNumber,
			"attempt":      attempt,
		}), "order number collision, regenerating")
	}
	return nil, pkgerrors.New(pkgerrors.CodeStorage,
		fmt.Sprintf("could not allocate a unique order number after %d attempts", s.attempts))
}

func (s *service) buildOrder(input CreateOrderInput, products map[uuid.UUID]models.Product, totals pricing.Totals) *models.Order {
	billing := input.Shipping.Address
	if input.Shipping.Billing != nil {
		billing = *input.Shipping.Billing
	}
	order := &models.Order{
		OrderNumber:        s.newNumber(s.now()),
		Status:             enums.OrderStatusPending,
		PaymentStatus:      enums.PaymentStatusPending,
		PaymentMethod:      input.PaymentMethod,
		ExternalPaymentRef: input.PaymentIntentID,
		CustomerName:       strings.TrimSpace(input.Customer.Name),
		CustomerEmail:      strings.ToLower(strings.TrimSpace(input.Customer.Email)),
		CustomerPhone:      input.Customer.Phone,
		ShippingAddress:    input.Shipping.Address,
		BillingAddress:     billing,
		Subtotal:           totals.Subtotal,
		Tax:                totals.Tax,
		Shipping:           totals.Shipping,
		Total:              totals.Total,
		Currency:           enums.CurrencyUSD,
		Notes:              input.Notes,
	}
	order.Items = make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		product := products[item.ProductID]
		order.Items = append(order.Items, models.OrderItem{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductImage: product.ImageURL,
			Quantity:     item.Quantity,
			UnitPrice:    product.Price,
			LineTotal:    pricing.LineTotal(product.Price, item.Quantity),
		})
	}
	return order
}

// settleLinked runs after commit. A failure here leaves the order pending for
// confirm or the stale intent sweep to settle.
func (s *service) settleLinked(ctx context.Context, intentID *string) {
	if intentID == nil || s.settler == nil {
		return
	}
	if err := s.settler.SettleLinked(s.logg.WithIntentID(ctx, *intentID), *intentID); err != nil {
		s.logg.Error(ctx, "failed to apply settled payment to new order", err)
	}
}

// persistOrder writes the order and items, links the intent, then decrements
// stock last so a failed insert never touches inventory.
func (s *service) persistOrder(ctx context.Context, tx *gorm.DB, order *models.Order, input CreateOrderInput) error {
	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		return err
	}

	if input.PaymentIntentID != nil && s.intents != nil {
		if err := s.intents.LinkOrder(ctx, tx, *input.PaymentIntentID, order.ID, order.Total); err != nil {
			return err
		}
	}

	items := make([]payloads.OrderCreatedItem, 0, len(order.Items))
	for _, item := range order.Items {
		adj, err := s.inventory.Decrement(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if adj.Clamped {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id":   order.ID.String(),
				"product_id": item.ProductID.String(),
				"requested":  item.Quantity,
			}), "inventory short at checkout, clamped to zero")
		}
		items = append(items, payloads.OrderCreatedItem{
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice,
			InventoryClamped: adj.Clamped,
		})
	}

	event := payloads.OrderCreatedEvent{
		OrderEvent: BaseEvent(order, lifecycle.State{}, ""),
		Subtotal:   order.Subtotal,
		Tax:        order.Tax,
		Shipping:   order.Shipping,
		Items:      items,
	}
	return s.outbox.Emit(ctx, tx, NewOrderEvent(order, enums.EventOrderCreated, event))
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, filters ListFilters, params pagination.Params) (*pagination.Page[models.Order], error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if filters.PaymentStatus != nil && !filters.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
	}
	params = params.Normalize()
	orders, total, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &pagination.Page[models.Order]{
		Items: orders,
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}, nil
}

func (s *service) UpdateFulfillment(ctx context.Context, input FulfillmentInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	trigger, err := lifecycle.TriggerForFulfillment(input.Status)
	if err != nil {
		return nil, err
	}
	extras := Extras{CarrierName: trimmed(input.CarrierName)}
	if trigger == lifecycle.TriggerShip {
		extras.TrackingNumber = trimmed(input.TrackingNumber)
		if extras.TrackingNumber == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required when shipping")
		}
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err)
		}
		tr, err := lifecycle.Next(StateOf(loaded), trigger)
		if err != nil {
			return err
		}
		if err := ApplyTransition(ctx, repo, loaded, tr, extras, s.now()); err != nil {
			return err
		}
		order = loaded
		data := payloads.OrderFulfillmentEvent{
			OrderEvent:     BaseEvent(loaded, tr.From, trigger),
			TrackingNumber: loaded.TrackingNumber,
			CarrierName:    loaded.CarrierName,
		}
		return s.outbox.Emit(ctx, tx, NewOrderEvent(loaded, EventTypeFor(trigger), data))
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"status":   order.Status,
	}), "order fulfillment updated")
	return order, nil
}

func (s *service) UpdatePaymentStatus(ctx context.Context, input PaymentStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	extras := Extras{ExternalPaymentRef: trimmed(input.PaymentIntentID)}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err)
		}
		order = loaded
		if loaded.PaymentStatus == input.PaymentStatus {
			return nil
		}
		trigger, err := lifecycle.TriggerForPaymentStatus(input.PaymentStatus)
		if err != nil {
			return err
		}
		tr, err := lifecycle.Next(StateOf(loaded), trigger)
		if err != nil {
			return err
		}
		if tr.Noop {
			return nil
		}
		if err := ApplyTransition(ctx, repo, loaded, tr, extras, s.now()); err != nil {
			return err
		}
		data := payloads.OrderPaymentEvent{
			OrderEvent: BaseEvent(loaded, tr.From, trigger),
			Source:     "admin",
		}
		if extras.ExternalPaymentRef != nil {
			data.PaymentIntentID = *extras.ExternalPaymentRef
		}
		return s.outbox.Emit(ctx, tx, NewOrderEvent(loaded, EventTypeFor(trigger), data))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		tr, err := lifecycle.Next(StateOf(loaded), lifecycle.TriggerCancel)
		if err != nil {
			return err
		}
		if err := ApplyTransition(ctx, repo, loaded, tr, Extras{}, s.now()); err != nil {
			return err
		}
		order = loaded
		data := payloads.OrderCancelledEvent{
			OrderEvent:    BaseEvent(loaded, tr.From, lifecycle.TriggerCancel),
			RestoredItems: len(loaded.Items),
		}
		return s.outbox.Emit(ctx, tx, NewOrderEvent(loaded, enums.EventOrderCancelled, data))
	})
	if err != nil {
		return nil, err
	}

	s.restoreInventory(ctx, order)
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order cancelled")
	return order, nil
}

// restoreInventory runs after the cancel commits. Each item is restored on its
// own; a failure is logged and counted but never undoes the cancellation.
func (s *service) restoreInventory(ctx context.Context, order *models.Order) {
	var errs error
	for _, item := range order.Items {
		if err := s.inventory.Increment(ctx, nil, item.ProductID, item.Quantity); err != nil {
			errs = multierr.Append(errs, err)
			if s.metrics != nil {
				s.metrics.IncRestoreFailure()
			}
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"order_id":   order.ID.String(),
				"product_id": item.ProductID.String(),
				"quantity":   item.Quantity,
			}), "inventory restore failed", err)
		}
	}
	if errs != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"failed":   len(multierr.Errors(errs)),
			"items":    len(order.Items),
		}), "order cancelled with partial inventory restore")
	}
}

func validateCreate(input *CreateOrderInput) error {
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one item")
	}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required").
				WithDetails(map[string]any{"field": fmt.Sprintf("items[%d].productId", i)})
		}
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"field": fmt.Sprintf("items[%d].quantity", i)})
		}
	}

	missing := []string{}
	if strings.TrimSpace(input.Customer.Name) == "" {
		missing = append(missing, "customerInfo.name")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		missing = append(missing, "customerInfo.email")
	}
	addr := input.Shipping.Address
	for _, f := range []struct{ name, value string }{
		{"shippingInfo.line1", addr.Line1},
		{"shippingInfo.city", addr.City},
		{"shippingInfo.state", addr.State},
		{"shippingInfo.postalCode", addr.PostalCode},
		{"shippingInfo.country", addr.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}

	if input.PaymentMethod == "" {
		input.PaymentMethod = enums.PaymentMethodCard
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	input.PaymentIntentID = trimmed(input.PaymentIntentID)
	return nil
}

func isOrderNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, orderNumberConstraint) || db.IsUniqueViolation(err, orderNumberColumn)
}

func mapLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
