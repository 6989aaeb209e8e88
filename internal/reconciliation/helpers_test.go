package reconciliation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/internal/orders"
	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
)

type recordingOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return errors.New("outbox emit requires a transaction")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) count(eventType enums.OutboxEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type recordingAlerts struct {
	reasons []string
}

func (r *recordingAlerts) Discrepancy(reason string, _ map[string]any) {
	r.reasons = append(r.reasons, reason)
}

// stubGateway answers RetrieveIntent from a map and records refund calls.
type stubGateway struct {
	mu          sync.Mutex
	snapshots   map[string]*payments.IntentSnapshot
	retrieveErr error
	refundCalls []payments.RefundRequest
	refundSeq   int
	refundState enums.RefundStatus
}

func (g *stubGateway) Method() enums.PaymentMethod { return enums.PaymentMethodCard }

func (g *stubGateway) CreateIntent(context.Context, payments.IntentRequest) (*payments.IntentHandle, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) RetrieveIntent(_ context.Context, id string) (*payments.IntentSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	snap, ok := g.snapshots[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	return snap, nil
}

func (g *stubGateway) CreateRefund(_ context.Context, req payments.RefundRequest) (*payments.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls = append(g.refundCalls, req)
	g.refundSeq++
	status := g.refundState
	if status == "" {
		status = enums.RefundStatusSucceeded
	}
	return &payments.RefundResult{
		RefundID: "re_" + uuid.NewString()[:8],
		Amount:   *req.Amount,
		Status:   status,
	}, nil
}

func (g *stubGateway) set(id string, status enums.IntentStatus, errMsg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots[id] = &payments.IntentSnapshot{IntentID: id, Status: status, ErrorMessage: errMsg}
}

type harness struct {
	conn    *gorm.DB
	svc     Service
	outbox  *recordingOutbox
	alerts  *recordingAlerts
	metrics *metrics.ReconciliationMetrics
	reg     *prometheus.Registry
	gateway *stubGateway
	orders  orders.Repository
	intents payments.IntentRepository
	linker  payments.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := newTestDB(t)
	reg := prometheus.NewRegistry()
	h := &harness{
		reg:     reg,
		conn:    conn,
		outbox:  &recordingOutbox{},
		alerts:  &recordingAlerts{},
		metrics: metrics.NewReconciliationMetrics(reg),
		gateway: &stubGateway{snapshots: map[string]*payments.IntentSnapshot{}},
		orders:  orders.NewRepository(conn),
		intents: payments.NewIntentRepository(conn),
	}
	log := logger.New(logger.Options{ServiceName: "reconciliation-test", Output: io.Discard})
	gateways := payments.NewGateways(h.gateway)
	linker, err := payments.NewService(payments.ServiceParams{
		Intents:  h.intents,
		Tx:       db.FromConn(conn),
		Gateways: gateways,
		Orders:   orderLookup{repo: h.orders},
		Logger:   log,
	})
	require.NoError(t, err)
	h.linker = linker

	h.svc, err = NewService(ServiceParams{
		Intents:  h.intents,
		Refunds:  payments.NewRefundRepository(conn),
		Orders:   h.orders,
		Tx:       db.FromConn(conn),
		Outbox:   h.outbox,
		Gateways: gateways,
		Linker:   linker,
		Alerts:   h.alerts,
		Metrics:  h.metrics,
		Logger:   log,
	})
	require.NoError(t, err)
	return h
}

type orderLookup struct{ repo orders.Repository }

func (o orderLookup) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return o.repo.FindByID(ctx, id)
}

func (h *harness) seedOrder(t *testing.T, status enums.OrderStatus, payment enums.PaymentStatus, total string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   "OB-TEST-" + uuid.NewString()[:8],
		Status:        status,
		PaymentStatus: payment,
		PaymentMethod: enums.PaymentMethodCard,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Subtotal:      decimal.RequireFromString(total),
		Tax:           decimal.Zero,
		Shipping:      decimal.Zero,
		Total:         decimal.RequireFromString(total),
		Currency:      enums.CurrencyUSD,
	}
	require.NoError(t, h.conn.Create(order).Error)
	return order
}

// seedIntent records an intent, linked to order when it is non-nil.
func (h *harness) seedIntent(t *testing.T, order *models.Order, status enums.IntentStatus, amount string) *models.PaymentIntent {
	t.Helper()
	intent := &models.PaymentIntent{
		ID:       "pi_" + uuid.NewString()[:10],
		Provider: enums.PaymentMethodCard,
		Amount:   decimal.RequireFromString(amount),
		Currency: enums.CurrencyUSD,
		Status:   status,
	}
	if order != nil {
		id := order.ID
		intent.OrderID = &id
	}
	require.NoError(t, h.conn.Create(intent).Error)
	return intent
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := h.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (h *harness) intent(t *testing.T, id string) *models.PaymentIntent {
	t.Helper()
	intent, err := h.intents.FindByID(context.Background(), id)
	require.NoError(t, err)
	return intent
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reconciliation_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentIntent{},
		&models.Refund{},
	))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
