package orders

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/internal/inventory"
	"github.com/angelmondragon/orderbridge-backend/internal/pricing"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
)

type recordingOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return outboxTxRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, string(e.EventType))
	}
	return out
}

var outboxTxRequired = errors.New("outbox emit requires a transaction")

type countingMetrics struct{ restoreFailures int }

func (c *countingMetrics) IncRestoreFailure() { c.restoreFailures++ }

type stubLinker struct {
	linked map[string]uuid.UUID
	err    error
}

func (l *stubLinker) LinkOrder(_ context.Context, _ *gorm.DB, intentID string, orderID uuid.UUID, _ decimal.Decimal) error {
	if l.err != nil {
		return l.err
	}
	if l.linked == nil {
		l.linked = map[string]uuid.UUID{}
	}
	l.linked[intentID] = orderID
	return nil
}

type stubSettler struct {
	settled []string
	err     error
}

func (s *stubSettler) SettleLinked(_ context.Context, intentID string) error {
	s.settled = append(s.settled, intentID)
	return s.err
}

type harness struct {
	conn    *gorm.DB
	svc     Service
	outbox  *recordingOutbox
	ledger  *inventory.Ledger
	metrics *countingMetrics
}

func newHarness(t *testing.T, mutate func(*ServiceParams)) *harness {
	t.Helper()
	conn := newTestDB(t)
	engine, err := pricing.NewEngine(config.PricingConfig{
		TaxRate:               decimal.RequireFromString("0.0825"),
		FreeShippingThreshold: decimal.RequireFromString("50.00"),
		FlatShippingFee:       decimal.RequireFromString("9.99"),
	})
	require.NoError(t, err)

	h := &harness{
		conn:    conn,
		outbox:  &recordingOutbox{},
		ledger:  inventory.NewLedger(conn),
		metrics: &countingMetrics{},
	}
	params := ServiceParams{
		Repo:      NewRepository(conn),
		Tx:        db.FromConn(conn),
		Outbox:    h.outbox,
		Inventory: h.ledger,
		Pricing:   engine,
		Metrics:   h.metrics,
		Logger:    logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard}),
	}
	if mutate != nil {
		mutate(&params)
	}
	h.svc, err = NewService(params)
	require.NoError(t, err)
	return h
}

func (h *harness) seedProduct(t *testing.T, price string, qty int) models.Product {
	t.Helper()
	p := models.Product{Name: "Candle " + uuid.NewString()[:4], Price: decimal.RequireFromString(price), InventoryQty: qty}
	require.NoError(t, h.conn.Create(&p).Error)
	return p
}

func (h *harness) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	qty, err := h.ledger.Available(context.Background(), id)
	require.NoError(t, err)
	return qty
}

func validInput(items ...CartItem) CreateOrderInput {
	return CreateOrderInput{
		Items:    items,
		Customer: CustomerInfo{Name: "Ada Lovelace", Email: "Ada@Example.com"},
		Shipping: ShippingInfo{Address: models.Address{
			Line1:      "1 Main St",
			City:       "Austin",
			State:      "TX",
			PostalCode: "78701",
			Country:    "US",
		}},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
