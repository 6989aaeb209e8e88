package payments

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

type fakeGateway struct {
	method   enums.PaymentMethod
	requests []IntentRequest
	handle   *IntentHandle
	err      error
}

func (f *fakeGateway) Method() enums.PaymentMethod { return f.method }

func (f *fakeGateway) CreateIntent(_ context.Context, req IntentRequest) (*IntentHandle, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	h := *f.handle
	h.Amount = req.Amount
	return &h, nil
}

func (f *fakeGateway) RetrieveIntent(context.Context, string) (*IntentSnapshot, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not used")
}

func (f *fakeGateway) CreateRefund(context.Context, RefundRequest) (*RefundResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not used")
}

type gormOrderLookup struct{ conn *gorm.DB }

func (g gormOrderLookup) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := g.conn.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &order, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
}

func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus, total string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   "OB-TEST-" + uuid.NewString()[:6],
		Status:        status,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: enums.PaymentMethodCard,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Subtotal:      decimal.RequireFromString(total),
		Tax:           decimal.Zero,
		Shipping:      decimal.Zero,
		Total:         decimal.RequireFromString(total),
		Currency:      enums.CurrencyUSD,
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.PaymentIntent{}, &models.Refund{}))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
