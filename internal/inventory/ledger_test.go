package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

func TestDecrementExact(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	ledger := NewLedger(conn)
	product := seedProduct(t, conn, 5)

	adj, err := ledger.Decrement(context.Background(), nil, product.ID, 3)
	require.NoError(t, err)
	assert.False(t, adj.Clamped)

	qty, err := ledger.Available(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)
}

func TestDecrementClampsAtZero(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	ledger := NewLedger(conn)
	product := seedProduct(t, conn, 2)

	adj, err := ledger.Decrement(context.Background(), nil, product.ID, 5)
	require.NoError(t, err)
	assert.True(t, adj.Clamped)

	qty, err := ledger.Available(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}

func TestIncrementRestores(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	ledger := NewLedger(conn)
	product := seedProduct(t, conn, 1)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Increment(context.Background(), tx, product.ID, 4)
	})
	require.NoError(t, err)

	qty, err := ledger.Available(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)
}

func TestUnknownProduct(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	ledger := NewLedger(conn)
	ctx := context.Background()

	_, err := ledger.Decrement(ctx, nil, uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	err = ledger.Increment(ctx, nil, uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = ledger.Available(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	ledger := NewLedger(conn)
	product := seedProduct(t, conn, 1)

	_, err := ledger.Decrement(context.Background(), nil, product.ID, 0)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	err = ledger.Increment(context.Background(), nil, product.ID, -2)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	ledger := NewLedger(conn)
	product := seedProduct(t, conn, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ledger.Decrement(context.Background(), nil, product.ID, 2)
		}()
	}
	wg.Wait()

	qty, err := ledger.Available(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}

func seedProduct(t *testing.T, conn *gorm.DB, qty int) models.Product {
	t.Helper()
	product := models.Product{
		Name:         "Widget",
		Price:        decimal.RequireFromString("10.00"),
		InventoryQty: qty,
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
