// Package inventory owns the per-product available-quantity counter. Every
// mutation is a single conditional UPDATE so concurrent checkouts never lose
// updates and the counter never goes below zero.
package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

const (
	decrementExactSQL = `
		UPDATE products
		SET inventory_qty = inventory_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND inventory_qty >= ?`

	adjustClampedSQL = `
		UPDATE products
		SET inventory_qty = CASE WHEN inventory_qty + ? < 0 THEN 0 ELSE inventory_qty + ? END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
)

// Adjustment reports what a decrement actually did.
type Adjustment struct {
	ProductID uuid.UUID
	Requested int
	// Clamped is true when availability was short and the counter was floored at zero.
	Clamped bool
}

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Decrement removes qty units, flooring at zero. When stock is short the
// checkout still proceeds and the returned Adjustment is marked Clamped.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (Adjustment, error) {
	adj := Adjustment{ProductID: productID, Requested: qty}
	if qty <= 0 {
		return adj, pkgerrors.New(pkgerrors.CodeValidation, "decrement quantity must be positive")
	}
	conn := l.conn(ctx, tx)

	res := conn.Exec(decrementExactSQL, qty, productID, qty)
	if res.Error != nil {
		return adj, pkgerrors.Wrap(pkgerrors.CodeStorage, res.Error, "decrement inventory")
	}
	if res.RowsAffected == 1 {
		return adj, nil
	}

	if err := l.adjustClamped(conn, productID, -qty); err != nil {
		return adj, err
	}
	adj.Clamped = true
	return adj, nil
}

// Increment adds qty units back. It is the mirror of Decrement used when an
// order is cancelled.
func (l *Ledger) Increment(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "increment quantity must be positive")
	}
	return l.adjustClamped(l.conn(ctx, tx), productID, qty)
}

// Available returns the current counter for a product.
func (l *Ledger) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	var product models.Product
	err := l.db.WithContext(ctx).Select("inventory_qty").First(&product, "id = ?", productID).Error
	if err != nil {
		if db.IsNotFound(err) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load inventory")
	}
	return product.InventoryQty, nil
}

func (l *Ledger) adjustClamped(conn *gorm.DB, productID uuid.UUID, delta int) error {
	res := conn.Exec(adjustClampedSQL, delta, delta, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, res.Error, "adjust inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

func (l *Ledger) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		tx = l.db
	}
	return tx.WithContext(ctx)
}
