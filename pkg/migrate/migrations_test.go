package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	fsys := migrate.Migrations()
	matches, err := fs.Glob(fsys, "*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := fs.ReadFile(fsys, matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Migrations()))
}

func TestValidateRejectsBadFiles(t *testing.T) {
	up := "-- +goose Up\nSELECT 1;\n"
	both := up + "-- +goose Down\nSELECT 1;\n"

	err := migrate.Validate(fstest.MapFS{"20260101000000_missing_down.sql": {Data: []byte(up)}})
	assert.ErrorContains(t, err, "+goose Down")

	err = migrate.Validate(fstest.MapFS{"create_things.sql": {Data: []byte(both)}})
	assert.ErrorContains(t, err, "YYYYMMDDHHMMSS")

	err = migrate.Validate(fstest.MapFS{
		"20260101000000_a.sql": {Data: []byte(both)},
		"20260101000000_b.sql": {Data: []byte(both)},
		"README.md":            {Data: []byte("notes")},
	})
	assert.ErrorContains(t, err, "already used")
}

func TestCreateWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Order Notes!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260305093000_add_order_notes.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "add order notes", now)
	require.Error(t, err, "same version must not be overwritten")

	_, err = migrate.Create(dir, "!!!", now)
	require.Error(t, err)
}

func TestOrdersMigrationGuardsTotalsAndNumber(t *testing.T) {
	content := readMigration(t, "create_orders")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT ux_orders_order_number UNIQUE (order_number)",
		"CHECK (total = subtotal + tax + shipping)",
		"subtotal numeric(12,2) NOT NULL",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_items",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestProductsMigrationKeepsInventoryNonNegative(t *testing.T) {
	content := readMigration(t, "create_products")
	assert.Contains(t, content, "CHECK (inventory_qty >= 0)")
	assert.Contains(t, content, "DROP TABLE IF EXISTS products")
}

func TestPaymentMigrationKeysIntentsByProcessorID(t *testing.T) {
	content := readMigration(t, "create_payment_intents_and_refunds")
	assert.Contains(t, content, "id text PRIMARY KEY")
	assert.Contains(t, content, "payment_intent_id text NOT NULL REFERENCES payment_intents(id)")
	assert.Contains(t, content, "CHECK (amount > 0)")
}

func TestEnumMigrationMatchesOrderStatuses(t *testing.T) {
	content := readMigration(t, "create_enums")
	assert.Contains(t, content, "'payment_failed'")
	assert.Contains(t, content, "'reconciliation_discrepancy'")
	assert.Contains(t, content, "'partially_refunded'")
}
