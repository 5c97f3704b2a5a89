package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestProductsMigrationGuardsStockCounters(t *testing.T) {
	content := readMigration(t, "*_create_products.sql")
	for _, sub := range []string{
		"CHECK (on_hand >= 0)",
		"CHECK (reserved >= 0)",
		"CHECK (reserved <= on_hand)",
		"CHECK (sold_count >= 0)",
		"tracks_inventory boolean NOT NULL DEFAULT true",
		"DROP TABLE IF EXISTS products",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestOrdersMigrationFreezesTotals(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")
	assert.Contains(t, content, "CONSTRAINT orders_order_number_key UNIQUE (order_number)")
	assert.Contains(t, content, "CHECK (total = subtotal + shipping_cost + tax - discount)")

	lines := readMigration(t, "*_create_order_line_items.sql")
	assert.Contains(t, lines, "CHECK (quantity >= 1)")
	assert.Contains(t, lines, "REFERENCES orders(id) ON DELETE CASCADE")
}

func TestStatusEventsMigrationIsAppendOnly(t *testing.T) {
	content := readMigration(t, "*_create_order_status_events.sql")
	assert.Contains(t, content, "BEFORE UPDATE ON order_status_events")
	assert.Contains(t, content, "UNIQUE (order_id, sequence)")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	path, err := createAt(dir, "  Add Order Notes!! ", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260102030405_add_order_notes.sql"), path)

	_, err = createAt(dir, "add order notes", now)
	require.Error(t, err, "same version and name must not overwrite")

	require.NoError(t, ValidateDir(dir))

	_, err = createAt(dir, "!!!", now)
	require.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up"), 0o644))
	require.Error(t, ValidateDir(dir))

	dir = t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_unbalanced.sql"), []byte(body), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "StatementBegin"))
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", pattern)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}
