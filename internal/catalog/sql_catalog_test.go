package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLCatalog(t *testing.T) *SQLCatalog {
	c, err := OpenSQLCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, c.RunMigrations())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLCatalog_SeededProducts(t *testing.T) {
	c := setupSQLCatalog(t)
	ctx := context.Background()

	item, err := c.Product(ctx, "monture-atlas")
	require.NoError(t, err)
	assert.Equal(t, "Monture Atlas", item.Name)
	assert.Equal(t, int64(12900), item.Product.Price())
	assert.Len(t, item.Variants, 3)

	titane, err := item.Variant("titane")
	require.NoError(t, err)
	price, ok := titane.Price()
	assert.True(t, ok)
	assert.Equal(t, int64(15900), price)

	noir, err := item.Variant("noir")
	require.NoError(t, err)
	_, ok = noir.Price()
	assert.False(t, ok)

	_, err = item.Variant("or-rose")
	assert.ErrorIs(t, err, ErrVariantNotFound)

	etui, err := c.Product(ctx, "etui-cuir")
	require.NoError(t, err)
	assert.Empty(t, etui.Variants)
}

func TestSQLCatalog_MatchesDemoItems(t *testing.T) {
	c := setupSQLCatalog(t)

	for _, want := range DemoItems() {
		got, err := c.Product(context.Background(), want.Product.ID())
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Product.Price(), got.Product.Price())
		assert.Equal(t, len(want.Variants), len(got.Variants))
	}
}

func TestSQLCatalog_NotFound(t *testing.T) {
	c := setupSQLCatalog(t)

	_, err := c.Product(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestSQLCatalog_MigrationsAreIdempotent(t *testing.T) {
	c := setupSQLCatalog(t)
	assert.NoError(t, c.RunMigrations())
}

func TestSQLCatalog_CancelledContext(t *testing.T) {
	c := setupSQLCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Product(ctx, "monture-atlas")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}
