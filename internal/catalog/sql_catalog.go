package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLCatalog reads products from a SQLite database.
type SQLCatalog struct {
	db *sql.DB
}

func NewSQLCatalog(db *sql.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

func OpenSQLCatalog(dbPath string) (*SQLCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLCatalog(db), nil
}

// RunMigrations creates and seeds the product tables. The catalog keeps its own
// migrations table so it can share a database file with the cart slots.
func (c *SQLCatalog) RunMigrations() error {
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{MigrationsTable: "catalog_schema_migrations"})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (c *SQLCatalog) Product(ctx context.Context, id string) (Item, error) {
	var (
		name  string
		price int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT name, price FROM products WHERE id = $1`, id,
	).Scan(&name, &price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrProductNotFound
		}
		return Item{}, fmt.Errorf("%w: failed to query product: %v", ErrCatalogUnavailable, err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, price FROM product_variants WHERE product_id = $1 ORDER BY id`, id)
	if err != nil {
		return Item{}, fmt.Errorf("%w: failed to query variants: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	item := Item{
		Product: SimpleProduct{ProductID: id, UnitPrice: price},
		Name:    name,
	}
	for rows.Next() {
		var (
			variantID string
			override  sql.NullInt64
		)
		if err := rows.Scan(&variantID, &override); err != nil {
			return Item{}, fmt.Errorf("%w: failed to scan variant: %v", ErrCatalogUnavailable, err)
		}
		v := SimpleVariant{VariantID: variantID}
		if override.Valid {
			v.PriceOverride = Override(override.Int64)
		}
		if item.Variants == nil {
			item.Variants = make(map[string]domain.Variant)
		}
		item.Variants[variantID] = v
	}
	if err := rows.Err(); err != nil {
		return Item{}, fmt.Errorf("%w: row iteration error: %v", ErrCatalogUnavailable, err)
	}

	return item, nil
}

func (c *SQLCatalog) Close() error {
	return c.db.Close()
}
