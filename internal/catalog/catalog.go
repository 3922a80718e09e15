package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/storefront-cart/internal/domain"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Catalog resolves product ids into values the cart can price.
type Catalog interface {
	Product(ctx context.Context, id string) (Item, error)
}

// Item is a catalog product with its variants, already adapted to the cart's
// product capability.
type Item struct {
	Product  domain.Product
	Name     string
	Variants map[string]domain.Variant
}

func (i Item) Variant(id string) (domain.Variant, error) {
	v, ok := i.Variants[id]
	if !ok {
		return nil, ErrVariantNotFound
	}
	return v, nil
}

// SimpleProduct is the storefront's own product shape.
type SimpleProduct struct {
	ProductID string
	UnitPrice int64
}

func (p SimpleProduct) ID() string   { return p.ProductID }
func (p SimpleProduct) Price() int64 { return p.UnitPrice }

// SimpleVariant optionally overrides its product's price.
type SimpleVariant struct {
	VariantID     string
	PriceOverride *int64
}

func (v SimpleVariant) ID() string { return v.VariantID }

func (v SimpleVariant) Price() (int64, bool) {
	if v.PriceOverride == nil {
		return 0, false
	}
	return *v.PriceOverride, true
}

func Override(price int64) *int64 { return &price }

// MemoryCatalog serves a fixed set of products.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewMemoryCatalog(items ...Item) *MemoryCatalog {
	c := &MemoryCatalog{items: make(map[string]Item, len(items))}
	for _, it := range items {
		c.Put(it)
	}
	return c
}

func (c *MemoryCatalog) Put(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.Product.ID()] = item
}

func (c *MemoryCatalog) Product(_ context.Context, id string) (Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return Item{}, ErrProductNotFound
	}
	return item, nil
}

// DemoItems is a small eyewear range used when no catalog backend is configured.
func DemoItems() []Item {
	return []Item{
		{
			Product: SimpleProduct{ProductID: "monture-atlas", UnitPrice: 12900},
			Name:    "Monture Atlas",
			Variants: map[string]domain.Variant{
				"ecaille": SimpleVariant{VariantID: "ecaille"},
				"noir":    SimpleVariant{VariantID: "noir"},
				"titane":  SimpleVariant{VariantID: "titane", PriceOverride: Override(15900)},
			},
		},
		{
			Product: SimpleProduct{ProductID: "solaire-riviera", UnitPrice: 14500},
			Name:    "Solaire Riviera",
			Variants: map[string]domain.Variant{
				"polarise": SimpleVariant{VariantID: "polarise", PriceOverride: Override(17900)},
			},
		},
		{
			Product: SimpleProduct{ProductID: "etui-cuir", UnitPrice: 2500},
			Name:    "Étui cuir",
		},
	}
}
