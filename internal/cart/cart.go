package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fjod/storefront-cart/internal/domain"
	"go.uber.org/zap"
)

// StorageKey names the persisted slot. Bump the version when the layout changes.
const StorageKey = "storefront-cart-v1"

// SlotFor returns the storage slot of a session's cart.
func SlotFor(sessionID string) string {
	if sessionID == "" {
		return StorageKey
	}
	return StorageKey + ":" + sessionID
}

// Store is the persistence port of a cart. Load returns an error when the slot
// is absent or unreadable; the cart treats both as an empty cart.
type Store interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, data []byte) error
}

// Cart holds the line items of one shopper. All methods are safe for
// concurrent use; every mutation persists a full snapshot before returning.
type Cart struct {
	mu    sync.Mutex
	store Store
	slot  string
	log   *zap.Logger

	items map[domain.LineKey]*domain.LineItem
	order []domain.LineKey // insertion order
	open  bool
}

type Option func(*Cart)

func WithLogger(log *zap.Logger) Option {
	return func(c *Cart) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a cart bound to slot and rehydrates it from store. A nil store
// keeps the cart in memory only. An unreadable slot yields an empty cart.
func New(ctx context.Context, store Store, slot string, opts ...Option) *Cart {
	c := newCart(store, slot, opts)
	if err := c.load(ctx); err != nil {
		c.log.Debug("cart slot not loaded, starting empty", zap.String("slot", c.slot), zap.Error(err))
	}
	return c
}

// Restore is New for callers that must not overwrite a slot they failed to
// read. A store read error is returned alongside an empty cart; malformed
// content is not an error.
func Restore(ctx context.Context, store Store, slot string, opts ...Option) (*Cart, error) {
	c := newCart(store, slot, opts)
	return c, c.load(ctx)
}

func newCart(store Store, slot string, opts []Option) *Cart {
	c := &Cart{
		store: store,
		slot:  slot,
		log:   zap.NewNop(),
		items: make(map[domain.LineKey]*domain.LineItem),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// load returns only store read errors.
func (c *Cart) load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	data, err := c.store.Load(ctx, c.slot)
	if err != nil {
		return err
	}

	var stored []domain.LineItem
	if err := json.Unmarshal(data, &stored); err != nil {
		c.log.Warn("malformed cart slot, starting empty", zap.String("slot", c.slot), zap.Error(err))
		return nil
	}

	for _, li := range stored {
		if li.ProductID == "" || li.Quantity <= 0 || li.UnitPrice < 0 {
			c.log.Warn("dropping invalid stored line item",
				zap.String("slot", c.slot),
				zap.String("product_id", li.ProductID),
				zap.Int("quantity", li.Quantity))
			continue
		}
		c.merge(li)
	}
	return nil
}

// merge adds li to the collection; an existing key keeps its price and gains quantity.
func (c *Cart) merge(li domain.LineItem) {
	key := li.Key()
	if existing, ok := c.items[key]; ok {
		existing.Quantity += li.Quantity
		return
	}
	item := li
	c.items[key] = &item
	c.order = append(c.order, key)
}

// AddItem puts quantity units of product (and optional variant) into the cart.
// A line that already exists keeps the unit price captured when it was created.
func (c *Cart) AddItem(ctx context.Context, product domain.Product, quantity int, variant domain.Variant) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if product == nil || product.ID() == "" || product.Price() < 0 {
		return domain.ErrInvalidProduct
	}

	li := domain.LineItem{
		ProductID: product.ID(),
		Quantity:  quantity,
		UnitPrice: product.Price(),
	}
	if variant != nil {
		if variant.ID() == "" {
			return domain.ErrInvalidProduct
		}
		li.VariantID = variant.ID()
		if price, ok := variant.Price(); ok {
			if price < 0 {
				return domain.ErrInvalidProduct
			}
			li.UnitPrice = price
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.merge(li)
	c.persist(ctx)
	return nil
}

// RemoveItem deletes a line. Removing an absent line does nothing.
func (c *Cart) RemoveItem(ctx context.Context, productID, variantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(domain.KeyOf(productID, variantID))
	c.persist(ctx)
}

func (c *Cart) remove(key domain.LineKey) {
	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// UpdateQuantity sets a line's quantity to exactly quantity. Zero or less
// removes the line; an absent line is left absent.
func (c *Cart) UpdateQuantity(ctx context.Context, productID, variantID string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := domain.KeyOf(productID, variantID)
	if quantity <= 0 {
		c.remove(key)
	} else if item, ok := c.items[key]; ok {
		item.Quantity = quantity
	}
	c.persist(ctx)
}

func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[domain.LineKey]*domain.LineItem)
	c.order = nil
	c.persist(ctx)
}

// persist writes the full line list. Failures are logged and otherwise
// ignored: the in-memory cart stays authoritative. Callers hold c.mu.
func (c *Cart) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(c.itemsLocked())
	if err != nil {
		c.log.Error("failed to encode cart", zap.String("slot", c.slot), zap.Error(err))
		return
	}
	if err := c.store.Save(ctx, c.slot, data); err != nil {
		c.log.Warn("failed to persist cart", zap.String("slot", c.slot), zap.Error(err))
	}
}

func (c *Cart) itemsLocked() []domain.LineItem {
	out := make([]domain.LineItem, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, *c.items[key])
	}
	return out
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []domain.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked()
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalItems(c.items)
}

func (c *Cart) TotalPrice() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalPrice(c.items)
}

func totalItems(items map[domain.LineKey]*domain.LineItem) int {
	n := 0
	for _, li := range items {
		n += li.Quantity
	}
	return n
}

func totalPrice(items map[domain.LineKey]*domain.LineItem) int64 {
	var sum int64
	for _, li := range items {
		sum += li.Subtotal()
	}
	return sum
}

func (c *Cart) ItemQuantity(productID, variantID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if li, ok := c.items[domain.KeyOf(productID, variantID)]; ok {
		return li.Quantity
	}
	return 0
}

func (c *Cart) InCart(productID, variantID string) bool {
	return c.ItemQuantity(productID, variantID) > 0
}

// Drawer state is presentation only and is never persisted.

func (c *Cart) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Cart) Open() { c.setOpen(true) }

func (c *Cart) Close() { c.setOpen(false) }

func (c *Cart) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = !c.open
	return c.open
}

func (c *Cart) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

// Snapshot is a consistent view of the cart taken under one lock.
type Snapshot struct {
	Items      []domain.LineItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalPrice int64             `json:"totalPrice"`
	IsOpen     bool              `json:"isOpen"`
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Items:      c.itemsLocked(),
		TotalItems: totalItems(c.items),
		TotalPrice: totalPrice(c.items),
		IsOpen:     c.open,
	}
}
