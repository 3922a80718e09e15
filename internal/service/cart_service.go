package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/storefront-cart/internal/cart"
	"github.com/fjod/storefront-cart/internal/catalog"
	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrMissingSession     = errors.New("session id is required")
	ErrStorageUnavailable = errors.New("cart storage unavailable")
)

const loadTimeout = 5 * time.Second

type slotDeleter interface {
	Delete(ctx context.Context, slot string) error
}

type session struct {
	cart     *cart.Cart
	lastUsed atomic.Int64 // unix nanos
}

// CartService owns one cart per shopper session.
type CartService struct {
	store   cart.Store
	catalog catalog.Catalog
	log     *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	sfg      singleflight.Group // collapses concurrent first loads of a session
}

func NewCartService(store cart.Store, cat catalog.Catalog, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		store:    store,
		catalog:  cat,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (s *CartService) touch(sess *session) {
	sess.lastUsed.Store(s.now().UnixNano())
}

// cartFor returns the session's cart, loading it on first use. A cart whose
// slot could not be read is not kept, so the next call retries the read
// instead of overwriting the stored cart with an empty one.
func (s *CartService) cartFor(ctx context.Context, sessionID string) (*cart.Cart, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		s.touch(sess)
		return sess.cart, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		s.mu.RLock()
		sess, ok := s.sessions[sessionID]
		s.mu.RUnlock()
		if ok {
			return sess, nil
		}

		// The load outlives the request that triggered it: the result is shared.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		c, err := cart.Restore(loadCtx, s.store, cart.SlotFor(sessionID),
			cart.WithLogger(s.log.With(zap.String("session_id", sessionID))))
		if err != nil && !errors.Is(err, repository.ErrSlotNotFound) {
			s.log.Warn("failed to load cart", zap.String("session_id", sessionID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		sess = &session{cart: c}
		s.touch(sess)
		s.mu.Lock()
		s.sessions[sessionID] = sess
		s.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}

	sess = v.(*session)
	s.touch(sess)
	return sess.cart, nil
}

func (s *CartService) GetCart(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	c, err := s.cartFor(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// AddItem prices the product (and variant, when variantID is set) from the
// catalog and adds it to the session's cart.
func (s *CartService) AddItem(ctx context.Context, sessionID, productID, variantID string, quantity int) (cart.Snapshot, error) {
	if quantity <= 0 {
		return cart.Snapshot{}, domain.ErrInvalidQuantity
	}
	c, err := s.cartFor(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	item, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	var variant domain.Variant
	if variantID != "" {
		if variant, err = item.Variant(variantID); err != nil {
			return cart.Snapshot{}, err
		}
	}

	if err := c.AddItem(ctx, item.Product, quantity, variant); err != nil {
		return cart.Snapshot{}, err
	}

	s.log.Debug("item added",
		zap.String("session_id", sessionID),
		zap.String("product_id", productID),
		zap.String("variant_id", variantID),
		zap.Int("quantity", quantity))
	return c.Snapshot(), nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID, variantID string, quantity int) (cart.Snapshot, error) {
	c, err := s.cartFor(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	c.UpdateQuantity(ctx, productID, variantID, quantity)
	return c.Snapshot(), nil
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID, variantID string) (cart.Snapshot, error) {
	c, err := s.cartFor(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	c.RemoveItem(ctx, productID, variantID)
	return c.Snapshot(), nil
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	c, err := s.cartFor(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	c.Clear(ctx)
	snap := c.Snapshot()
	s.Evict(sessionID)
	return snap, nil
}

func (s *CartService) ToggleDrawer(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	c, err := s.cartFor(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	c.Toggle()
	return c.Snapshot(), nil
}

func (s *CartService) SetDrawer(ctx context.Context, sessionID string, open bool) (cart.Snapshot, error) {
	c, err := s.cartFor(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if open {
		c.Open()
	} else {
		c.Close()
	}
	return c.Snapshot(), nil
}

// Evict forgets the in-memory cart of a session; the next access reloads it
// from the store.
func (s *CartService) Evict(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// EvictIdle forgets every cart unused for longer than idle and returns how
// many were dropped. Slots of evicted empty carts are deleted when the store
// supports it.
func (s *CartService) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := s.now().Add(-idle).UnixNano()

	evicted := make(map[string]*cart.Cart)
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastUsed.Load() < cutoff {
			evicted[id] = sess.cart
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	if d, ok := s.store.(slotDeleter); ok {
		for id, c := range evicted {
			if c.TotalItems() > 0 {
				continue
			}
			if err := d.Delete(ctx, cart.SlotFor(id)); err != nil {
				s.log.Warn("failed to delete empty cart slot", zap.String("session_id", id), zap.Error(err))
			}
		}
	}
	return len(evicted)
}

// RunEviction calls EvictIdle every interval until ctx is cancelled.
func (s *CartService) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(ctx, idle); n > 0 {
				s.log.Debug("evicted idle carts", zap.Int("count", n))
			}
		}
	}
}
