package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/repository"
	"go.uber.org/zap"
)

const cacheTimeout = time.Second

// Persistence is the cart store: a slot store with an optional cache in front.
type Persistence struct {
	repo  repository.SlotStore
	cache cache.SlotCache
	log   *zap.Logger
}

// NewPersistence wires repo behind c. A nil cache reads and writes repo directly.
func NewPersistence(repo repository.SlotStore, c cache.SlotCache, log *zap.Logger) *Persistence {
	if log == nil {
		log = zap.NewNop()
	}
	return &Persistence{repo: repo, cache: c, log: log}
}

func (p *Persistence) Load(ctx context.Context, slot string) ([]byte, error) {
	if p.cache != nil {
		data, err := p.cache.Get(ctx, slot)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.log.Warn("cache get error", zap.String("slot", slot), zap.Error(err))
		}
	}

	data, err := p.repo.Load(ctx, slot)
	if err != nil {
		return nil, err
	}

	// Filled before returning so that a following Save always invalidates
	// after the fill, never before it.
	if p.cache != nil {
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
		defer cancel()
		if err := p.cache.Set(setCtx, slot, data); err != nil {
			p.log.Warn("cache set error", zap.String("slot", slot), zap.Error(err))
		}
	}

	return data, nil
}

func (p *Persistence) Save(ctx context.Context, slot string, data []byte) error {
	if err := p.repo.Save(ctx, slot, data); err != nil {
		return err
	}
	p.invalidate(slot)
	return nil
}

func (p *Persistence) Delete(ctx context.Context, slot string) error {
	if err := p.repo.Delete(ctx, slot); err != nil {
		return err
	}
	p.invalidate(slot)
	return nil
}

func (p *Persistence) invalidate(slot string) {
	if p.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := p.cache.Delete(ctx, slot); err != nil {
		p.log.Warn("cache invalidate error", zap.String("slot", slot), zap.Error(err))
	}
}
