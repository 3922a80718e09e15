package cache

import (
	"context"
	"errors"
)

// SlotCache holds serialized carts in front of the slot store.
type SlotCache interface {
	Get(ctx context.Context, slot string) ([]byte, error)
	Set(ctx context.Context, slot string, data []byte) error
	Delete(ctx context.Context, slot string) error
}

var ErrCacheMiss = errors.New("cache miss")
