package repository

import (
	"context"
	"errors"
)

var ErrSlotNotFound = errors.New("cart slot not found")

// SlotStore keeps serialized carts addressed by slot name.
// Consumers define this interface, not the storage implementations.
type SlotStore interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, data []byte) error
	Delete(ctx context.Context, slot string) error
}
