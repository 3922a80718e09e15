package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveLoadDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "slot")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	payload := []byte(`[{"productId":"p1","quantity":1,"unitPrice":100}]`)
	require.NoError(t, store.Save(ctx, "slot", payload))

	got, err := store.Load(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// returned bytes are a copy
	got[0] = 'x'
	again, _ := store.Load(ctx, "slot")
	assert.Equal(t, payload, again)

	require.NoError(t, store.Delete(ctx, "slot"))
	require.NoError(t, store.Delete(ctx, "slot"))
	_, err = store.Load(ctx, "slot")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}
