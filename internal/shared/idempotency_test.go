package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()

	require.Error(t, store.Claim(ctx, ""))
	require.NoError(t, store.Claim(ctx, "req-1"))
	assert.ErrorIs(t, store.Claim(ctx, "req-1"), ErrIdempotencyConflict)

	id, err := store.Resolve(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, id, "in-flight key has no resource yet")

	require.NoError(t, store.Complete(ctx, "req-1", "inv-42"))
	id, err = store.Resolve(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-42", id)

	require.NoError(t, store.Release(ctx, "req-1"))
	_, err = store.Resolve(ctx, "req-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, store.Claim(ctx, "req-1"))
}
