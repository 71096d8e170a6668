package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todolist/internal/metrics"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 2, metrics.Nop{})
	ctx := context.Background()

	hash, err := h.Hash(ctx, "rightpw")
	require.NoError(t, err)
	assert.NotEqual(t, "rightpw", hash)

	ok, err := h.Compare(ctx, hash, "rightpw")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(ctx, hash, "wrongpw")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare(ctx, "not-a-hash", "rightpw")
	require.Error(t, err)

	require.NoError(t, h.CompareDummy(ctx, "whatever"))
}

func TestHasher_SaltsEachHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1, nil)

	a, err := h.Hash(context.Background(), "samepw")
	require.NoError(t, err)
	b, err := h.Hash(context.Background(), "samepw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_WaitsForSlotWithContext(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1, metrics.Nop{})

	// occupy the only slot
	require.NoError(t, h.acquire(context.Background()))
	defer h.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Hash(ctx, "rightpw")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHasher_DummyCompareWaitsForSlot(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1, metrics.Nop{})

	require.NoError(t, h.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.CompareDummy(ctx, "whatever")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, h.dummyHash, "no bcrypt work without a slot")

	h.release()
	require.NoError(t, h.CompareDummy(context.Background(), "whatever"))
	assert.NotNil(t, h.dummyHash)
}
