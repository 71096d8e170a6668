package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todolist/internal/domain"
	"todolist/internal/repository"
)

func TestRevocationRepository_Redis(t *testing.T) {
	addr := os.Getenv("TODOLIST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TODOLIST_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := Open(ctx, Options{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	prefix := "todolist-test:" + uuid.NewString() + ":"
	repo := NewRevocationRepository(client, prefix)
	require.NoError(t, repo.Init(ctx))

	tok := domain.RevokedToken{TokenID: "jti-1", UserID: 7, ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Revoke(ctx, tok))
	require.ErrorIs(t, repo.Revoke(ctx, tok), repository.ErrDuplicate)

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := client.TTL(ctx, prefix+"jti-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	n, err := repo.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Open(ctx, Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
