package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"todolist/internal/domain"
	"todolist/internal/repository"
)

const createRevokedTokensTable = `
CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked_at TIMESTAMPTZ NOT NULL
)`

const createRevokedTokensIndex = `
CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens(expires_at)`

type RevocationRepository struct {
	pool *pgxpool.Pool
}

func NewRevocationRepository(pool *pgxpool.Pool) repository.RevocationRepository {
	return &RevocationRepository{pool: pool}
}

func (r *RevocationRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createRevokedTokensTable); err != nil {
		return fmt.Errorf("create revoked_tokens table: %w", err)
	}
	if _, err := r.pool.Exec(ctx, createRevokedTokensIndex); err != nil {
		return fmt.Errorf("create revoked_tokens index: %w", err)
	}
	return nil
}

func (r *RevocationRepository) Revoke(ctx context.Context, token domain.RevokedToken) error {
	revokedAt := token.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = time.Now()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (token_id, user_id, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id) DO NOTHING`,
		token.TokenID,
		token.UserID,
		token.ExpiresAt.UTC(),
		revokedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("token %s: %w", token.TokenID, repository.ErrDuplicate)
	}
	return nil
}

func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = $1)`,
		tokenID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}
	return exists, nil
}

func (r *RevocationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
