package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"todolist/internal/domain"
	"todolist/internal/repository"
)

// expiry columns hold unix seconds so range deletes compare numerically
const createRevokedTokensTable = `
CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	revoked_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens(expires_at);
`

type RevocationRepository struct {
	db *sql.DB
}

func NewRevocationRepository(db *sql.DB) repository.RevocationRepository {
	return &RevocationRepository{db: db}
}

func (r *RevocationRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRevokedTokensTable); err != nil {
		return fmt.Errorf("create revoked_tokens table: %w", err)
	}
	return nil
}

func (r *RevocationRepository) Revoke(ctx context.Context, token domain.RevokedToken) error {
	revokedAt := token.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO revoked_tokens (token_id, user_id, expires_at, revoked_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(token_id) DO NOTHING`,
		token.TokenID,
		token.UserID,
		token.ExpiresAt.Unix(),
		revokedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoked token rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("token %s: %w", token.TokenID, repository.ErrDuplicate)
	}
	return nil
}

func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = ?)`,
		tokenID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}
	return exists == 1, nil
}

func (r *RevocationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return n, nil
}
