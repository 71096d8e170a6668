package repository

import (
	"context"
	"time"

	"todolist/internal/domain"
)

// RevocationRepository is the server-side denylist for refresh tokens.
type RevocationRepository interface {
	Init(ctx context.Context) error
	// Revoke records the token id. It returns ErrDuplicate when the id is already
	// present, which makes it usable as an atomic "use once" check.
	Revoke(ctx context.Context, token domain.RevokedToken) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// PurgeExpired drops entries whose token already expired and returns how many went away.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
