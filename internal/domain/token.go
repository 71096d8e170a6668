package domain

import "time"

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair is issued on every login, registration and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Identity is what a verified token resolves to.
type Identity struct {
	UserID    int64
	Alias     string
	TokenID   string
	Kind      TokenKind
	ExpiresAt time.Time
}

// RevokedToken is a denylist entry keyed by the token's jti.
type RevokedToken struct {
	TokenID   string
	UserID    int64
	ExpiresAt time.Time
	RevokedAt time.Time
}
