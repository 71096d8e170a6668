// Package token issues and verifies the signed access/refresh token pair.
//
// Both tokens are HS256 JWTs. They are signed with different keys and carry a
// "typ" claim, so a refresh token is never accepted where an access token is
// expected and vice versa. Verification is stateless.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"todolist/internal/domain"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and wrong token kinds.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for a correctly signed token past its expiry.
	ErrExpiredToken = errors.New("token expired")
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "todolist"
)

// Claims is the JWT payload shared by both token kinds.
type Claims struct {
	Kind  domain.TokenKind `json:"typ"`
	Alias string           `json:"alias"`
	jwt.RegisteredClaims
}

// Config holds signing keys and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Manager is both the token issuer and the token verifier.
type Manager struct {
	cfg Config
	now func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests to move past expiry.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	clone := *m
	clone.now = now
	return &clone
}

func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// Issue mints a fresh access/refresh pair for the user.
func (m *Manager) Issue(userID int64, alias string) (domain.TokenPair, error) {
	now := m.now()

	access, accessExp, err := m.sign(domain.TokenKindAccess, userID, alias, now)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := m.sign(domain.TokenKindRefresh, userID, alias, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess resolves an access token to the identity it was issued for.
func (m *Manager) VerifyAccess(raw string) (domain.Identity, error) {
	return m.verify(domain.TokenKindAccess, raw)
}

// VerifyRefresh resolves a refresh token to the identity it was issued for.
func (m *Manager) VerifyRefresh(raw string) (domain.Identity, error) {
	return m.verify(domain.TokenKindRefresh, raw)
}

func (m *Manager) sign(kind domain.TokenKind, userID int64, alias string, now time.Time) (string, time.Time, error) {
	ttl := m.cfg.AccessTTL
	if kind == domain.TokenKindRefresh {
		ttl = m.cfg.RefreshTTL
	}
	exp := now.Add(ttl)

	claims := Claims{
		Kind:  kind,
		Alias: alias,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

func (m *Manager) verify(kind domain.TokenKind, raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, ErrInvalidToken
	}

	if claims.Kind != kind || claims.ID == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return domain.Identity{}, ErrInvalidToken
	}

	return domain.Identity{
		UserID:    userID,
		Alias:     claims.Alias,
		TokenID:   claims.ID,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (m *Manager) secret(kind domain.TokenKind) []byte {
	if kind == domain.TokenKindRefresh {
		return m.cfg.RefreshSecret
	}
	return m.cfg.AccessSecret
}
