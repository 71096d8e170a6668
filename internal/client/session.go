// Package client is the command-line side of the session lifecycle: a local
// session cache, a thin API client and the guard that reconciles the two.
package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned by SessionCache.Load when nothing is stored.
var ErrNoSession = errors.New("no stored session")

// User is the server's public view of an account.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nombre"`
	Alias     string    `json:"alias"`
	Email     *string   `json:"email"`
	Photo     *string   `json:"foto"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is what the client persists between runs.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
}

const (
	keyUser         = "user"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value BLOB
);
`

// SessionCache stores the session in a local sqlite key/value table.
type SessionCache struct {
	db *sql.DB
}

func NewSessionCache(db *sql.DB) *SessionCache {
	return &SessionCache{db: db}
}

func (c *SessionCache) Init(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createMetadataTable); err != nil {
		return fmt.Errorf("create metadata table: %w", err)
	}
	return nil
}

// Load returns the stored session or ErrNoSession. A session without a user
// or an access token counts as absent.
func (c *SessionCache) Load(ctx context.Context) (*Session, error) {
	userRaw, err := c.get(ctx, keyUser)
	if err != nil {
		return nil, err
	}
	access, err := c.get(ctx, keyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := c.get(ctx, keyRefreshToken)
	if err != nil {
		return nil, err
	}
	if userRaw == nil || len(access) == 0 {
		return nil, ErrNoSession
	}

	var user User
	if err := json.Unmarshal(userRaw, &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &Session{User: user, AccessToken: string(access), RefreshToken: string(refresh)}, nil
}

// Save replaces the stored session atomically.
func (c *SessionCache) Save(ctx context.Context, s *Session) error {
	userRaw, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session save: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string][]byte{
		keyUser:         userRaw,
		keyAccessToken:  []byte(s.AccessToken),
		keyRefreshToken: []byte(s.RefreshToken),
	} {
		_, err := tx.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return fmt.Errorf("set metadata[%s]: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session save: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an empty cache is not an error.
func (c *SessionCache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM metadata WHERE key IN (?, ?, ?)`,
		keyUser, keyAccessToken, keyRefreshToken)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (c *SessionCache) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata[%s]: %w", key, err)
	}
	return value, nil
}
