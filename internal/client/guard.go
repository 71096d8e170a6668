package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// State is the authentication state the guard reports.
type State int

const (
	// StateAnonymous means the user must log in before protected views.
	StateAnonymous State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Guard gates protected commands on the stored session. It reflects what the
// server says and never decides authentication on its own.
type Guard struct {
	api    *API
	cache  *SessionCache
	logger *logrus.Logger
}

func NewGuard(api *API, cache *SessionCache, logger *logrus.Logger) *Guard {
	if logger == nil {
		logger = logrus.New()
	}
	return &Guard{api: api, cache: cache, logger: logger}
}

// Check confirms the stored session with the server.
//
// Without a stored session it reports StateAnonymous. A rejected token clears
// the cache; an expired access token is first exchanged once with the stored
// refresh token. Transport failures leave the cache untouched and are returned.
func (g *Guard) Check(ctx context.Context) (State, *User, error) {
	sess, err := g.cache.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return StateAnonymous, nil, nil
	}
	if err != nil {
		return StateAnonymous, nil, err
	}

	user, err := g.api.Me(ctx, sess.AccessToken)
	if errors.Is(err, ErrExpiredToken) && sess.RefreshToken != "" {
		user, err = g.refreshAndRetry(ctx, sess)
	}

	switch {
	case err == nil:
		sess.User = *user
		if err := g.cache.Save(ctx, sess); err != nil {
			return StateAuthenticated, user, err
		}
		return StateAuthenticated, user, nil
	case isTokenRejection(err):
		g.logger.WithError(err).Debug("stored session rejected")
		if err := g.cache.Clear(ctx); err != nil {
			return StateAnonymous, nil, err
		}
		return StateAnonymous, nil, nil
	default:
		return StateAnonymous, nil, fmt.Errorf("verify session: %w", err)
	}
}

func (g *Guard) refreshAndRetry(ctx context.Context, sess *Session) (*User, error) {
	tokens, err := g.api.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, err
	}
	sess.AccessToken = tokens.AccessToken
	sess.RefreshToken = tokens.RefreshToken
	if err := g.cache.Save(ctx, sess); err != nil {
		return nil, err
	}
	return g.api.Me(ctx, sess.AccessToken)
}

func (g *Guard) Login(ctx context.Context, alias, password string) (*User, error) {
	sess, err := g.api.Login(ctx, alias, password)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &sess.User, nil
}

func (g *Guard) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	sess, err := g.api.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &sess.User, nil
}

// Logout tells the server to revoke the refresh token and always clears the
// local session, even when the server cannot be reached.
func (g *Guard) Logout(ctx context.Context) error {
	sess, err := g.cache.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
	case err != nil:
		g.logger.WithError(err).Warn("read session before logout")
	default:
		if err := g.api.Logout(ctx, sess.AccessToken, sess.RefreshToken); err != nil {
			g.logger.WithError(err).Warn("server logout failed")
		}
	}
	return g.cache.Clear(ctx)
}

func isTokenRejection(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrUnauthorized)
}
