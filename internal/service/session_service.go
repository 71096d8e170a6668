package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"todolist/internal/domain"
	"todolist/internal/metrics"
	"todolist/internal/repository"
	"todolist/internal/token"
)

var (
	// ErrInvalidToken is returned for malformed, forged, revoked or mismatched tokens.
	ErrInvalidToken = token.ErrInvalidToken
	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = token.ErrExpiredToken
)

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	User   *domain.User
	Tokens domain.TokenPair
}

// SessionService drives the login/refresh/logout lifecycle.
//
// The server keeps no session rows: a client is authenticated while it holds a
// valid access token. The only server-side state is the refresh-token denylist,
// which makes logout and refresh rotation effective before natural expiry.
type SessionService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, alias, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, identity domain.Identity, refreshToken string) error
	LogoutWithRefresh(ctx context.Context, refreshToken string) error
	// Authorize verifies an access token without touching any store.
	Authorize(accessToken string) (domain.Identity, error)
	CurrentIdentity(ctx context.Context, accessToken string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) (*domain.User, error)
	PurgeRevoked(ctx context.Context) (int64, error)
	RunJanitor(ctx context.Context, interval time.Duration)
}

type sessionService struct {
	users   UserService
	tokens  *token.Manager
	revoked repository.RevocationRepository
	metrics metrics.Recorder
	logger  *logrus.Logger
	now     func() time.Time
}

func NewSessionService(users UserService, tokens *token.Manager, revoked repository.RevocationRepository, rec metrics.Recorder, logger *logrus.Logger) SessionService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &sessionService{
		users:   users,
		tokens:  tokens,
		revoked: revoked,
		metrics: rec,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *sessionService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.users.Register(ctx, in)
	if err != nil {
		s.metrics.RecordRegistration(outcomeOf(err, ErrDuplicateIdentity, ErrWeakSecret, ErrValidation))
		return nil, err
	}

	pair, err := s.tokens.Issue(user.ID, user.Alias)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.RecordRegistration(metrics.OutcomeSuccess)
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "alias": user.Alias}).Info("user registered")
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (s *sessionService) Login(ctx context.Context, alias, password string) (*AuthResult, error) {
	user, err := s.users.Authenticate(ctx, alias, password)
	if err != nil {
		s.metrics.RecordLogin(outcomeOf(err, ErrInvalidCredentials))
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.WithField("alias", alias).Warn("login rejected")
		}
		return nil, err
	}

	pair, err := s.tokens.Issue(user.ID, user.Alias)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.RecordLogin(metrics.OutcomeSuccess)
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh rotates the refresh token: the presented token is denylisted and a
// new pair is issued. A token can therefore be exchanged exactly once. The
// denylist insert is the last store write so a failed lookup leaves the token
// usable for a retry.
func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	id, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.metrics.RecordRefresh(metrics.OutcomeFailure)
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, id.TokenID)
	if err != nil {
		s.metrics.RecordRefresh(metrics.OutcomeError)
		return nil, fmt.Errorf("check refresh token: %w", err)
	}
	if revoked {
		return nil, s.rejectReuse(id)
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.RecordRefresh(metrics.OutcomeFailure)
			return nil, ErrInvalidToken
		}
		s.metrics.RecordRefresh(metrics.OutcomeError)
		return nil, err
	}

	// concurrent refreshes of the same token race here; only one insert wins
	err = s.revoked.Revoke(ctx, domain.RevokedToken{
		TokenID:   id.TokenID,
		UserID:    id.UserID,
		ExpiresAt: id.ExpiresAt,
		RevokedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.rejectReuse(id)
		}
		s.metrics.RecordRefresh(metrics.OutcomeError)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	pair, err := s.tokens.Issue(user.ID, user.Alias)
	if err != nil {
		s.metrics.RecordRefresh(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.RecordRefresh(metrics.OutcomeSuccess)
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (s *sessionService) rejectReuse(id domain.Identity) error {
	s.metrics.RecordRefresh(metrics.OutcomeFailure)
	s.logger.WithFields(logrus.Fields{"user_id": id.UserID, "jti": id.TokenID}).
		Warn("revoked refresh token presented")
	return ErrInvalidToken
}

// Logout denylists the refresh token when one is supplied and belongs to the
// caller. Missing or unusable refresh tokens do not fail the logout: the client
// discards its tokens either way.
func (s *sessionService) Logout(ctx context.Context, identity domain.Identity, refreshToken string) error {
	log := s.logger.WithField("user_id", identity.UserID)

	if refreshToken != "" {
		rid, err := s.tokens.VerifyRefresh(refreshToken)
		switch {
		case err != nil:
			log.WithError(err).Debug("logout with unusable refresh token")
		case rid.UserID != identity.UserID:
			log.Warn("logout with refresh token of another user")
		default:
			if err := s.revoke(ctx, rid); err != nil {
				return err
			}
		}
	}

	s.metrics.RecordLogout()
	log.Info("user logged out")
	return nil
}

// LogoutWithRefresh ends the session identified by the refresh token alone.
// Clients use it once their access token has expired.
func (s *sessionService) LogoutWithRefresh(ctx context.Context, refreshToken string) error {
	rid, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, rid); err != nil {
		return err
	}

	s.metrics.RecordLogout()
	s.logger.WithField("user_id", rid.UserID).Info("user logged out with refresh token")
	return nil
}

// revoke denylists a verified refresh token. Revoking twice is not an error.
func (s *sessionService) revoke(ctx context.Context, rid domain.Identity) error {
	err := s.revoked.Revoke(ctx, domain.RevokedToken{
		TokenID:   rid.TokenID,
		UserID:    rid.UserID,
		ExpiresAt: rid.ExpiresAt,
		RevokedAt: s.now(),
	})
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *sessionService) Authorize(accessToken string) (domain.Identity, error) {
	id, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, ErrExpiredToken) {
			reason = "expired"
		}
		s.metrics.RecordVerifyFailure(reason)
		return domain.Identity{}, err
	}
	return id, nil
}

func (s *sessionService) CurrentIdentity(ctx context.Context, accessToken string) (*domain.User, error) {
	id, err := s.Authorize(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *sessionService) UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) (*domain.User, error) {
	return s.users.UpdateProfile(ctx, userID, update)
}

func (s *sessionService) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.revoked.PurgeExpired(ctx, s.now())
}

// RunJanitor purges expired denylist entries every interval until ctx is done.
func (s *sessionService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeRevoked(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("purge revoked tokens")
				continue
			}
			if n > 0 {
				s.logger.WithField("deleted", n).Info("purged expired revoked tokens")
			}
		}
	}
}

// outcomeOf classifies err as an expected failure when it matches one of the
// given sentinels and as an error otherwise.
func outcomeOf(err error, expected ...error) string {
	for _, e := range expected {
		if errors.Is(err, e) {
			return metrics.OutcomeFailure
		}
	}
	return metrics.OutcomeError
}
