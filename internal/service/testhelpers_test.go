package service

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todolist/internal/domain"
	"todolist/internal/metrics"
	"todolist/internal/repository"
	"todolist/internal/repository/sqlite"
	"todolist/internal/token"
)

type testEnv struct {
	users    repository.UserRepository
	revoked  repository.RevocationRepository
	tokens   *token.Manager
	hasher   *Hasher
	userSvc  UserService
	sessions SessionService
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	revoked := sqlite.NewRevocationRepository(db)
	require.NoError(t, revoked.Init(ctx))

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte("test-access"),
		RefreshSecret: []byte("test-refresh"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)

	hasher := NewHasher(bcrypt.MinCost, 4, metrics.Nop{})
	userSvc := NewUserService(users, hasher)

	return &testEnv{
		users:    users,
		revoked:  revoked,
		tokens:   tokens,
		hasher:   hasher,
		userSvc:  userSvc,
		sessions: NewSessionService(userSvc, tokens, revoked, metrics.Nop{}, quietLogger()),
	}
}

func strPtr(s string) *string { return &s }

// failingRevocations lets tests exercise store failures.
type failingRevocations struct {
	err error
}

func (f failingRevocations) Init(context.Context) error                      { return nil }
func (f failingRevocations) Revoke(context.Context, domain.RevokedToken) error { return f.err }
func (f failingRevocations) IsRevoked(context.Context, string) (bool, error)   { return false, f.err }
func (f failingRevocations) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

// flakyUsers fails the first failures GetByID calls with err and counts lookups.
type flakyUsers struct {
	UserService
	err      error
	failures int32
	lookups  atomic.Int32
}

func (f *flakyUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if f.lookups.Add(1) <= f.failures {
		return nil, f.err
	}
	return f.UserService.GetByID(ctx, id)
}
