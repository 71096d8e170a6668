package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todolist/internal/domain"
	"todolist/internal/repository"
)

func newRevocations(t *testing.T) repository.RevocationRepository {
	t.Helper()
	repo := NewRevocationRepository(setupDB(t))
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestRevocationRepository_RevokeOnce(t *testing.T) {
	repo := newRevocations(t)
	ctx := context.Background()
	tok := domain.RevokedToken{TokenID: "jti-1", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, tok))

	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	err = repo.Revoke(ctx, tok)
	require.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestRevocationRepository_PurgeExpired(t *testing.T) {
	repo := newRevocations(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Revoke(ctx, domain.RevokedToken{TokenID: "a", UserID: 1, ExpiresAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, repo.Revoke(ctx, domain.RevokedToken{TokenID: "b", UserID: 1, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Revoke(ctx, domain.RevokedToken{TokenID: "c", UserID: 2, ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for id, want := range map[string]bool{"a": false, "b": false, "c": true} {
		got, err := repo.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}
}

func TestRevocationRepository_IsRevokedQueryError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("jti-1").
		WillReturnError(errors.New("database is locked"))

	repo := NewRevocationRepository(db)
	_, err = repo.IsRevoked(context.Background(), "jti-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query revoked token")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationRepository_RevokeConflictReportsDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revoked_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRevocationRepository(db)
	err = repo.Revoke(context.Background(), domain.RevokedToken{TokenID: "jti-1", UserID: 1, ExpiresAt: time.Now()})
	require.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}
