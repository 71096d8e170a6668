package repository

import (
	"context"
	"errors"

	"todolist/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column (alias, email, token id) collides.
	ErrDuplicate = errors.New("duplicate entry")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByAlias(ctx context.Context, alias string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) (*domain.User, error)
}
