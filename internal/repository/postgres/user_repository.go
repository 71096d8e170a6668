package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"todolist/internal/domain"
	"todolist/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	alias TEXT NOT NULL UNIQUE,
	email TEXT NULL UNIQUE,
	photo TEXT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

const userColumns = `id, name, alias, email, photo, password_hash, created_at, updated_at`

const selectUserColumns = `SELECT ` + userColumns + ` FROM users`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, alias, email, photo, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		user.Name,
		user.Alias,
		nullString(user.Email),
		nullString(user.Photo),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %q: %w", user.Alias, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return user.ID, nil
}

func (r *UserRepository) GetByAlias(ctx context.Context, alias string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUserColumns+` WHERE alias = $1`, alias))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUserColumns+` WHERE id = $1`, id))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) (*domain.User, error) {
	args := []any{time.Now().UTC()}
	sets := []string{"updated_at=$1"}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+"=$"+strconv.Itoa(len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Email != nil {
		add("email", nullString(update.Email))
	}
	if update.Photo != nil {
		add("photo", nullString(update.Photo))
	}
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE id=$` + strconv.Itoa(len(args)) +
		` RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update user %d: %w", id, repository.ErrDuplicate)
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Alias,
		&user.Email,
		&user.Photo,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func nullString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
