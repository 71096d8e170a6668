package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"todolist/internal/domain"
	"todolist/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	alias TEXT NOT NULL UNIQUE,
	email TEXT NULL UNIQUE,
	photo TEXT NULL,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const selectUserColumns = `SELECT id, name, alias, email, photo, password_hash, created_at, updated_at FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (name, alias, email, photo, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Name,
		user.Alias,
		nullString(user.Email),
		nullString(user.Photo),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %q: %w", user.Alias, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByAlias(ctx context.Context, alias string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`
WHERE alias = ?`,
		alias,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) (*domain.User, error) {
	sets := []string{"updated_at=?"}
	args := []any{time.Now().UTC()}
	if update.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *update.Name)
	}
	if update.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, nullString(update.Email))
	}
	if update.Photo != nil {
		sets = append(sets, "photo=?")
		args = append(args, nullString(update.Photo))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET `+strings.Join(sets, ", ")+`
WHERE id=?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update user %d: %w", id, repository.ErrDuplicate)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("user update rows affected: %w", err)
	}
	if aff == 0 {
		return nil, fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user  domain.User
		email sql.NullString
		photo sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Alias,
		&email,
		&photo,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if email.Valid {
		user.Email = &email.String
	}
	if photo.Valid {
		user.Photo = &photo.String
	}
	return &user, nil
}

// nullString maps nil and empty strings to NULL so the email uniqueness
// constraint only applies to real addresses.
func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
