package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"todolist/internal/domain"
	"todolist/internal/repository"
)

const (
	// MinPasswordLength is the shortest accepted password, counted in characters.
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
	maxAliasLength   = 50
	maxNameLength    = 100
	maxPhotoLength   = 512
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateIdentity is returned when the alias or email is already registered.
	ErrDuplicateIdentity = errors.New("alias or email already registered")
	// ErrWeakSecret is returned when the password is shorter than MinPasswordLength.
	ErrWeakSecret = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	// ErrValidation wraps malformed registration or profile input.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound is internal; login maps it to ErrInvalidCredentials.
	ErrUserNotFound = errors.New("user not found")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// RegisterInput is the registration payload.
type RegisterInput struct {
	Name     string
	Alias    string
	Email    *string
	Password string
}

// UserService describes credential store operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, alias, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	hasher *Hasher
	policy *bluemonday.Policy
}

func NewUserService(users repository.UserRepository, hasher *Hasher) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
		policy: bluemonday.StrictPolicy(),
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	name, err := s.normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	alias, err := normalizeAlias(in.Alias)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Alias:        alias,
		Email:        email,
		PasswordHash: hash,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, alias, password string) (*domain.User, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByAlias(ctx, alias)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if err := s.hasher.CompareDummy(ctx, password); err != nil {
				return nil, err
			}
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) (*domain.User, error) {
	var clean domain.ProfileUpdate
	if update.Name != nil {
		name, err := s.normalizeName(*update.Name)
		if err != nil {
			return nil, err
		}
		clean.Name = &name
	}
	if update.Email != nil {
		email, err := normalizeEmail(update.Email)
		if err != nil {
			return nil, err
		}
		if email == nil {
			email = new(string)
		}
		clean.Email = email
	}
	if update.Photo != nil {
		photo := strings.TrimSpace(*update.Photo)
		if utf8.RuneCountInString(photo) > maxPhotoLength {
			return nil, fmt.Errorf("%w: photo reference is too long", ErrValidation)
		}
		clean.Photo = &photo
	}

	user, err := s.users.UpdateProfile(ctx, id, clean)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

// normalizeName strips any markup from the display name.
func (s *userService) normalizeName(name string) (string, error) {
	name = strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(name)))
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLength)
	}
	return name, nil
}

func normalizeAlias(alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", fmt.Errorf("%w: alias is required", ErrValidation)
	}
	if utf8.RuneCountInString(alias) > maxAliasLength {
		return "", fmt.Errorf("%w: alias must be at most %d characters", ErrValidation, maxAliasLength)
	}
	if strings.IndexFunc(alias, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: alias must not contain spaces", ErrValidation)
	}
	return alias, nil
}

// normalizeEmail returns nil for an absent or blank address.
func normalizeEmail(email *string) (*string, error) {
	if email == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*email)
	if v == "" {
		return nil, nil
	}
	if _, err := mail.ParseAddress(v); err != nil || !emailRegex.MatchString(v) {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return &v, nil
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakSecret
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Name:      user.Name,
		Alias:     user.Alias,
		Email:     user.Email,
		Photo:     user.Photo,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
