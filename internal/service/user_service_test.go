package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todolist/internal/domain"
)

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.userSvc.Register(ctx, RegisterInput{Name: "Bob", Alias: "bob", Password: "rightpw"})
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash, "hash must not leave the service")
	assert.Nil(t, user.Email)

	stored, err := env.users.GetByAlias(ctx, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, "rightpw", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("rightpw")))
}

func TestRegister_PasswordLengthBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.userSvc.Register(ctx, RegisterInput{Name: "A", Alias: "a", Password: "12345"})
	require.ErrorIs(t, err, ErrWeakSecret)

	_, err = env.userSvc.Register(ctx, RegisterInput{Name: "A", Alias: "a", Password: "123456"})
	require.NoError(t, err)
}

func TestRegister_PasswordLengthCountsCharacters(t *testing.T) {
	env := newTestEnv(t)

	// five characters, ten bytes
	_, err := env.userSvc.Register(context.Background(), RegisterInput{Name: "A", Alias: "a", Password: "ñññññ"})
	require.ErrorIs(t, err, ErrWeakSecret)
}

func TestRegister_RejectsOverlongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.userSvc.Register(context.Background(), RegisterInput{Name: "A", Alias: "a", Password: strings.Repeat("x", 73)})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRegister_DuplicateAlias(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.userSvc.Register(ctx, RegisterInput{Name: "Bob", Alias: "bob", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.userSvc.Register(ctx, RegisterInput{Name: "Other Bob", Alias: "bob", Password: "secret2"})
	require.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.userSvc.Register(ctx, RegisterInput{Name: "Bob", Alias: "bob", Email: strPtr("bob@example.com"), Password: "secret1"})
	require.NoError(t, err)

	_, err = env.userSvc.Register(ctx, RegisterInput{Name: "Rob", Alias: "rob", Email: strPtr("bob@example.com"), Password: "secret2"})
	require.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestRegister_BlankEmailsDoNotCollide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.userSvc.Register(ctx, RegisterInput{Name: "A", Alias: "a", Email: strPtr(""), Password: "secret1"})
	require.NoError(t, err)
	_, err = env.userSvc.Register(ctx, RegisterInput{Name: "B", Alias: "b", Email: strPtr("  "), Password: "secret1"})
	require.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing name", RegisterInput{Alias: "a", Password: "secret1"}},
		{"markup only name", RegisterInput{Name: "<script></script>", Alias: "a", Password: "secret1"}},
		{"missing alias", RegisterInput{Name: "A", Password: "secret1"}},
		{"alias with space", RegisterInput{Name: "A", Alias: "a b", Password: "secret1"}},
		{"alias too long", RegisterInput{Name: "A", Alias: strings.Repeat("a", 51), Password: "secret1"}},
		{"bad email", RegisterInput{Name: "A", Alias: "a", Email: strPtr("nope"), Password: "secret1"}},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.userSvc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegister_SanitizesName(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.userSvc.Register(context.Background(), RegisterInput{
		Name:     `<b>Tom</b> & <img src=x onerror=alert(1)>Jerry`,
		Alias:    "tom",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tom & Jerry", user.Name)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.userSvc.Register(ctx, RegisterInput{Name: "Bob", Alias: "bob", Password: "rightpw"})
	require.NoError(t, err)

	user, err := env.userSvc.Authenticate(ctx, " bob ", "rightpw")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Alias)
	assert.Empty(t, user.PasswordHash)

	_, err = env.userSvc.Authenticate(ctx, "bob", "wrongpw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.userSvc.Authenticate(ctx, "nobody", "rightpw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.userSvc.Authenticate(ctx, "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bob, err := env.userSvc.Register(ctx, RegisterInput{Name: "Bob", Alias: "bob", Email: strPtr("bob@example.com"), Password: "secret1"})
	require.NoError(t, err)
	_, err = env.userSvc.Register(ctx, RegisterInput{Name: "Ann", Alias: "ann", Email: strPtr("ann@example.com"), Password: "secret1"})
	require.NoError(t, err)

	updated, err := env.userSvc.UpdateProfile(ctx, bob.ID, domain.ProfileUpdate{
		Name:  strPtr("Robert"),
		Photo: strPtr("https://cdn.example.com/bob.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.Name)
	assert.Equal(t, "bob", updated.Alias)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "bob@example.com", *updated.Email)
	require.NotNil(t, updated.Photo)
	assert.Empty(t, updated.PasswordHash)

	cleared, err := env.userSvc.UpdateProfile(ctx, bob.ID, domain.ProfileUpdate{Email: strPtr(""), Photo: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.Email)
	assert.Nil(t, cleared.Photo)

	_, err = env.userSvc.UpdateProfile(ctx, bob.ID, domain.ProfileUpdate{Email: strPtr("ann@example.com")})
	require.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = env.userSvc.UpdateProfile(ctx, 9999, domain.ProfileUpdate{Name: strPtr("Ghost")})
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.userSvc.UpdateProfile(ctx, bob.ID, domain.ProfileUpdate{Email: strPtr("broken")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetByID_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.userSvc.GetByID(context.Background(), 12345)
	require.ErrorIs(t, err, ErrUserNotFound)
}
