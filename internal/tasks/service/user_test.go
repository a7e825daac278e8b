package service_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) *service.UserService {
	t.Helper()
	return &service.UserService{
		Store:  newSQLiteStore(t),
		Hasher: newHasher(t),
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	users := newUserService(t)

	p, err := users.Register(ctx, "  alice ", "alice@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "alice", p.Username)
	require.Equal(t, []string{domain.RoleUser}, p.Roles)
	require.NotEqual(t, "correct horse", p.PasswordHash)

	got, err := users.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	byID, err := users.FindPrincipalByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", byID.Email)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	users := newUserService(t)

	_, err := users.Register(ctx, "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)

	_, err = users.Login(ctx, "alice", "wrong password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = users.Login(ctx, "mallory", "correct horse")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	users := newUserService(t)

	_, err := users.Register(ctx, "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)

	_, err = users.Register(ctx, "ALICE", "other@example.com", "correct horse")
	require.ErrorIs(t, err, service.ErrUsernameTaken)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	users := newUserService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "al", "al@example.com", "correct horse"},
		{"bad characters", "alice smith", "alice@example.com", "correct horse"},
		{"missing email", "alice", "", "correct horse"},
		{"invalid email", "alice", "not-an-email", "correct horse"},
		{"display name email", "alice", "Alice <alice@example.com>", "correct horse"},
		{"short password", "alice", "alice@example.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Register(ctx, tt.username, tt.email, tt.password)
			require.ErrorIs(t, err, service.ErrInvalidRegistration)
		})
	}
}

func TestFindPrincipalNotFound(t *testing.T) {
	ctx := context.Background()
	users := newUserService(t)

	_, err := users.FindPrincipal(ctx, "ghost")
	require.ErrorIs(t, err, service.ErrPrincipalNotFound)

	_, err = users.FindPrincipalByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.ErrorIs(t, err, service.ErrPrincipalNotFound)
}

func TestVerifyPasswordWithCorruptHash(t *testing.T) {
	ctx := context.Background()
	users := newUserService(t)

	p, err := users.CreatePrincipal(ctx, "bob", "bob@example.com", "not-a-phc-hash")
	require.NoError(t, err)
	require.False(t, users.VerifyPassword(ctx, p, "anything"))
}
