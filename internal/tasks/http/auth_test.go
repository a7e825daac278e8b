package http_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/tasksdk"
	"github.com/stretchr/testify/require"
)

func TestRegisterLogsIn(t *testing.T) {
	s := newServer(t)

	auth := s.register(t, "alice")
	require.NotEmpty(t, auth.Token)
	require.NotEmpty(t, auth.RefreshToken)
	require.NotEqual(t, auth.Token, auth.RefreshToken)
	require.Equal(t, "Bearer", auth.TokenType)
	require.EqualValues(t, 900, auth.ExpiresIn)
	require.Equal(t, "alice", auth.Principal.Username)
	require.Equal(t, "alice@example.com", auth.Principal.Email)
	require.Equal(t, []string{"user"}, auth.Principal.Roles)

	rec := s.do(t, http.MethodGet, "/me", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, auth.Principal.ID, decode[tasksdk.PrincipalInfo](t, rec).ID)
}

func TestRegisterFailures(t *testing.T) {
	s := newServer(t)
	s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/auth/register", "", tasksdk.RegisterRequest{
		Username: "ALICE",
		Email:    "other@example.com",
		Password: "correct horse battery",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, tasksdk.ErrorCodeUsernameTaken, errorCode(t, rec))

	tests := []struct {
		name string
		req  tasksdk.RegisterRequest
	}{
		{"short username", tasksdk.RegisterRequest{Username: "al", Email: "al@example.com", Password: "correct horse"}},
		{"bad email", tasksdk.RegisterRequest{Username: "bob", Email: "not-an-email", Password: "correct horse"}},
		{"short password", tasksdk.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/auth/register", "", tt.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[tasksdk.ErrorResponse](t, rec)
			require.Equal(t, tasksdk.ErrorCodeInvalidRequest, body.Error)
			require.NotContains(t, body.ErrorDescription, "invalid_registration")
		})
	}

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]any{"username": "carol", "admin": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newServer(t)
	registered := s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/auth/login", "", tasksdk.LoginRequest{
		Username: "alice",
		Password: "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	auth := decode[tasksdk.AuthResponse](t, rec)
	require.Equal(t, registered.Principal.ID, auth.Principal.ID)
	require.NotEqual(t, registered.Token, auth.Token)

	for _, req := range []tasksdk.LoginRequest{
		{Username: "alice", Password: "wrong password"},
		{Username: "mallory", Password: "correct horse battery"},
	} {
		rec := s.do(t, http.MethodPost, "/auth/login", "", req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, tasksdk.ErrorCodeInvalidCredentials, errorCode(t, rec))
	}

	rec = s.do(t, http.MethodPost, "/auth/login", "", tasksdk.LoginRequest{Username: "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newServer(t, withStrictLimit(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}))

	attempt := func(username string) int {
		return s.do(t, http.MethodPost, "/auth/login", "", tasksdk.LoginRequest{
			Username: username,
			Password: "wrong password",
		}).Code
	}

	require.Equal(t, http.StatusUnauthorized, attempt("alice"))
	require.Equal(t, http.StatusUnauthorized, attempt("alice"))
	require.Equal(t, http.StatusTooManyRequests, attempt("alice"))

	// Another account from the same address has its own bucket.
	require.Equal(t, http.StatusUnauthorized, attempt("bob"))
}

func TestRefreshRotation(t *testing.T) {
	s := newServer(t)
	auth := s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/auth/refresh", "", tasksdk.RefreshRequest{RefreshToken: auth.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rotated := decode[tasksdk.AuthResponse](t, rec)
	require.NotEqual(t, auth.RefreshToken, rotated.RefreshToken)
	require.Equal(t, "alice", rotated.Principal.Username)

	t.Run("second redemption requires reauthentication", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/refresh", "", tasksdk.RefreshRequest{RefreshToken: auth.RefreshToken})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, tasksdk.ErrorCodeReauthenticationRequired, errorCode(t, rec))
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/refresh", "", tasksdk.RefreshRequest{RefreshToken: rotated.Token})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, tasksdk.ErrorCodeInvalidRefreshToken, errorCode(t, rec))
	})

	t.Run("garbage", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/refresh", "", tasksdk.RefreshRequest{RefreshToken: "not.a.token"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, tasksdk.ErrorCodeInvalidRefreshToken, errorCode(t, rec))
	})

	t.Run("missing", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/refresh", "", tasksdk.RefreshRequest{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, tasksdk.ErrorCodeInvalidRequest, errorCode(t, rec))
	})
}

func TestLogout(t *testing.T) {
	s := newServer(t)
	auth := s.register(t, "alice")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/tasks", auth.Token, nil).Code)

	rec := s.do(t, http.MethodPost, "/auth/logout", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/tasks", auth.Token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, `Bearer error="invalid_token"`, rec.Header().Get("WWW-Authenticate"))

	// Logging out twice is harmless.
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", auth.Token, nil).Code)

	// The refresh token survives logout of the access token.
	rec = s.do(t, http.MethodPost, "/auth/refresh", "", tasksdk.RefreshRequest{RefreshToken: auth.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("bearer header required", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/auth/logout", "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, tasksdk.ErrorCodeInvalidRequest, errorCode(t, rec))
	})

	t.Run("expired token is a no-op", func(t *testing.T) {
		fresh := s.register(t, "bob")
		s.Clock.Advance(time.Hour)

		before, err := s.Registry.Len(t.Context())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", fresh.Token, nil).Code)
		after, err := s.Registry.Len(t.Context())
		require.NoError(t, err)
		require.Equal(t, before, after)
	})
}

// Alice logs in, works, logs out, and the token she held stops working
// while a token that simply ran out of time is refused the same way.
func TestAliceSession(t *testing.T) {
	s := newServer(t)
	auth := s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/tasks", auth.Token, tasksdk.TaskRequest{Title: "write report"})
	require.Equal(t, http.StatusCreated, rec.Code)

	s.Clock.Advance(14 * time.Minute)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/tasks", auth.Token, nil).Code)

	s.Clock.Advance(2 * time.Minute)
	rec = s.do(t, http.MethodGet, "/tasks", auth.Token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, httpx.ErrInvalidToken.Code, errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/auth/refresh", "", tasksdk.RefreshRequest{RefreshToken: auth.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decode[tasksdk.AuthResponse](t, rec)

	rec = s.do(t, http.MethodGet, "/tasks", fresh.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]tasksdk.TaskResponse](t, rec), 1)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", fresh.Token, nil).Code)
	require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/tasks", fresh.Token, nil).Code)
}
