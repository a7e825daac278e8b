package tasks_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/tasktrack/pkg/tasksdk"
	"github.com/stretchr/testify/require"
)

// getMe calls /me with a raw bearer token, bypassing the client's refresh.
func getMe(t *testing.T, baseURL, token string) int {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, baseURL+"/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestRegisterLoginMe(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)

	alice := registerUser(t, baseURL, "alice")
	me, err := alice.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)
	require.Equal(t, "alice@example.com", me.Email)

	_, err = tasksdk.NewClient(baseURL).Register(t.Context(), "alice", "other@example.com", testPassword)
	requireAPIError(t, err, http.StatusConflict, tasksdk.ErrorCodeUsernameTaken)

	fresh := tasksdk.NewClient(baseURL)
	auth, err := fresh.Login(t.Context(), "alice", testPassword)
	require.NoError(t, err)
	assertAuthResponse(t, auth)
	require.Equal(t, me.ID, auth.Principal.ID)

	_, err = tasksdk.NewClient(baseURL).Login(t.Context(), "alice", "wrong password!")
	requireAPIError(t, err, http.StatusUnauthorized, tasksdk.ErrorCodeInvalidCredentials)

	_, err = tasksdk.NewClient(baseURL).Login(t.Context(), "nobody", testPassword)
	requireAPIError(t, err, http.StatusUnauthorized, tasksdk.ErrorCodeInvalidCredentials)
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)

	client := registerUser(t, baseURL, "bob")
	oldAccess, oldRefresh := client.Tokens()

	auth, err := client.Refresh(t.Context())
	require.NoError(t, err)
	assertAuthResponse(t, auth)
	require.NotEqual(t, oldAccess, auth.Token)
	require.NotEqual(t, oldRefresh, auth.RefreshToken)

	// The new pair works.
	_, err = client.Me(t.Context())
	require.NoError(t, err)

	// A refresh token is single use.
	replay := tasksdk.NewClient(baseURL)
	replay.SetTokens(oldAccess, oldRefresh)
	_, err = replay.Refresh(t.Context())
	requireAPIError(t, err, http.StatusBadRequest, tasksdk.ErrorCodeReauthenticationRequired)
	require.False(t, replay.IsAuthenticated())

	// An access token is not a refresh token.
	wrongType := tasksdk.NewClient(baseURL)
	wrongType.SetTokens(auth.Token, auth.Token)
	_, err = wrongType.Refresh(t.Context())
	requireAPIError(t, err, http.StatusBadRequest, tasksdk.ErrorCodeInvalidRefreshToken)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)

	client := registerUser(t, baseURL, "carol")
	access, _ := client.Tokens()
	require.Equal(t, http.StatusOK, getMe(t, baseURL, access))

	require.NoError(t, client.Logout(t.Context()))
	require.False(t, client.IsAuthenticated())

	require.Equal(t, http.StatusUnauthorized, getMe(t, baseURL, access))

	// Logging out twice is harmless.
	again := tasksdk.NewClient(baseURL)
	again.SetTokens(access, "")
	require.NoError(t, again.Logout(t.Context()))
}

func TestTamperedTokenRejected(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)

	client := registerUser(t, baseURL, "dave")
	access, _ := client.Tokens()

	tampered := access[:len(access)-2] + "xx"
	require.Equal(t, http.StatusUnauthorized, getMe(t, baseURL, tampered))
	require.Equal(t, http.StatusUnauthorized, getMe(t, baseURL, "not-a-token"))
}
