// Package tasksdk is a Go client for the tasks service. A Client holds one
// session: it keeps the token pair returned by register, login and refresh,
// attaches the access token to resource calls and, when the service answers
// 401, refreshes once and retries the call.
package tasksdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to one tasks service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	principal    PrincipalInfo

	// refreshMu serialises refreshes so concurrent 401s redeem the refresh
	// token once.
	refreshMu sync.Mutex
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
}

// Login starts a session with username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", LoginRequest{
		Username: username,
		Password: password,
	})
}

// Refresh redeems the stored refresh token for a new pair. A refresh token
// works once; on failure the session is cleared and the caller must log in
// again.
func (c *Client) Refresh(ctx context.Context) (*AuthResponse, error) {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	auth, err := c.authenticate(ctx, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.ClearTokens()
		}
		return nil, err
	}
	return auth, nil
}

// Logout revokes the access token and forgets the session. The session is
// forgotten even if the service call fails.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	accessToken := c.accessToken
	c.mu.Unlock()

	if accessToken == "" {
		return ErrNotAuthenticated
	}
	defer c.ClearTokens()

	resp, err := c.send(ctx, http.MethodPost, "/auth/logout", nil, accessToken)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// SetTokens installs a previously obtained pair, for example one restored
// from disk.
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

// Tokens returns the current access and refresh token.
func (c *Client) Tokens() (accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

// Principal returns the principal of the last successful authentication.
func (c *Client) Principal() PrincipalInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

// IsAuthenticated reports whether the client holds an access token.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// ClearTokens forgets the session.
func (c *Client) ClearTokens() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
	c.principal = PrincipalInfo{}
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return nil, err
	}

	var auth AuthResponse
	if err := decodeJSON(resp, &auth, http.StatusOK); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessToken = auth.Token
	c.refreshToken = auth.RefreshToken
	c.principal = auth.Principal
	c.mu.Unlock()

	return &auth, nil
}
