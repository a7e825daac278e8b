package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		SecretKey:            "app-test-secret-0123456789abcdef",
		Issuer:               "tasktrack-test",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      time.Hour,
		PublicPaths:          httpx.DefaultPublicPaths,
		RevocationBackend:    RevocationMemory,
		DatabaseFile:         ":memory:",
		Env:                  "test",
		Port:                 0,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Minute,
		StrictLimit:          httpx.StrictLimit,
		ModerateLimit:        httpx.ModerateLimit,
		LenientLimit:         httpx.LenientLimit,
	}
}

func TestNewRefusesMissingSecret(t *testing.T) {
	cfg := testConfig()
	cfg.SecretKey = ""

	_, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestNewWiresHandler(t *testing.T) {
	cfg := testConfig()
	cfg.PepperFile = filepath.Join(t.TempDir(), "pepper")

	app, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Shutdown()) })

	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"revocation":"ok"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := `{"username":"alice","email":"alice@example.com","password":"correct horse battery"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"refreshToken"`)

	_, err = os.Stat(cfg.PepperFile)
	require.NoError(t, err, "pepper file is provisioned on first start")
}
