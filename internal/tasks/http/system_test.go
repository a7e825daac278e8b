package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
	"github.com/aussiebroadwan/tasktrack/pkg/tasksdk"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[tasksdk.HealthResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[tasksdk.HealthResponse](t, rec)
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
}

func TestPublicPathsIgnoreBadTokens(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/livez", "garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	auth := s.register(t, "alice")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/tasks", auth.Token, nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `tasktrack_tokens_issued_total{type="access"} 1`)
	require.Contains(t, body, `route="GET /tasks"`)
	require.Contains(t, body, `route="POST /auth/register"`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(slogx.RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)

	require.Equal(t, "trace-123", rec.Header().Get(slogx.RequestIDHeader))
}

func TestCORSPreflightBypassesGate(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)
	auth := s.register(t, "alice")

	rec := s.do(t, http.MethodGet, "/nope", auth.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
