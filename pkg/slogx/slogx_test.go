package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	require.Same(t, slog.Default(), slogx.FromContext(context.Background()))

	var buf bytes.Buffer
	logger := newBufferedLogger(&buf)
	ctx := slogx.WithContext(context.Background(), logger)
	require.Same(t, logger, slogx.FromContext(ctx))

	slogx.FromContext(slogx.WithRequestID(ctx, "abc")).Info("hello")
	require.Equal(t, "abc", lastLine(t, &buf)["req_id"])
}

func TestHTTPMiddlewareGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := slogx.HTTPMiddleware(newBufferedLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slogx.FromContext(r.Context()).Debug("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	reqID := rec.Header().Get(slogx.RequestIDHeader)
	require.Len(t, reqID, 26)

	entry := lastLine(t, &buf)
	require.Equal(t, "http_request", entry["msg"])
	require.Equal(t, reqID, entry["req_id"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
	require.Equal(t, "/tasks", entry["path"])
	require.Contains(t, buf.String(), `"msg":"inside"`)
}

func TestHTTPMiddlewareEchoesClientRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := slogx.HTTPMiddleware(newBufferedLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(slogx.RequestIDHeader, "client-supplied-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "client-supplied-42", rec.Header().Get(slogx.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(slogx.RequestIDHeader, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NotEqual(t, "bad id\nwith newline", rec.Header().Get(slogx.RequestIDHeader))
	require.Len(t, rec.Header().Get(slogx.RequestIDHeader), 26)
}

func TestNewWritesToOutput(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{
		Service: "tasks",
		Version: "test",
		Env:     "test",
		Level:   "warn",
		Format:  "json",
		Output:  &buf,
	})

	logger.Info("dropped")
	logger.Warn("kept")

	entry := lastLine(t, &buf)
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "tasks", entry["service"])
	require.NotContains(t, buf.String(), "dropped")
	require.Equal(t, slog.LevelError, slogx.ParseLevel("ERROR"))
}
