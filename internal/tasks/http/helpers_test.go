package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tasksapi "github.com/aussiebroadwan/tasktrack/internal/tasks/http"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/obs"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store/drivers/sqlite"
	"github.com/aussiebroadwan/tasktrack/pkg/cryptox"
	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/revocation"
	"github.com/aussiebroadwan/tasktrack/pkg/tasksdk"
	"github.com/aussiebroadwan/tasktrack/pkg/tokenx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var generousLimit = httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}

type server struct {
	Clock    *fakeClock
	Registry *revocation.Memory
	Metrics  *obs.Metrics
	Router   *tasksapi.Router
}

type serverOption func(*tasksapi.Options)

func withStrictLimit(cfg httpx.RateLimitConfig) serverOption {
	return func(o *tasksapi.Options) { o.RateLimits.Strict = cfg }
}

func newServer(t *testing.T, opts ...serverOption) *server {
	t.Helper()

	// Real time so the sliding rate limiter and the token clock agree on
	// roughly "now"; tests advance the token clock only.
	clock := &fakeClock{t: time.Now()}

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	hasher, err := cryptox.NewHasher(cryptox.Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		KeyLength:   32,
		SaltLength:  16,
	}, "")
	require.NoError(t, err)

	codec, err := tokenx.NewCodec([]byte("http-test-secret-0123456789abcdef"), tokenx.WithClock(clock.Now))
	require.NoError(t, err)

	registry := revocation.NewMemory(revocation.WithClock(clock.Now))
	metrics := obs.NewMetrics()

	options := tasksapi.Options{
		Metrics: metrics,
		RateLimits: tasksapi.RateLimits{
			Strict:   generousLimit,
			Moderate: generousLimit,
			Lenient:  generousLimit,
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := tasksapi.NewRouter("test", st, logger, options)
	router.TokenService = &service.TokenService{
		Codec:      codec,
		Registry:   registry,
		Metrics:    metrics,
		Issuer:     "tasktrack-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	}
	router.UserService = &service.UserService{Store: st, Hasher: hasher, Now: clock.Now}
	router.TaskService = &service.TaskService{Store: st, Now: clock.Now}
	router.ApplyRoutes()

	return &server{
		Clock:    clock,
		Registry: registry,
		Metrics:  metrics,
		Router:   router,
	}
}

// do sends one request through the full middleware chain.
func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func (s *server) register(t *testing.T, username string) tasksdk.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", tasksdk.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[tasksdk.AuthResponse](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[tasksdk.ErrorResponse](t, rec).Error
}
