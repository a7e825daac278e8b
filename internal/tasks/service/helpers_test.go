package service_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/obs"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store/drivers/sqlite"
	"github.com/aussiebroadwan/tasktrack/pkg/cryptox"
	"github.com/aussiebroadwan/tasktrack/pkg/revocation"
	"github.com/aussiebroadwan/tasktrack/pkg/tokenx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("service-test-secret-0123456789ab")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
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

type tokenFixture struct {
	Clock    *fakeClock
	Codec    *tokenx.Codec
	Registry *revocation.Memory
	Metrics  *obs.Metrics
	Tokens   *service.TokenService
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	clock := newFakeClock()

	codec, err := tokenx.NewCodec(testSecret, tokenx.WithClock(clock.Now))
	require.NoError(t, err)

	registry := revocation.NewMemory(revocation.WithClock(clock.Now))
	metrics := obs.NewMetrics()

	return &tokenFixture{
		Clock:    clock,
		Codec:    codec,
		Registry: registry,
		Metrics:  metrics,
		Tokens: &service.TokenService{
			Codec:      codec,
			Registry:   registry,
			Metrics:    metrics,
			Issuer:     "tasktrack-test",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Now:        clock.Now,
		},
	}
}

func newSQLiteStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newHasher(t *testing.T) *cryptox.Hasher {
	t.Helper()
	h, err := cryptox.NewHasher(cryptox.Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		KeyLength:   32,
		SaltLength:  16,
	}, "")
	require.NoError(t, err)
	return h
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
