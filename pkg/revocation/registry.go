// Package revocation keeps the set of token ids (jti) that must be refused
// before their natural expiry. Entries carry the expiry of the token they
// revoke; once that moment passes the token is dead anyway and the entry can
// be dropped.
package revocation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEmptyTokenID is returned when a registry is asked about an empty jti.
var ErrEmptyTokenID = errors.New("revocation: empty token id")

// Registry is the contract shared by every backend.
type Registry interface {
	// Revoke records tokenID as revoked until expiresAt. Revoking an id twice
	// is harmless; the later expiry wins.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error

	// RevokeIfAbsent revokes tokenID only when it is not already revoked and
	// reports whether this call performed the revocation. It is atomic with
	// respect to every other registry call.
	RevokeIfAbsent(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether tokenID is revoked and still unexpired.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Sweep removes entries that expired at or before now and returns how many
	// were dropped.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Len returns the number of stored entries, expired ones included until
	// they are swept.
	Len(ctx context.Context) (int, error)
}

// DefaultSweepEvery is how many writes a Memory registry accepts between
// opportunistic sweeps.
const DefaultSweepEvery = 256

// Memory is a process-local Registry guarded by a single mutex, which makes
// every operation linearizable.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	now        func() time.Time
	sweepEvery int
	writes     int
}

// MemoryOption configures a Memory registry.
type MemoryOption func(*Memory)

// WithClock overrides the clock used to decide whether entries have expired.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithSweepEvery sets the number of writes between opportunistic sweeps. A
// value below one disables them and leaves eviction to explicit Sweep calls.
func WithSweepEvery(n int) MemoryOption {
	return func(m *Memory) { m.sweepEvery = n }
}

// NewMemory returns an empty in-memory registry.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:    make(map[string]time.Time),
		now:        time.Now,
		sweepEvery: DefaultSweepEvery,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Registry = (*Memory)(nil)

func (m *Memory) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.entries[tokenID]; !ok || expiresAt.After(current) {
		m.entries[tokenID] = expiresAt
	}
	m.afterWriteLocked()
	return nil
}

func (m *Memory) RevokeIfAbsent(_ context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.entries[tokenID]; ok && m.now().Before(current) {
		return false, nil
	}
	m.entries[tokenID] = expiresAt
	m.afterWriteLocked()
	return true, nil
}

func (m *Memory) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.entries[tokenID]
	return ok && m.now().Before(expiresAt), nil
}

func (m *Memory) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sweepLocked(now), nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries), nil
}

func (m *Memory) afterWriteLocked() {
	if m.sweepEvery < 1 {
		return
	}
	m.writes++
	if m.writes >= m.sweepEvery {
		m.writes = 0
		m.sweepLocked(m.now())
	}
}

// sweepLocked drops entries whose expiry is not after now. The caller holds mu.
func (m *Memory) sweepLocked(now time.Time) int {
	removed := 0
	for id, expiresAt := range m.entries {
		if !now.Before(expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}
