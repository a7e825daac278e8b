package revocation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix namespaces revocation keys in a shared Redis.
const DefaultKeyPrefix = "revoked_token"

// extendScript sets the key unless it already outlives the requested TTL, so a
// second revoke never shortens an existing entry.
var extendScript = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[1])
end
return 1
`)

// Redis is a Registry shared by every replica of the service. Each entry is a
// key with a TTL equal to the remaining lifetime of the revoked token, so
// eviction is left to Redis.
type Redis struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// RedisOption configures a Redis registry.
type RedisOption func(*Redis)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisClock overrides the clock used to compute key TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *Redis) { r.now = now }
}

// NewRedis wraps an existing client. The caller owns the client's lifecycle.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Registry = (*Redis)(nil)

func (r *Redis) key(tokenID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, tokenID)
}

func (r *Redis) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}

	ttl := expiresAt.Sub(r.now())
	if ttl < time.Millisecond {
		// Already expired: the token is refused without an entry.
		return nil
	}

	err := extendScript.Run(ctx, r.client,
		[]string{r.key(tokenID)},
		ttl.Milliseconds(), strconv.FormatInt(expiresAt.Unix(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("revocation: revoke %s: %w", tokenID, err)
	}
	return nil
}

func (r *Redis) RevokeIfAbsent(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}

	ttl := expiresAt.Sub(r.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	ok, err := r.client.SetNX(ctx, r.key(tokenID), expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: revoke %s: %w", tokenID, err)
	}
	return ok, nil
}

func (r *Redis) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}

	n, err := r.client.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: lookup %s: %w", tokenID, err)
	}
	return n > 0, nil
}

// Sweep is a no-op: Redis expires keys on its own.
func (r *Redis) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Len counts the keys under the registry prefix with SCAN.
func (r *Redis) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+":*", 512).Result()
		if err != nil {
			return 0, fmt.Errorf("revocation: scan: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// Ping checks connectivity; readiness probes use it.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("revocation: ping: %w", err)
	}
	return nil
}
