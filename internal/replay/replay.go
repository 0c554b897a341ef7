// Package replay remembers webhook tokens so a captured request cannot be
// delivered twice.
package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a token is remembered.
const DefaultTTL = 24 * time.Hour

// Guard records tokens. Seen reports whether the token was already recorded
// and records it if not. Forget drops a recorded token so a later delivery
// with the same token is accepted again.
type Guard interface {
	Seen(ctx context.Context, token string) (bool, error)
	Forget(ctx context.Context, token string) error
}

// Memory is an in-process Guard. Expired tokens are swept lazily on insert.
type Memory struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemory creates a Memory guard. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:    ttl,
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Seen implements Guard.
func (m *Memory) Seen(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.tokens[token]; ok && now.Before(expires) {
		return true, nil
	}

	for t, expires := range m.tokens {
		if !now.Before(expires) {
			delete(m.tokens, t)
		}
	}
	m.tokens[token] = now.Add(m.ttl)
	return false, nil
}

// Forget implements Guard.
func (m *Memory) Forget(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

// Len returns the number of tokens currently remembered.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// Redis is a Guard shared between relay instances through SET NX.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects to redisURL and verifies the connection with PING.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, prefix: "webhook:token:"}
}

// Seen implements Guard.
func (r *Redis) Seen(ctx context.Context, token string) (bool, error) {
	stored, err := r.client.SetNX(ctx, r.prefix+token, "1", r.ttl).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

// Forget implements Guard.
func (r *Redis) Forget(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.prefix+token).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
