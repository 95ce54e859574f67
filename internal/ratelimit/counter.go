//go:generate go run go.uber.org/mock/mockgen -source=counter.go -destination=../mocks/mock_counter.go -package=mocks
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is a remote integer counter with expiry, shared by every instance.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type redisCounter struct {
	client redis.Cmdable
}

// NewRedisCounter creates a Counter backed by INCR and EXPIRE.
func NewRedisCounter(client redis.Cmdable) Counter {
	return &redisCounter{client: client}
}

func (c *redisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *redisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// RedisOptions parses a redis:// or rediss:// URL. A non-empty token
// replaces the URL password, which is how hosted Redis providers hand out
// credentials. timeout bounds dialing, reads and writes.
func RedisOptions(rawURL, token string, timeout time.Duration) (*redis.Options, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}
	// a single attempt per call
	opts.MaxRetries = -1
	return opts, nil
}

// CounterPolicy configures the remote guard: at most Limit attempts per key
// during the TTL that starts with the first one.
type CounterPolicy struct {
	Limit     int64
	TTL       time.Duration
	KeyPrefix string
}

func DefaultCounterPolicy() CounterPolicy {
	return CounterPolicy{
		Limit:     5,
		TTL:       60 * time.Second,
		KeyPrefix: "contact:",
	}
}

// RemoteLimiter is a fixed window guard on top of a Counter.
type RemoteLimiter struct {
	counter Counter
	policy  CounterPolicy
	now     func() time.Time
}

func NewRemoteLimiter(counter Counter, policy CounterPolicy, now func() time.Time) *RemoteLimiter {
	if now == nil {
		now = time.Now
	}
	return &RemoteLimiter{counter: counter, policy: policy, now: now}
}

// Execute increments the counter of clientID. It returns an error, never a
// Deny, when the counter cannot be reached; failing open is up to the caller.
// INCR and EXPIRE are separate calls, so a key may briefly lack a TTL.
func (l *RemoteLimiter) Execute(ctx context.Context, clientID string) (*Result, error) {
	key := l.policy.KeyPrefix + clientID

	count, err := l.counter.Incr(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("error incrementing key %v: %w", key, err)
	}

	if count == 1 {
		if err := l.counter.Expire(ctx, key, l.policy.TTL); err != nil {
			return nil, fmt.Errorf("error setting expiration for key %v: %w", key, err)
		}
	}

	state := Allow
	if count > l.policy.Limit {
		state = Deny
	}

	return &Result{
		State:         state,
		TotalRequests: uint64(count),
		ExpiresAt:     l.now().Add(l.policy.TTL),
	}, nil
}
