// Package ratelimit provides a fixed-window request limiter keyed by client,
// Redis-backed when a URL is configured so gateway replicas share windows,
// with an in-memory fallback otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Limiter answers whether a client may make another request in the current
// window.
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// NewFromURL returns a Redis limiter when url parses, else the in-memory one.
func NewFromURL(url string, limit int, window time.Duration) Limiter {
	if url != "" {
		if opt, err := redis.ParseURL(url); err == nil {
			return &RedisLimiter{
				client: redis.NewClient(opt),
				limit:  limit,
				window: window,
			}
		}
	}
	return NewMemoryLimiter(limit, window)
}

// RedisLimiter counts requests per client in a Redis key that expires with
// the window.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter builds a limiter over an existing client.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Allow increments the client's window counter and compares to the limit.
func (l *RedisLimiter) Allow(ctx context.Context, client string) (bool, error) {
	key := fmt.Sprintf("sqlagent:ratelimit:%s", client)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		// First hit opens the window.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// MemoryLimiter is the single-process fallback.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewMemoryLimiter builds the in-memory limiter.
func NewMemoryLimiter(limit int, windowSize time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  windowSize,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow opens or advances the client's window and compares to the limit.
func (l *MemoryLimiter) Allow(ctx context.Context, client string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[client]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[client] = &window{start: now, count: 1}
		return true, nil
	}
	w.count++
	return w.count <= l.limit, nil
}
