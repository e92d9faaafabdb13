// Package ratelimit provides per-key limiters shared by the HTTP middleware and the
// vault PIN guard.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more event for key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Name labels the limiter in metrics ("memory", "redis").
	Name() string
}

// Memory is an in-process token-bucket limiter, one bucket per key.
type Memory struct {
	rps   rate.Limit
	burst int
	store sync.Map // map[string]*rate.Limiter
}

// NewMemory returns a token-bucket limiter refilling rps tokens per second up to burst.
func NewMemory(rps float64, burst int) *Memory {
	if burst < 1 {
		burst = 1
	}
	return &Memory{rps: rate.Limit(rps), burst: burst}
}

// PerWindow returns a memory limiter allowing n events per window, refilled evenly.
func PerWindow(n int, window time.Duration) *Memory {
	if n < 1 {
		n = 1
	}
	return &Memory{rps: rate.Every(window / time.Duration(n)), burst: n}
}

func (m *Memory) bucket(key string) *rate.Limiter {
	if v, ok := m.store.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := m.store.LoadOrStore(key, rate.NewLimiter(m.rps, m.burst))
	return v.(*rate.Limiter)
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	return m.bucket(key).Allow(), nil
}

// Peek reports whether Allow would succeed for key, without consuming a token.
func (m *Memory) Peek(_ context.Context, key string) (bool, error) {
	v, ok := m.store.Load(key)
	if !ok {
		return true, nil
	}
	return v.(*rate.Limiter).Tokens() >= 1, nil
}

func (m *Memory) Name() string { return "memory" }

// Redis is a coarse fixed-window limiter shared by every process using the same server.
// Each window INCRs "<prefix><key>:<bucket>" and compares against the allowance.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	allowed int64
	window  time.Duration
	now     func() time.Time
}

// NewRedis returns a fixed-window limiter allowing floor(rps*window)+burst events per
// window. Windows shorter than a second are rounded up to one second.
func NewRedis(client redis.UniversalClient, prefix string, rps float64, burst int, window time.Duration) *Redis {
	if window < time.Second {
		window = time.Second
	}
	window = window.Truncate(time.Second)
	return &Redis{
		client:  client,
		prefix:  prefix,
		allowed: int64(rps*window.Seconds()) + int64(burst),
		window:  window,
		now:     time.Now,
	}
}

func (r *Redis) windowKey(key string) string {
	secs := int64(r.window / time.Second)
	return fmt.Sprintf("%s%s:%d", r.prefix, key, r.now().Unix()/secs)
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.windowKey(key)
	cnt, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if cnt == 1 {
		_ = r.client.Expire(ctx, k, r.window+time.Second).Err()
	}
	return cnt <= r.allowed, nil
}

// Peek reports whether Allow would succeed for key in the current window, without
// counting an event.
func (r *Redis) Peek(ctx context.Context, key string) (bool, error) {
	cnt, err := r.client.Get(ctx, r.windowKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("rate limit peek: %w", err)
	}
	return cnt < r.allowed, nil
}

func (r *Redis) Name() string { return "redis" }

// Window returns the window length, used for Retry-After.
func (r *Redis) Window() time.Duration { return r.window }
