package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts failed logins per client IP and email in fixed time
// windows. Once a key reaches the limit, attempts are refused until the
// window rolls over.
type LoginLimiter interface {
	// Allow reports whether an attempt may proceed. When it may not,
	// retryAfter is the time left in the current window.
	Allow(ctx context.Context, ip, email string) (allowed bool, retryAfter time.Duration, err error)
	// RecordFailure counts a failed attempt and reports whether the key
	// has now reached the limit.
	RecordFailure(ctx context.Context, ip, email string) (limited bool, err error)
	// Reset clears the current window of the key after a successful login.
	Reset(ctx context.Context, ip, email string) error
}

// fixedWindow splits time into slots of equal length.
type fixedWindow struct {
	limit  int
	window time.Duration
}

func newFixedWindow(limit int, window time.Duration) fixedWindow {
	if limit <= 0 {
		limit = 5
	}
	if window < time.Millisecond {
		window = 15 * time.Minute
	}
	return fixedWindow{limit: limit, window: window}
}

func (w fixedWindow) slot(now time.Time) int64 {
	return now.UnixMilli() / w.window.Milliseconds()
}

// remaining is the time until the slot containing now ends.
func (w fixedWindow) remaining(now time.Time) time.Duration {
	ms := w.window.Milliseconds()
	end := (now.UnixMilli()/ms + 1) * ms
	return time.Duration(end-now.UnixMilli()) * time.Millisecond
}

func limiterKey(ip, email string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return ip + ":" + email
}

// MemoryLoginLimiter keeps the counters of a single process.
type MemoryLoginLimiter struct {
	fixedWindow
	mu       sync.Mutex
	counters map[string]windowCount
	now      func() time.Time
}

type windowCount struct {
	slot  int64
	count int
}

func NewMemoryLoginLimiter(limit int, window time.Duration) *MemoryLoginLimiter {
	return &MemoryLoginLimiter{
		fixedWindow: newFixedWindow(limit, window),
		counters:    make(map[string]windowCount),
		now:         time.Now,
	}
}

func (l *MemoryLoginLimiter) Allow(_ context.Context, ip, email string) (bool, time.Duration, error) {
	now := l.now()
	l.mu.Lock()
	c := l.counters[limiterKey(ip, email)]
	l.mu.Unlock()

	if c.slot == l.slot(now) && c.count >= l.limit {
		return false, l.remaining(now), nil
	}
	return true, 0, nil
}

func (l *MemoryLoginLimiter) RecordFailure(_ context.Context, ip, email string) (bool, error) {
	now := l.now()
	slot := l.slot(now)
	key := limiterKey(ip, email)

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counters[key]
	if c.slot != slot {
		l.sweep(slot)
		c = windowCount{slot: slot}
	}
	c.count++
	l.counters[key] = c
	return c.count >= l.limit, nil
}

func (l *MemoryLoginLimiter) Reset(_ context.Context, ip, email string) error {
	l.mu.Lock()
	delete(l.counters, limiterKey(ip, email))
	l.mu.Unlock()
	return nil
}

// sweep drops counters of past windows. Callers hold mu.
func (l *MemoryLoginLimiter) sweep(current int64) {
	for key, c := range l.counters {
		if c.slot < current {
			delete(l.counters, key)
		}
	}
}

var incrWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisLoginLimiter shares counters between processes. Each window is its
// own key and expires with the window.
type RedisLoginLimiter struct {
	fixedWindow
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLoginLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisLoginLimiter {
	return &RedisLoginLimiter{
		fixedWindow: newFixedWindow(limit, window),
		client:      client,
		prefix:      "bookshelf:login:",
		now:         time.Now,
	}
}

func (l *RedisLoginLimiter) key(ip, email string, now time.Time) string {
	return l.prefix + limiterKey(ip, email) + ":" + strconv.FormatInt(l.slot(now), 10)
}

func (l *RedisLoginLimiter) Allow(ctx context.Context, ip, email string) (bool, time.Duration, error) {
	now := l.now()
	count, err := l.client.Get(ctx, l.key(ip, email, now)).Int()
	if errors.Is(err, redis.Nil) {
		return true, 0, nil
	}
	if err != nil {
		return false, l.remaining(now), err
	}
	if count >= l.limit {
		return false, l.remaining(now), nil
	}
	return true, 0, nil
}

func (l *RedisLoginLimiter) RecordFailure(ctx context.Context, ip, email string) (bool, error) {
	now := l.now()
	count, err := incrWindowScript.Run(ctx, l.client,
		[]string{l.key(ip, email, now)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count >= int64(l.limit), nil
}

func (l *RedisLoginLimiter) Reset(ctx context.Context, ip, email string) error {
	return l.client.Del(ctx, l.key(ip, email, l.now())).Err()
}
