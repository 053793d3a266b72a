package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/apperr"
)

// windowStart is aligned to a minute so tests never straddle a window.
var windowStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testLimiter struct {
	LoginLimiter
	setNow func(time.Time)
}

func loginLimiters(t *testing.T, limit int) map[string]testLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	memory := NewMemoryLoginLimiter(limit, time.Minute)
	shared := NewRedisLoginLimiter(rdb, limit, time.Minute)
	memory.now = func() time.Time { return windowStart }
	shared.now = func() time.Time { return windowStart }

	return map[string]testLimiter{
		"memory": {memory, func(now time.Time) { memory.now = func() time.Time { return now } }},
		"redis":  {shared, func(now time.Time) { shared.now = func() time.Time { return now } }},
	}
}

func TestLoginLimiter_BlocksAtLimit(t *testing.T) {
	for name, l := range loginLimiters(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 1; i <= 3; i++ {
				allowed, _, err := l.Allow(ctx, "192.168.1.1", "reader@example.com")
				require.NoError(t, err)
				assert.True(t, allowed, "attempt %d", i)

				limited, err := l.RecordFailure(ctx, "192.168.1.1", "reader@example.com")
				require.NoError(t, err)
				assert.Equal(t, i == 3, limited, "attempt %d", i)
			}

			l.setNow(windowStart.Add(10 * time.Second))
			allowed, retryAfter, err := l.Allow(ctx, "192.168.1.1", "reader@example.com")
			require.NoError(t, err)
			assert.False(t, allowed)
			assert.Equal(t, 50*time.Second, retryAfter)

			l.setNow(windowStart.Add(time.Minute))
			allowed, _, err = l.Allow(ctx, "192.168.1.1", "reader@example.com")
			require.NoError(t, err)
			assert.True(t, allowed, "a new window starts from zero")
		})
	}
}

func TestLoginLimiter_ResetClearsWindow(t *testing.T) {
	for name, l := range loginLimiters(t, 2) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := l.RecordFailure(ctx, "192.168.1.1", "reader@example.com")
			require.NoError(t, err)
			require.NoError(t, l.Reset(ctx, "192.168.1.1", "reader@example.com"))

			limited, err := l.RecordFailure(ctx, "192.168.1.1", "reader@example.com")
			require.NoError(t, err)
			assert.False(t, limited, "the failure before a successful login no longer counts")
		})
	}
}

func TestLoginLimiter_KeysAreIndependent(t *testing.T) {
	for name, l := range loginLimiters(t, 2) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 2; i++ {
				_, err := l.RecordFailure(ctx, "192.168.1.1", "one@example.com")
				require.NoError(t, err)
			}

			allowed, _, err := l.Allow(ctx, "192.168.1.1", "one@example.com")
			require.NoError(t, err)
			assert.False(t, allowed)

			allowed, _, err = l.Allow(ctx, "192.168.1.1", "two@example.com")
			require.NoError(t, err)
			assert.True(t, allowed, "another email is not affected")

			allowed, _, err = l.Allow(ctx, "10.0.0.1", "one@example.com")
			require.NoError(t, err)
			assert.True(t, allowed, "another client is not affected")
		})
	}
}

func TestRedisLoginLimiter_WindowKeyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	l := NewRedisLoginLimiter(rdb, 5, time.Minute)
	l.now = func() time.Time { return windowStart }

	_, err := l.RecordFailure(context.Background(), "192.168.1.1", "reader@example.com")
	require.NoError(t, err)

	key := l.key("192.168.1.1", "reader@example.com", windowStart)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestService_LoginFailsClosedWhenLimiterUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	svc := setupService(t)
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "closed@example.com", "password123", "", client); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc.WithRateLimiter(NewRedisLoginLimiter(rdb, 5, time.Minute))
	mr.Close()

	_, _, err := svc.Login(ctx, "closed@example.com", "password123", client)
	assert.True(t, errors.Is(err, apperr.ErrRateLimited), "got %v", err)
}
