package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revokers(t *testing.T) map[string]Revoker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Revoker{
		"memory": NewMemoryRevoker(time.Hour),
		"redis":  NewRedisRevoker(client, time.Hour),
	}
}

func TestRevoker_TokenRevocation(t *testing.T) {
	for name, r := range revokers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			revoked, err := r.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.False(t, revoked)

			require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

			revoked, err = r.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = r.IsRevoked(ctx, "jti-2")
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	}
}

func TestRevoker_UserCutoff(t *testing.T) {
	for name, r := range revokers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			cutoff, err := r.UserCutoff(ctx, "user-1")
			require.NoError(t, err)
			assert.True(t, cutoff.IsZero())

			at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			require.NoError(t, r.RevokeUserBefore(ctx, "user-1", at))

			cutoff, err = r.UserCutoff(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, at.Unix(), cutoff.Unix())
		})
	}
}

func TestMemoryRevoker_Expiry(t *testing.T) {
	r := NewMemoryRevoker(time.Minute)
	ctx := context.Background()
	now := time.Now()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "jti", now.Add(time.Second)))
	require.NoError(t, r.RevokeUserBefore(ctx, "user", now))

	r.now = func() time.Time { return now.Add(2 * time.Minute) }

	revoked, _ := r.IsRevoked(ctx, "jti")
	assert.False(t, revoked)
	cutoff, _ := r.UserCutoff(ctx, "user")
	assert.True(t, cutoff.IsZero())
}

func TestIssuedBeforeCutoff(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 10, 500, time.UTC)

	assert.False(t, IssuedBeforeCutoff(cutoff, time.Time{}))
	assert.True(t, IssuedBeforeCutoff(cutoff.Add(-time.Second), cutoff))
	assert.False(t, IssuedBeforeCutoff(cutoff.Truncate(time.Second), cutoff))
	assert.False(t, IssuedBeforeCutoff(cutoff.Add(time.Second), cutoff))
}
