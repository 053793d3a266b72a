package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers tokens that must stop validating before they expire.
//
// Individual tokens are revoked by ID (logout). A per-user cutoff revokes
// every token issued before it (password change); cutoffs have one-second
// resolution, matching the iat claim.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	RevokeUserBefore(ctx context.Context, userID string, cutoff time.Time) error
	// UserCutoff returns the zero time when no cutoff is recorded.
	UserCutoff(ctx context.Context, userID string) (time.Time, error)
}

// IssuedBeforeCutoff reports whether something issued at issuedAt predates cutoff.
func IssuedBeforeCutoff(issuedAt, cutoff time.Time) bool {
	return !cutoff.IsZero() && issuedAt.Unix() < cutoff.Unix()
}

// MemoryRevoker keeps revocations in process memory. Revocations are lost on
// restart and are not shared between replicas.
type MemoryRevoker struct {
	mu        sync.Mutex
	tokens    map[string]time.Time
	cutoffs   map[string]time.Time
	cutoffTTL time.Duration
	now       func() time.Time
}

// NewMemoryRevoker creates a revoker. cutoffTTL bounds how long a user cutoff
// is kept; it should match the token lifetime.
func NewMemoryRevoker(cutoffTTL time.Duration) *MemoryRevoker {
	return &MemoryRevoker{
		tokens:    make(map[string]time.Time),
		cutoffs:   make(map[string]time.Time),
		cutoffTTL: cutoffTTL,
		now:       time.Now,
	}
}

func (r *MemoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenID] = until
	r.sweep()
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.tokens[tokenID]
	return ok && r.now().Before(until), nil
}

func (r *MemoryRevoker) RevokeUserBefore(_ context.Context, userID string, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs[userID] = cutoff
	return nil
}

func (r *MemoryRevoker) UserCutoff(_ context.Context, userID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff, ok := r.cutoffs[userID]
	if !ok {
		return time.Time{}, nil
	}
	if r.cutoffTTL > 0 && r.now().After(cutoff.Add(r.cutoffTTL)) {
		delete(r.cutoffs, userID)
		return time.Time{}, nil
	}
	return cutoff, nil
}

// sweep drops expired token entries. Caller holds mu.
func (r *MemoryRevoker) sweep() {
	now := r.now()
	for id, until := range r.tokens {
		if now.After(until) {
			delete(r.tokens, id)
		}
	}
}

// RedisRevoker shares revocations between processes through Redis. Keys
// expire on their own once the revoked tokens could no longer validate.
type RedisRevoker struct {
	client    redis.UniversalClient
	prefix    string
	cutoffTTL time.Duration
}

func NewRedisRevoker(client redis.UniversalClient, cutoffTTL time.Duration) *RedisRevoker {
	return &RedisRevoker{client: client, prefix: "bookshelf:auth:", cutoffTTL: cutoffTTL}
}

func (r *RedisRevoker) tokenKey(id string) string {
	return r.prefix + "revoked:" + id
}

func (r *RedisRevoker) cutoffKey(userID string) string {
	return r.prefix + "cutoff:" + userID
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.tokenKey(tokenID), 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.tokenKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisRevoker) RevokeUserBefore(ctx context.Context, userID string, cutoff time.Time) error {
	return r.client.Set(ctx, r.cutoffKey(userID), cutoff.Unix(), r.cutoffTTL).Err()
}

func (r *RedisRevoker) UserCutoff(ctx context.Context, userID string) (time.Time, error) {
	raw, err := r.client.Get(ctx, r.cutoffKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}
