// Package redisledger implements the token revocation ledger on Redis.
// Each revoked token identifier becomes a key whose TTL equals the time
// left until the token's natural expiry, so pruning is automatic.
package redisledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"animcentre.org/internal/auth"
)

var _ auth.RevocationStore = (*Ledger)(nil)

// Ledger is a Redis-backed revocation ledger.
type Ledger struct {
	client *redis.Client
	now    func() time.Time
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Ledger {
	return &Ledger{client: client, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (l *Ledger) WithClock(fn func() time.Time) *Ledger {
	if fn != nil {
		l.now = fn
	}
	return l
}

// Revoke stores the token identifier with a TTL bounded by the token's
// remaining lifetime. Revoking an already-expired token is a no-op.
func (l *Ledger) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redisledger: revoke: %w", err)
	}
	return nil
}

// IsRevoked checks for an unexpired ledger entry. Expired keys vanish on
// their own, so existence is sufficient.
func (l *Ledger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redisledger: lookup: %w", err)
	}
	return n > 0, nil
}

// Ping checks connectivity for readiness probes.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Ledger) key(tokenID string) string {
	return "revoked_token:" + tokenID
}
