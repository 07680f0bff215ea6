// Package guard implements the best-effort consumed-option-token store on
// Redis. It is a convenience shortcut in front of the database defenses,
// never a correctness requirement, so Redis outages are absorbed by a
// circuit breaker instead of failing reservations.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// RedisGuard remembers consumed option signatures for the token TTL. The
// breaker opens after repeated Redis failures and the guard reports itself
// unavailable until Redis recovers.
type RedisGuard struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[bool]
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	settings := gobreaker.Settings{
		Name:    "consumed-token-guard",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &RedisGuard{
		client:  client,
		ttl:     ttl,
		breaker: gobreaker.NewCircuitBreaker[bool](settings),
	}
}

// Consumed reports whether the signature was already spent. An open
// breaker or Redis error returns an error; callers treat that as "guard
// unavailable" and fall through to the database.
func (g *RedisGuard) Consumed(ctx context.Context, signature string) (bool, error) {
	return g.breaker.Execute(func() (bool, error) {
		n, err := g.client.Exists(ctx, g.key(signature)).Result()
		return n > 0, err
	})
}

// MarkConsumed records the signature for the token TTL. Called only after
// the reservation committed, so a failed attempt never burns the token.
func (g *RedisGuard) MarkConsumed(ctx context.Context, signature string) error {
	_, err := g.breaker.Execute(func() (bool, error) {
		return false, g.client.Set(ctx, g.key(signature), 1, g.ttl).Err()
	})
	return err
}

func (g *RedisGuard) key(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return "booking:consumed-option:" + hex.EncodeToString(sum[:])
}
