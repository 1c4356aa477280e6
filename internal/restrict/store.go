// Package restrict provides sender restriction management backed by Redis.
// Senders whose messages keep getting blocked by the automod pipeline are
// temporarily restricted from the gateway, with durations that escalate
// on repeat offenses. Records are simple key-value pairs with TTL-based
// expiry:
//
//	Key:   restrict:<sender_id>
//	Value: <reason>
//	TTL:   restriction duration
package restrict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RestrictPrefix is the Redis key prefix for restriction records.
	RestrictPrefix = "restrict:"

	// OffensesPrefix is the Redis key prefix for offense counters.
	OffensesPrefix = "offenses:"

	// Escalating restriction durations.
	Restrict15Min  = 15 * time.Minute // 1st offense
	Restrict1Hour  = 1 * time.Hour    // 2nd offense
	Restrict24Hour = 24 * time.Hour   // 3rd+ offense

	// OffensesTTL is how long the offense counter lives in Redis. After
	// 24h without new blocked messages the counter resets to zero.
	OffensesTTL = 24 * time.Hour

	// AutoRestrictThreshold is the number of blocked verdicts within
	// OffensesTTL that triggers an automatic restriction.
	AutoRestrictThreshold = 3
)

// Store manages restriction records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new restriction store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsRestricted checks if a sender is currently restricted.
// Returns (restricted, remainingSeconds, reason, error). Redis errors are
// returned so callers can decide how to handle them; the recommended
// policy is fail-open.
func (s *Store) IsRestricted(ctx context.Context, senderID string) (bool, int, string, error) {
	key := RestrictPrefix + senderID

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", err
	}

	// Key exists, read the remaining TTL.
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		// The restriction exists but the TTL is unreadable. Report it
		// with 0 remaining rather than swallowing the restriction.
		return true, 0, reason, nil
	}

	remaining := 0
	if ttl > 0 {
		remaining = int(ttl.Seconds())
	}

	return true, remaining, reason, nil
}

// Restrict places a restriction on a sender with the given duration and
// reason. The restriction expires automatically.
func (s *Store) Restrict(ctx context.Context, senderID string, duration time.Duration, reason string) error {
	key := RestrictPrefix + senderID
	return s.client.Set(ctx, key, reason, duration).Err()
}

// Lift removes a restriction from a sender immediately.
func (s *Store) Lift(ctx context.Context, senderID string) error {
	key := RestrictPrefix + senderID
	return s.client.Del(ctx, key).Err()
}

// escalationDuration returns the restriction duration for a given offense
// count.
func escalationDuration(offenseCount int) time.Duration {
	switch {
	case offenseCount <= AutoRestrictThreshold:
		return Restrict15Min
	case offenseCount == AutoRestrictThreshold+1:
		return Restrict1Hour
	default:
		return Restrict24Hour
	}
}

// OffenseCount returns the current offense counter for a sender. Returns
// 0 if the key does not exist (no offenses recorded or counter expired).
func (s *Store) OffenseCount(ctx context.Context, senderID string) (int, error) {
	key := OffensesPrefix + senderID
	val, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// RecordOffense increments the offense counter for a sender and, once the
// auto-restrict threshold is reached, applies a restriction whose
// duration escalates with the offense count:
//
//	3rd blocked message  -> 15 minutes
//	4th blocked message  -> 1 hour
//	5th+ blocked message -> 24 hours
//
// The counter has a 24h TTL that is set on first increment, so counters
// naturally expire when a sender behaves. Returns (restricted, duration).
func (s *Store) RecordOffense(ctx context.Context, senderID string, reason string) (bool, time.Duration, error) {
	key := OffensesPrefix + senderID

	// Atomically increment the counter.
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("restrict: offense incr: %w", err)
	}

	// Set TTL only on first increment so the window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, OffensesTTL).Err(); err != nil {
			return false, 0, fmt.Errorf("restrict: offense expire: %w", err)
		}
	}

	if count >= AutoRestrictThreshold {
		duration := escalationDuration(int(count))
		if err := s.Restrict(ctx, senderID, duration, reason); err != nil {
			return false, 0, fmt.Errorf("restrict: apply restriction: %w", err)
		}
		return true, duration, nil
	}

	return false, 0, nil
}
