// Package recency maintains a per-sender window of recent message texts in
// Redis. The suspicious-activity classifier is pure and takes the window
// as input; this store is the caller-side state that feeds it across
// requests and processes.
//
//	Key:   recent:<sender_id>
//	Value: LPUSH'd message texts, trimmed to WindowSize
//	TTL:   WindowTTL, refreshed on every push
package recency

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for recency windows.
	KeyPrefix = "recent:"

	// WindowSize is the number of recent messages retained per sender.
	WindowSize = 10

	// WindowTTL is how long an idle sender's window lives.
	WindowTTL = 10 * time.Minute
)

// Store manages recency windows in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a recency store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Push records a message text at the head of the sender's window, trims
// the window to WindowSize, and refreshes the TTL. Senders without an id
// are not tracked.
func (s *Store) Push(ctx context.Context, senderID, text string) error {
	if senderID == "" || text == "" {
		return nil
	}
	key := KeyPrefix + senderID

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, text)
	pipe.LTrim(ctx, key, 0, WindowSize-1)
	pipe.Expire(ctx, key, WindowTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Recent returns the sender's window, most recent first. On Redis errors
// it fails open with an empty window so a Redis outage cannot block the
// pipeline.
func (s *Store) Recent(ctx context.Context, senderID string) ([]string, error) {
	if senderID == "" {
		return nil, nil
	}
	key := KeyPrefix + senderID

	texts, err := s.client.LRange(ctx, key, 0, WindowSize-1).Result()
	if err != nil {
		log.Printf("[recency] redis LRANGE error key=%s: %v (failing open)", key, err)
		return nil, err
	}
	return texts, nil
}
