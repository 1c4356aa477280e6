// Package eventlog provides PostgreSQL-backed storage for moderation
// events. Every terminal pipeline decision (blocked verdict or successful
// reply) is appended here for audit and analytics. Records are
// append-only: nothing in this system mutates or deletes them.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types recorded in the log.
const (
	TypeBlocked = "blocked"
	TypeReply   = "reply"
)

// Event is one persisted moderation event. ID is monotonic and assigned
// by the store; Ts is the insert timestamp assigned by the database.
type Event struct {
	ID       int64          `json:"id"`
	Ts       time.Time      `json:"ts"`
	Type     string         `json:"event_type"`
	SenderID string         `json:"user_id,omitempty"`
	Message  string         `json:"message"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// Store manages moderation events in PostgreSQL. Concurrent appends
// serialize through the database; each operation runs on a pooled
// connection and commits before returning.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts a new event and returns its store-assigned id. The
// timestamp is assigned by the database at insert time. Existing records
// are never overwritten. senderID and reason may be empty; metadata may
// be nil.
func (s *Store) Append(ctx context.Context, eventType, senderID, message, reason string, metadata map[string]any) (int64, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("eventlog: marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO moderation_events (event_type, sender_id, message, reason, metadata)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5)
		RETURNING id`

	var id int64
	err = s.db.QueryRowContext(ctx, query, eventType, senderID, message, reason, metadataJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("eventlog: insert: %w", err)
	}
	return id, nil
}

// Recent returns up to limit events, newest first. Each call re-queries
// current state; it is not a live cursor. A non-positive limit returns an
// empty slice.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		return []Event{}, nil
	}

	const query = `
		SELECT id, ts, event_type, COALESCE(sender_id, ''), message, COALESCE(reason, ''), metadata
		FROM moderation_events
		ORDER BY id DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query recent: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: iterate recent: %w", err)
	}
	return events, nil
}

// Get returns the event with the given id, or sql.ErrNoRows wrapped when
// it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*Event, error) {
	const query = `
		SELECT id, ts, event_type, COALESCE(sender_id, ''), message, COALESCE(reason, ''), metadata
		FROM moderation_events
		WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, id)
	event, err := scanEvent(row.Scan)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func scanEvent(scan func(...any) error) (Event, error) {
	var event Event
	var metadataJSON []byte
	if err := scan(&event.ID, &event.Ts, &event.Type, &event.SenderID, &event.Message, &event.Reason, &metadataJSON); err != nil {
		return Event{}, fmt.Errorf("eventlog: scan event: %w", err)
	}

	event.Metadata = map[string]any{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
			// Malformed metadata should not hide the event itself.
			event.Metadata = map[string]any{}
		}
	}
	return event, nil
}
