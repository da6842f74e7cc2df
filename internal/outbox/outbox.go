// Package outbox drains the transactional outbox to Kafka. Rows are written
// in the same transaction as the state change they describe, so consumers
// see exactly the events that committed, in commit order per aggregate.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one pending outbox row.
type Event struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Store reads and settles outbox rows.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchPending returns up to limit unpublished events in insertion order.
// FOR UPDATE SKIP LOCKED lets multiple workers drain concurrently without
// double-publishing within one polling cycle.
func (s *Store) FetchPending(ctx context.Context, tx *sql.Tx, limit int) ([]Event, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished settles the given events inside the worker's transaction.
func (s *Store) MarkPublished(ctx context.Context, tx *sql.Tx, ids []uuid.UUID, publishedAt time.Time) error {
	for _, eventID := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE outbox SET published_at = $2 WHERE id = $1
		`, eventID, publishedAt); err != nil {
			return fmt.Errorf("mark outbox event published: %w", err)
		}
	}
	return nil
}

// Begin opens the worker transaction.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}
