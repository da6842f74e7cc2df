// Package postgres persists audit entries and, in the same transaction, a
// transactional-outbox row so downstream consumers (notification fan-out,
// compliance archive) see exactly the entries that committed.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vivaha/internal/audit"
	id "vivaha/pkg/domain"
	txcontext "vivaha/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts the audit entry and its outbox row atomically with the
// caller's transaction when one is in context.
func (s *Store) Append(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	detailsBytes, err := json.Marshal(entry.Details)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("marshal audit details: %w", err)
	}

	execer := s.execer(ctx)
	_, err = execer.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, actor_id, actor_name, actor_role, action,
			resource_type, resource_id, details,
			client_ip, user_agent, request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.ID,
		uuid.UUID(entry.ActorID),
		entry.ActorName,
		entry.ActorRole,
		string(entry.Action),
		string(entry.ResourceType),
		entry.ResourceID,
		detailsBytes,
		entry.ClientIP,
		entry.UserAgent,
		entry.RequestID,
		entry.Timestamp,
	)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("insert audit entry: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		string(entry.ResourceType),
		entry.ResourceID,
		string(entry.Action),
		payload,
		time.Now(),
	)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("insert outbox entry: %w", err)
	}
	return entry, nil
}

// Query filters the materialized log for the audit console. Free-text search
// runs server-side over actor name, action, resource id, and details.
func (s *Store) Query(ctx context.Context, filters audit.Filters) ([]audit.Entry, error) {
	query := `
		SELECT id, actor_id, actor_name, actor_role, action,
			   resource_type, resource_id, details,
			   client_ip, user_agent, request_id, created_at
		FROM audit_entries
	`
	var (
		conditions []string
		args       []any
	)
	if filters.ActorRole != "" {
		args = append(args, filters.ActorRole)
		conditions = append(conditions, fmt.Sprintf("actor_role = $%d", len(args)))
	}
	if filters.ActionContains != "" {
		args = append(args, "%"+filters.ActionContains+"%")
		conditions = append(conditions, fmt.Sprintf("action LIKE $%d", len(args)))
	}
	if filters.Search != "" {
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(actor_name) LIKE $%d OR LOWER(action) LIKE $%d OR LOWER(resource_id) LIKE $%d OR LOWER(details::text) LIKE $%d)",
			n, n, n, n))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			entry        audit.Entry
			actorID      uuid.UUID
			action       string
			resourceType string
			detailsBytes []byte
		)
		err := rows.Scan(
			&entry.ID,
			&actorID,
			&entry.ActorName,
			&entry.ActorRole,
			&action,
			&resourceType,
			&entry.ResourceID,
			&detailsBytes,
			&entry.ClientIP,
			&entry.UserAgent,
			&entry.RequestID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ActorID = id.UserID(actorID)
		entry.Action = audit.Action(action)
		entry.ResourceType = audit.ResourceType(resourceType)
		if len(detailsBytes) > 0 {
			if err := json.Unmarshal(detailsBytes, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
