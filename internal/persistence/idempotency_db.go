package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"DebtLedger/internal/event"
)

// DBIdempotencyChecker answers dedup lookups against the event log for keys
// that have aged out of the in-memory LRU.
type DBIdempotencyChecker struct {
	db      *sql.DB
	timeout time.Duration
}

func NewDBIdempotencyChecker(db *sql.DB) *DBIdempotencyChecker {
	return &DBIdempotencyChecker{db: db, timeout: 2 * time.Second}
}

// IsDuplicate reports whether an event with this type and idempotency key
// has already been persisted.
func (c *DBIdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var exists bool
	err := c.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM event_log.events
			WHERE idempotency_key = $1
		)`, idempotencyKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("idempotency lookup for %s/%s: %w", eventType, idempotencyKey, err)
	}
	return exists, nil
}

// RecentKeys returns the composite dedup keys of the most recent events,
// newest first, for warming the LRU after a restart.
func (c *DBIdempotencyChecker) RecentKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT event_type, idempotency_key
		FROM event_log.events
		ORDER BY sequence DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var et int32
		var key string
		if err := rows.Scan(&et, &key); err != nil {
			return nil, err
		}
		keys = append(keys, fmt.Sprintf("%s:%s", event.EventType(et).String(), key))
	}
	return keys, rows.Err()
}
