package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"DebtLedger/internal/event"
)

// Reader streams persisted events back out of the log for warm-restart
// replay.
type Reader struct {
	db *sql.DB
}

func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// ReplayFrom reads events with sequence >= from, in order, decodes each
// payload, and invokes fn. Replay stops at the first error.
func (r *Reader) ReplayFrom(ctx context.Context, from int64, fn func(seq int64, ev event.Event) error) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, event_type, payload
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC`, from)
	if err != nil {
		return fmt.Errorf("query events from seq %d: %w", from, err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var et int32
		var payload []byte
		if err := rows.Scan(&seq, &et, &payload); err != nil {
			return fmt.Errorf("scan event row: %w", err)
		}

		ev, err := event.Decode(event.EventType(et), payload)
		if err != nil {
			return fmt.Errorf("decode event at seq %d: %w", seq, err)
		}
		if err := fn(seq, ev); err != nil {
			return fmt.Errorf("replay event at seq %d: %w", seq, err)
		}
	}
	return rows.Err()
}
