package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventRow mirrors a row in event_log.events.
type EventRow struct {
	Sequence       int64
	EventType      int32
	IdempotencyKey string
	Partition      string
	Payload        []byte
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// JournalRow mirrors a row in event_log.journal. One row per balanced
// double-entry, two legs inline.
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	EventSequence int64
	JournalType   int32
	DebitAccount  string
	CreditAccount string
	Asset         string
	Amount        int64
	Timestamp     time.Time
}

// Writer performs batched inserts into the event log tables. All writes go
// through a caller-supplied transaction so an event and its journal entries
// land atomically.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

func (w *Writer) DB() *sql.DB {
	return w.db
}

func (w *Writer) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return w.db.BeginTx(ctx, nil)
}

// WriteEventBatch inserts event rows in a single multi-row statement.
// Conflicts on sequence are ignored so crash-replay overlap is harmless.
func (w *Writer) WriteEventBatch(ctx context.Context, tx *sql.Tx, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO event_log.events
		(sequence, event_type, idempotency_key, partition, payload, state_hash, prev_hash, event_time, source_sequence)
		VALUES `)

	args := make([]interface{}, 0, len(rows)*9)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args, r.Sequence, r.EventType, r.IdempotencyKey, r.Partition,
			r.Payload, r.StateHash, r.PrevHash, r.Timestamp, r.SourceSequence)
	}
	sb.WriteString(" ON CONFLICT (sequence) DO NOTHING")

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert event batch (%d rows): %w", len(rows), err)
	}
	return nil
}

// WriteJournalBatch inserts journal rows in a single multi-row statement.
func (w *Writer) WriteJournalBatch(ctx context.Context, tx *sql.Tx, rows []JournalRow) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO event_log.journal
		(journal_id, batch_id, event_ref, event_sequence, journal_type, debit_account, credit_account, asset, amount, entry_time)
		VALUES `)

	args := make([]interface{}, 0, len(rows)*10)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 10
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10)
		args = append(args, r.JournalID, r.BatchID, r.EventRef, r.EventSequence, r.JournalType,
			r.DebitAccount, r.CreditAccount, r.Asset, r.Amount, r.Timestamp)
	}
	sb.WriteString(" ON CONFLICT (journal_id) DO NOTHING")

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert journal batch (%d rows): %w", len(rows), err)
	}
	return nil
}

// MaxSequence returns the highest persisted event sequence, or 0 when the
// log is empty.
func (w *Writer) MaxSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_log.events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query max sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
