package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"DebtLedger/internal/core"
	"DebtLedger/internal/event"
	"DebtLedger/internal/ledger"
	"DebtLedger/internal/observability"
	"DebtLedger/internal/vault"
)

// Worker maintains the read-model tables from engine output. The engine's
// projection channel is non-blocking: if this worker falls behind, events
// are dropped and the tables are rebuilt from the journal later. Failures
// here never affect the engine or the event log.
type Worker struct {
	db      *sql.DB
	input   <-chan core.EngineOutput
	metrics *observability.Metrics
	log     zerolog.Logger
	lastSeq int64
}

func NewWorker(db *sql.DB, input <-chan core.EngineOutput, metrics *observability.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		db:      db,
		input:   input,
		metrics: metrics,
		log:     log.With().Str("component", "projection").Logger(),
	}
}

func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-w.input:
			if !ok {
				return
			}
			if err := w.apply(ctx, out); err != nil {
				w.metrics.ProjectionErrors.Inc()
				w.log.Warn().Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Msg("projection update failed, tables lag until rebuild")
				continue
			}
			w.lastSeq = out.Envelope.Sequence
			w.metrics.ProjectionLastSeq.Set(float64(w.lastSeq))
		}
	}
}

func (w *Worker) apply(ctx context.Context, out core.EngineOutput) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seq := out.Envelope.Sequence

	if out.Batch != nil {
		for _, j := range out.Batch.Journals {
			if err := w.applyJournal(ctx, tx, seq, j); err != nil {
				return fmt.Errorf("balance projection: %w", err)
			}
		}
	}

	if err := w.applyPosition(ctx, tx, out); err != nil {
		return fmt.Errorf("position projection: %w", err)
	}

	if err := w.recordOperation(ctx, tx, out); err != nil {
		return fmt.Errorf("operation history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, seq); err != nil {
		return fmt.Errorf("watermark: %w", err)
	}

	return tx.Commit()
}

// applyJournal mirrors the in-memory tracker convention: debit increases a
// balance, credit decreases it.
func (w *Worker) applyJournal(ctx context.Context, tx *sql.Tx, seq int64, j ledger.Journal) error {
	assetName, _ := ledger.GetAssetName(j.AssetID)
	ts := time.UnixMicro(j.Timestamp)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.account_balances (account_path, asset, balance, updated_seq, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.account_balances.balance + $3, updated_seq = $4, updated_at = $5
	`, j.DebitAccount.AccountPath(), assetName, j.Amount, seq, ts); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.account_balances (account_path, asset, balance, updated_seq, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.account_balances.balance - $3, updated_seq = $4, updated_at = $5
	`, j.CreditAccount.AccountPath(), assetName, -j.Amount, seq, ts)
	return err
}

func (w *Worker) applyPosition(ctx context.Context, tx *sql.Tx, out core.EngineOutput) error {
	seq := out.Envelope.Sequence
	ts := out.Envelope.Timestamp

	switch res := out.Result.(type) {
	case *vault.OpenResult:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.positions
				(position_id, owner_id, collateral, debt_issued, status, opened_seq, updated_seq, updated_at)
			VALUES ($1, $2, $3, $4, 'active', $5, $5, $6)
			ON CONFLICT (position_id) DO NOTHING
		`, res.ID, res.Owner, res.Collateral, res.Debt, seq, ts)
		return err

	case *vault.MutationResult:
		collateralDelta, debtDelta := mutationDeltas(out.Envelope.EventType, res.Amount)
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET collateral = collateral + $2, debt_issued = debt_issued + $3, updated_seq = $4, updated_at = $5
			WHERE position_id = $1
		`, res.ID, collateralDelta, debtDelta, seq, ts)
		return err

	case *vault.CloseResult:
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET collateral = 0, debt_issued = 0, status = 'closed', updated_seq = $2, updated_at = $3
			WHERE position_id = $1
		`, res.ID, seq, ts)
		return err

	case *vault.CapitalizeResult:
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET collateral = collateral - $2, debt_issued = debt_issued - $3, updated_seq = $4, updated_at = $5
			WHERE position_id = $1
		`, res.ID, res.CollateralOut, res.Repaid, seq, ts)
		return err

	case *vault.CollapseResult:
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET collateral = 0, debt_issued = 0, status = 'collapsed', updated_seq = $2, updated_at = $3
			WHERE position_id = $1
		`, res.ID, seq, ts)
		return err
	}

	// Ownership transfers carry no result struct; recover it from the payload.
	if out.Envelope.EventType == event.EventTypePositionTransfer {
		ev, err := event.Decode(out.Envelope.EventType, out.Envelope.Payload)
		if err != nil {
			return err
		}
		transfer, ok := ev.(*event.PositionTransfer)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for transfer", ev)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE projections.positions
			SET owner_id = $2, updated_seq = $3, updated_at = $4
			WHERE position_id = $1
		`, transfer.PositionID, transfer.To, seq, ts)
		return err
	}

	return nil
}

func mutationDeltas(et event.EventType, amount int64) (collateral, debt int64) {
	switch et {
	case event.EventTypeCollateralAdd:
		return amount, 0
	case event.EventTypeCollateralWithdraw:
		return -amount, 0
	case event.EventTypeDebtWithdraw:
		return 0, amount
	case event.EventTypeDebtRepay:
		return 0, -amount
	}
	return 0, 0
}

func (w *Worker) recordOperation(ctx context.Context, tx *sql.Tx, out core.EngineOutput) error {
	var positionID, amount sql.NullInt64
	var actor interface{}

	switch res := out.Result.(type) {
	case *vault.OpenResult:
		positionID = sql.NullInt64{Int64: int64(res.ID), Valid: true}
		amount = sql.NullInt64{Int64: res.Debt, Valid: true}
		actor = res.Owner
	case *vault.MutationResult:
		positionID = sql.NullInt64{Int64: int64(res.ID), Valid: true}
		amount = sql.NullInt64{Int64: res.Amount, Valid: true}
		actor = res.Caller
	case *vault.CloseResult:
		positionID = sql.NullInt64{Int64: int64(res.ID), Valid: true}
		amount = sql.NullInt64{Int64: res.DebtBurned, Valid: true}
		actor = res.Owner
	case *vault.CapitalizeResult:
		positionID = sql.NullInt64{Int64: int64(res.ID), Valid: true}
		amount = sql.NullInt64{Int64: res.Repaid, Valid: true}
		actor = res.Caller
	case *vault.CollapseResult:
		positionID = sql.NullInt64{Int64: int64(res.ID), Valid: true}
		amount = sql.NullInt64{Int64: res.DebtBurned, Valid: true}
		actor = res.Caller
	case *vault.FeesResult:
		actor = res.Beneficiary
		amount = sql.NullInt64{Int64: res.CollateralPaid, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.operations
			(sequence, event_type, position_id, actor_id, amount, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sequence) DO NOTHING
	`, out.Envelope.Sequence, int32(out.Envelope.EventType), positionID, actor, amount,
		out.Envelope.Payload, out.Envelope.Timestamp)
	return err
}
