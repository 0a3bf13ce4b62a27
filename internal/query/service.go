package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"DebtLedger/internal/event"
	"DebtLedger/internal/ledger"
)

// Service provides read-only access to the projection tables and the event
// log. Every response carries as_of_sequence so callers can reason about
// staleness relative to the engine.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetBalance returns a holder's reserve and debt-token balances.
func (s *Service) GetBalance(ctx context.Context, holderID uuid.UUID) (*BalanceResponse, error) {
	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	reservePath := ledger.NewUserAccountKey(holderID, ledger.SubTypeReserve, ledger.AssetReserve).AccountPath()
	reserve, err := s.projectedBalance(ctx, reservePath)
	if err != nil {
		return nil, err
	}

	debtPath := ledger.NewUserAccountKey(holderID, ledger.SubTypeDebt, ledger.AssetDebt).AccountPath()
	debt, err := s.projectedBalance(ctx, debtPath)
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		HolderID:     holderID,
		Reserve:      reserve,
		DebtTokens:   debt,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetPosition returns a single position by id regardless of status.
func (s *Service) GetPosition(ctx context.Context, positionID uint64) (*PositionResponse, error) {
	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}

	var p PositionResponse
	p.AsOfSequence = asOfSeq
	err = s.db.QueryRowContext(ctx, `
		SELECT position_id, owner_id, collateral, debt_issued, status, updated_seq
		FROM projections.positions
		WHERE position_id = $1
	`, positionID).Scan(&p.PositionID, &p.OwnerID, &p.Collateral, &p.DebtIssued, &p.Status, &p.UpdatedSeq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPositionsByOwner returns an owner's active positions.
func (s *Service) GetPositionsByOwner(ctx context.Context, ownerID uuid.UUID) ([]PositionResponse, error) {
	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, owner_id, collateral, debt_issued, status, updated_seq
		FROM projections.positions
		WHERE owner_id = $1 AND status = 'active'
		ORDER BY position_id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionResponse
	for rows.Next() {
		var p PositionResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(&p.PositionID, &p.OwnerID, &p.Collateral, &p.DebtIssued, &p.Status, &p.UpdatedSeq); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetOperations returns operation history, optionally filtered by position
// or actor, with cursor pagination on sequence descending.
func (s *Service) GetOperations(ctx context.Context, positionID *uint64, actorID *uuid.UUID, limit int, beforeSeq *int64) ([]OperationResponse, error) {
	q := `
		SELECT sequence, event_type, position_id, actor_id, amount,
		       EXTRACT(EPOCH FROM occurred_at)::BIGINT * 1000000
		FROM projections.operations
		WHERE 1 = 1
	`
	args := []interface{}{}
	argIdx := 1

	if positionID != nil {
		q += fmt.Sprintf(" AND position_id = $%d", argIdx)
		args = append(args, *positionID)
		argIdx++
	}
	if actorID != nil {
		q += fmt.Sprintf(" AND actor_id = $%d", argIdx)
		args = append(args, *actorID)
		argIdx++
	}
	if beforeSeq != nil {
		q += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSeq)
		argIdx++
	}

	q += fmt.Sprintf(" ORDER BY sequence DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []OperationResponse
	for rows.Next() {
		var op OperationResponse
		var et int32
		var posID sql.NullInt64
		var actor uuid.NullUUID
		var amount sql.NullInt64
		if err := rows.Scan(&op.Sequence, &et, &posID, &actor, &amount, &op.OccurredAt); err != nil {
			return nil, err
		}
		op.EventType = event.EventType(et).String()
		if posID.Valid {
			id := uint64(posID.Int64)
			op.PositionID = &id
		}
		if actor.Valid {
			a := actor.UUID
			op.ActorID = &a
		}
		if amount.Valid {
			v := amount.Int64
			op.Amount = &v
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// GetJournalHistory returns journal entries touching any of a holder's
// accounts, newest first.
func (s *Service) GetJournalHistory(ctx context.Context, holderID uuid.UUID, limit int, beforeSeq *int64) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", holderID)

	q := `
		SELECT journal_id, batch_id, event_ref, event_sequence,
		       debit_account, credit_account, asset, amount, journal_type
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if beforeSeq != nil {
		q += fmt.Sprintf(" AND event_sequence < $%d", argIdx)
		args = append(args, *beforeSeq)
		argIdx++
	}

	q += fmt.Sprintf(" ORDER BY event_sequence DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Asset, &e.Amount, &e.JournalType,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetSystemOverview aggregates the protocol-level accounting view.
func (s *Service) GetSystemOverview(ctx context.Context) (*SystemOverview, error) {
	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}

	ov := &SystemOverview{AsOfSequence: asOfSeq}

	lockedPath := ledger.NewSystemAccountKey(ledger.SubTypePositions, ledger.AssetReserve).AccountPath()
	if ov.GlobalCollateral, err = s.projectedBalance(ctx, lockedPath); err != nil {
		return nil, err
	}

	// Supply is tracked as a negative external balance.
	supplyPath := ledger.NewExternalAccountKey(ledger.SubTypeExternalDebtSupply, ledger.AssetDebt).AccountPath()
	supply, err := s.projectedBalance(ctx, supplyPath)
	if err != nil {
		return nil, err
	}
	ov.DebtSupply = -supply

	rewardCollateralPath := ledger.NewSystemAccountKey(ledger.SubTypeRewardCollateral, ledger.AssetReserve).AccountPath()
	if ov.RewardCollateral, err = s.projectedBalance(ctx, rewardCollateralPath); err != nil {
		return nil, err
	}

	rewardDebtPath := ledger.NewSystemAccountKey(ledger.SubTypeRewardDebt, ledger.AssetDebt).AccountPath()
	if ov.RewardDebt, err = s.projectedBalance(ctx, rewardDebtPath); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM projections.positions WHERE status = 'active'
	`).Scan(&ov.ActivePositions); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) FROM event_log.events
	`).Scan(&ov.LastPersistedSeq); err != nil {
		return nil, err
	}

	return ov, nil
}

// VerifyIntegrity checks hash chain continuity in the event log and the
// zero-sum property of the journal per asset.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Journal legs cancel by construction, so the materialized balances are
	// the thing that can drift. Per asset they must sum to zero.
	balanceRows, err := s.db.QueryContext(ctx, `
		SELECT asset, SUM(balance) AS total
		FROM projections.account_balances
		GROUP BY asset
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var asset string
		var total int64
		if err := balanceRows.Scan(&asset, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			Asset:     asset,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

func (s *Service) watermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (s *Service) projectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM projections.account_balances WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
