package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Rebuild truncates the projection tables and reconstructs account balances
// from the journal. Position and operation rows are repopulated by the worker
// as events flow again; balances are the only table that must be exact
// immediately, since queries serve them directly.
func Rebuild(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	for _, stmt := range []string{
		`TRUNCATE projections.account_balances`,
		`TRUNCATE projections.positions`,
		`TRUNCATE projections.operations`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset projections: %w", err)
		}
	}

	// Debits increase a balance, credits decrease it.
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.account_balances (account_path, asset, balance, updated_seq, updated_at)
		SELECT
			legs.account_path,
			legs.asset,
			SUM(legs.delta) AS balance,
			MAX(legs.event_sequence) AS updated_seq,
			NOW()
		FROM (
			SELECT debit_account AS account_path, asset, amount AS delta, event_sequence
			FROM event_log.journal
			UNION ALL
			SELECT credit_account AS account_path, asset, -amount AS delta, event_sequence
			FROM event_log.journal
		) legs
		GROUP BY legs.account_path, legs.asset
	`)
	if err != nil {
		return fmt.Errorf("rebuild balances: %w", err)
	}

	log.Info().Msg("projection rebuild complete")
	return nil
}
