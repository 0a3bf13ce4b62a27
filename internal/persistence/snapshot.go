package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DebtLedger/internal/core"
	"DebtLedger/internal/ledger"
	"DebtLedger/internal/observability"
	"DebtLedger/internal/settings"
	"DebtLedger/internal/vault"
)

// SnapshotData is the JSON shape stored in event_log.snapshots. It mirrors
// core.SnapshotState with tracker balances keyed by account path, since
// struct-keyed maps do not marshal.
type SnapshotData struct {
	Sequence          int64                  `json:"sequence"`
	StateHash         []byte                 `json:"state_hash"`
	Balances          map[string]int64       `json:"balances"`
	Vault             vault.LedgerSnapshot   `json:"vault"`
	BankBalances      map[uuid.UUID]int64    `json:"bank_balances"`
	TokenBalances     map[uuid.UUID]int64    `json:"token_balances"`
	RegistryOwners    map[uint64]uuid.UUID   `json:"registry_owners"`
	RegistryApprovals map[uint64]uuid.UUID   `json:"registry_approvals"`
	PriceRate         int64                  `json:"price_rate"`
	PriceSequence     int64                  `json:"price_sequence"`
	PriceTimestamp    int64                  `json:"price_timestamp"`
	Params            settings.Params        `json:"params"`
	SequenceState     map[string]int64       `json:"sequence_state"`
	IdempotencyKeys   []string               `json:"idempotency_keys"`
}

func toSnapshotData(st *core.SnapshotState) *SnapshotData {
	balances := make(map[string]int64, len(st.Balances))
	for k, v := range st.Balances {
		balances[k.AccountPath()] = v
	}
	return &SnapshotData{
		Sequence:          st.Sequence,
		StateHash:         st.StateHash[:],
		Balances:          balances,
		Vault:             st.Vault,
		BankBalances:      st.BankBalances,
		TokenBalances:     st.TokenBalances,
		RegistryOwners:    st.RegistryOwners,
		RegistryApprovals: st.RegistryApprovals,
		PriceRate:         st.PriceRate,
		PriceSequence:     st.PriceSequence,
		PriceTimestamp:    st.PriceTimestamp,
		Params:            st.Params,
		SequenceState:     st.SequenceState,
		IdempotencyKeys:   st.IdempotencyKeys,
	}
}

func (d *SnapshotData) toEngineState() (*core.SnapshotState, error) {
	balances := make(map[ledger.AccountKey]int64, len(d.Balances))
	for path, v := range d.Balances {
		key, err := ledger.ParseAccountPath(path)
		if err != nil {
			return nil, err
		}
		balances[key] = v
	}

	st := &core.SnapshotState{
		Sequence:          d.Sequence,
		Balances:          balances,
		Vault:             d.Vault,
		BankBalances:      d.BankBalances,
		TokenBalances:     d.TokenBalances,
		RegistryOwners:    d.RegistryOwners,
		RegistryApprovals: d.RegistryApprovals,
		PriceRate:         d.PriceRate,
		PriceSequence:     d.PriceSequence,
		PriceTimestamp:    d.PriceTimestamp,
		Params:            d.Params,
		SequenceState:     d.SequenceState,
		IdempotencyKeys:   d.IdempotencyKeys,
	}
	if len(d.StateHash) != 32 {
		return nil, fmt.Errorf("snapshot state hash has %d bytes, want 32", len(d.StateHash))
	}
	copy(st.StateHash[:], d.StateHash)
	return st, nil
}

// SnapshotManager persists and loads full-state snapshots so restarts replay
// only the event-log tail instead of the whole history.
type SnapshotManager struct {
	db      *sql.DB
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewSnapshotManager(db *sql.DB, metrics *observability.Metrics, log zerolog.Logger) *SnapshotManager {
	return &SnapshotManager{
		db:      db,
		metrics: metrics,
		log:     log.With().Str("component", "snapshot").Logger(),
	}
}

// Save stores the snapshot keyed by its sequence. Saving the same sequence
// twice is a no-op.
func (sm *SnapshotManager) Save(ctx context.Context, st *core.SnapshotState) error {
	start := time.Now()

	payload, err := json.Marshal(toSnapshotData(st))
	if err != nil {
		return fmt.Errorf("marshal snapshot at seq %d: %w", st.Sequence, err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots (sequence, state_hash, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (sequence) DO NOTHING`,
		st.Sequence, st.StateHash[:], payload,
	)
	if err != nil {
		sm.metrics.PersistErrors.WithLabelValues("snapshot").Inc()
		return fmt.Errorf("insert snapshot at seq %d: %w", st.Sequence, err)
	}

	sm.metrics.SnapshotTaken.Inc()
	sm.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	sm.metrics.SnapshotSizeBytes.Set(float64(len(payload)))
	sm.metrics.SnapshotLastSeq.Set(float64(st.Sequence))

	sm.log.Info().
		Int64("sequence", st.Sequence).
		Int("bytes", len(payload)).
		Msg("snapshot saved")
	return nil
}

// LoadLatest returns the most recent snapshot, or nil when none exists.
func (sm *SnapshotManager) LoadLatest(ctx context.Context) (*core.SnapshotState, error) {
	var payload []byte
	err := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		ORDER BY sequence DESC LIMIT 1`,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	var data SnapshotData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return data.toEngineState()
}

// Prune removes all snapshots except the newest keep count.
func (sm *SnapshotManager) Prune(ctx context.Context, keep int) error {
	_, err := sm.db.ExecContext(ctx, `
		DELETE FROM event_log.snapshots
		WHERE sequence NOT IN (
			SELECT sequence FROM event_log.snapshots
			ORDER BY sequence DESC LIMIT $1
		)`, keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
