package query

import "github.com/google/uuid"

// BalanceResponse is a holder's bank-side view: reserve asset on hand and
// debt tokens held. All amounts are fixed-point at amount scale.
type BalanceResponse struct {
	HolderID     uuid.UUID `json:"holder_id"`
	Reserve      int64     `json:"reserve"`
	DebtTokens   int64     `json:"debt_tokens"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// PositionResponse is a collateralized position for API queries.
type PositionResponse struct {
	PositionID   uint64    `json:"position_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Collateral   int64     `json:"collateral"`
	DebtIssued   int64     `json:"debt_issued"`
	Status       string    `json:"status"`
	UpdatedSeq   int64     `json:"updated_seq"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// OperationResponse is one row of the flat operation history.
type OperationResponse struct {
	Sequence   int64      `json:"sequence"`
	EventType  string     `json:"event_type"`
	PositionID *uint64    `json:"position_id,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Amount     *int64     `json:"amount,omitempty"`
	OccurredAt int64      `json:"occurred_at_us"`
}

// JournalHistoryEntry is a journal row for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Asset         string `json:"asset"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
}

// SystemOverview aggregates the global accounting view.
type SystemOverview struct {
	GlobalCollateral int64 `json:"global_collateral"`
	DebtSupply       int64 `json:"debt_supply"`
	RewardCollateral int64 `json:"reward_collateral"`
	RewardDebt       int64 `json:"reward_debt"`
	ActivePositions  int64 `json:"active_positions"`
	AsOfSequence     int64 `json:"as_of_sequence"`
	LastPersistedSeq int64 `json:"last_persisted_sequence"`
}

// IntegrityReport is the result of an integrity verification sweep.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset is an asset whose journal legs do not sum to zero.
type UnbalancedAsset struct {
	Asset     string `json:"asset"`
	Imbalance int64  `json:"imbalance"`
}
