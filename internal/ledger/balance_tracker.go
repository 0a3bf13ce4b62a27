package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// === User balance queries ===

// GetUserReserve returns the free reserve-asset balance
func (bt *BalanceTracker) GetUserReserve(userID uuid.UUID) int64 {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeReserve, AssetReserve))
}

// GetUserDebt returns the debt-token balance
func (bt *BalanceTracker) GetUserDebt(userID uuid.UUID) int64 {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeDebt, AssetDebt))
}

// === System balance queries ===

// GetLockedCollateral returns the reserve amount locked in open positions.
// Must equal the vault's global collateral counter at all times.
func (bt *BalanceTracker) GetLockedCollateral() int64 {
	return bt.GetBalance(NewSystemAccountKey(SubTypePositions, AssetReserve))
}

// GetRewardCollateral returns the protocol's accrued reserve-asset rewards
func (bt *BalanceTracker) GetRewardCollateral() int64 {
	return bt.GetBalance(NewSystemAccountKey(SubTypeRewardCollateral, AssetReserve))
}

// GetRewardDebt returns the protocol's accrued debt-token rewards
func (bt *BalanceTracker) GetRewardDebt() int64 {
	return bt.GetBalance(NewSystemAccountKey(SubTypeRewardDebt, AssetDebt))
}

// GetDebtSupply returns the outstanding debt-token supply. The external
// supply account is credited on every mint, so the supply is its negation.
func (bt *BalanceTracker) GetDebtSupply() int64 {
	return -bt.GetBalance(NewExternalAccountKey(SubTypeExternalDebtSupply, AssetDebt))
}

// === Invariant checks ===

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ValidateSufficientReserve checks a user can fund a reserve debit
func (bt *BalanceTracker) ValidateSufficientReserve(userID uuid.UUID, required int64) error {
	available := bt.GetUserReserve(userID)
	if available < required {
		return fmt.Errorf("insufficient reserve: have=%d, need=%d", available, required)
	}
	return nil
}

// ValidateSufficientDebt checks a user can fund a debt-token debit
func (bt *BalanceTracker) ValidateSufficientDebt(userID uuid.UUID, required int64) error {
	available := bt.GetUserDebt(userID)
	if available < required {
		return fmt.Errorf("insufficient debt tokens: have=%d, need=%d", available, required)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per asset (zero for a
// zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// Snapshot returns a copy of all balances (for state hashing and recovery)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}

// Restore replaces all balances from a snapshot
func (bt *BalanceTracker) Restore(balances map[AccountKey]int64) {
	bt.balances = make(map[AccountKey]int64, len(balances))
	for k, v := range balances {
		bt.balances[k] = v
	}
}
