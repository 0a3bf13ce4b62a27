package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks journal-level invariants and cross-checks the
// tracker against the vault's own counters.
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies the ledger is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}

// ValidateUserNonNegative checks a user's reserve and debt balances are >= 0
func (v *InvariantValidator) ValidateUserNonNegative(userID uuid.UUID) error {
	if err := v.tracker.ValidateNonNegative(NewUserAccountKey(userID, SubTypeReserve, AssetReserve)); err != nil {
		return err
	}
	return v.tracker.ValidateNonNegative(NewUserAccountKey(userID, SubTypeDebt, AssetDebt))
}

// ValidateLockedCollateral cross-checks the journal's locked collateral
// against the vault's global collateral counter.
func (v *InvariantValidator) ValidateLockedCollateral(globalCollateral int64) error {
	locked := v.tracker.GetLockedCollateral()
	if locked != globalCollateral {
		return fmt.Errorf("journal locked collateral %d != vault global collateral %d",
			locked, globalCollateral)
	}
	return nil
}

// ValidateDebtSupply cross-checks the journal's outstanding supply against
// the token registry's total.
func (v *InvariantValidator) ValidateDebtSupply(totalSupply int64) error {
	supply := v.tracker.GetDebtSupply()
	if supply != totalSupply {
		return fmt.Errorf("journal debt supply %d != token total supply %d",
			supply, totalSupply)
	}
	return nil
}

// ValidateRewards cross-checks the accrued protocol reward balances.
func (v *InvariantValidator) ValidateRewards(collateralReward, debtReward int64) error {
	if got := v.tracker.GetRewardCollateral(); got != collateralReward {
		return fmt.Errorf("journal collateral reward %d != vault counter %d", got, collateralReward)
	}
	if got := v.tracker.GetRewardDebt(); got != debtReward {
		return fmt.Errorf("journal debt reward %d != vault counter %d", got, debtReward)
	}
	return nil
}
