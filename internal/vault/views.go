package vault

import (
	"fmt"
	"sort"

	"DebtLedger/internal/fixed"
)

// Views are read-only and never mutate ledger state. They use the same
// oracle and arithmetic as the operations so a view answer of N means the
// corresponding operation with N would be accepted at the same price.

// Get returns a copy of the position record.
func (l *Ledger) Get(id uint64) (Position, error) {
	pos, err := l.active(id)
	if err != nil {
		return Position{}, err
	}
	return *pos, nil
}

// Ratio reports a position's current collateralization in ppm.
func (l *Ledger) Ratio(id uint64) (int64, error) {
	pos, err := l.active(id)
	if err != nil {
		return 0, err
	}
	rate, scale, oerr := l.oracle.CurrentPrice()
	if oerr != nil {
		return 0, fmt.Errorf("%w: %v", ErrState, oerr)
	}
	return fixed.Ratio(rate, scale, pos.Collateral, pos.DebtIssued), nil
}

// GlobalRatio reports the system-wide collateralization in ppm.
// RatioInfinite when no debt is outstanding.
func (l *Ledger) GlobalRatio() (int64, error) {
	rate, scale, err := l.oracle.CurrentPrice()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrState, err)
	}
	return l.globalRatio(rate, scale), nil
}

// GlobalCollateral returns the tracked sum of all open positions'
// collateral.
func (l *Ledger) GlobalCollateral() int64 { return l.globalCollateral }

// SystemRewards returns the accrued protocol reward balances.
func (l *Ledger) SystemRewards() (collateral, debt int64) {
	return l.sysCollateralReward, l.sysDebtReward
}

// MaxWithdrawableDebt returns the additional debt a position could issue
// while staying at or above the target ratio. Zero when already at or below
// it. The target ratio is used regardless of the issuance branch in force at
// creation so the view's answer always matches what WithdrawDebt would
// accept, which is held to the target bound.
func (l *Ledger) MaxWithdrawableDebt(id uint64) (int64, error) {
	pos, err := l.active(id)
	if err != nil {
		return 0, err
	}
	rate, scale, oerr := l.oracle.CurrentPrice()
	if oerr != nil {
		return 0, fmt.Errorf("%w: %v", ErrState, oerr)
	}
	p := l.settings.Current()
	maxDebt, derr := fixed.DebtForCollateral(rate, scale, pos.Collateral, p.TargetRatio)
	if derr != nil {
		return 0, fmt.Errorf("%w: %v", ErrBounds, derr)
	}
	if maxDebt <= pos.DebtIssued {
		return 0, nil
	}
	return maxDebt - pos.DebtIssued, nil
}

// MaxWithdrawableCollateral returns the collateral a position could release
// while staying at or above the target ratio, honoring the minimum-deposit
// residual rule: if the free amount would leave a sub-minimum nonzero
// residual, it is reduced so the residual stays at the minimum.
func (l *Ledger) MaxWithdrawableCollateral(id uint64) (int64, error) {
	pos, err := l.active(id)
	if err != nil {
		return 0, err
	}
	rate, scale, oerr := l.oracle.CurrentPrice()
	if oerr != nil {
		return 0, fmt.Errorf("%w: %v", ErrState, oerr)
	}
	p := l.settings.Current()

	var required int64
	if pos.DebtIssued > 0 {
		// Minimum collateral backing the current debt at the target ratio,
		// rounded up so the answer never admits a rejected withdrawal.
		req, rerr := fixed.MulDivCeil(pos.DebtIssued, p.TargetRatio, fixed.RatioScale)
		if rerr != nil {
			return 0, fmt.Errorf("%w: %v", ErrBounds, rerr)
		}
		required, rerr = fixed.MulDivCeil(req, scale, rate)
		if rerr != nil {
			return 0, fmt.Errorf("%w: %v", ErrBounds, rerr)
		}
	}

	free := pos.Collateral - required
	if free <= 0 {
		return 0, nil
	}
	residual := pos.Collateral - free
	if residual != 0 && residual < p.MinDeposit {
		free = pos.Collateral - p.MinDeposit
		if free < 0 {
			free = 0
		}
	}
	return free, nil
}

// GlobalWithdrawableCollateral returns the aggregate headroom before the
// global ratio would fall below target: the collateral in excess of what the
// total outstanding debt requires at the target ratio. Zero when the system
// is already below target. A per-position sum would overstate this, since
// under-target positions contribute deficits, not headroom.
func (l *Ledger) GlobalWithdrawableCollateral() (int64, error) {
	rate, scale, err := l.oracle.CurrentPrice()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrState, err)
	}

	var totalDebt int64
	for _, pos := range l.positions {
		totalDebt += pos.DebtIssued
	}
	if totalDebt == 0 {
		return l.globalCollateral, nil
	}

	p := l.settings.Current()
	req, rerr := fixed.MulDivCeil(totalDebt, p.TargetRatio, fixed.RatioScale)
	if rerr != nil {
		return 0, fmt.Errorf("%w: %v", ErrBounds, rerr)
	}
	required, rerr := fixed.MulDivCeil(req, scale, rate)
	if rerr != nil {
		return 0, fmt.Errorf("%w: %v", ErrBounds, rerr)
	}
	if required >= l.globalCollateral {
		return 0, nil
	}
	return l.globalCollateral - required, nil
}

// PositionIDs returns the open position ids in ascending order.
func (l *Ledger) PositionIDs() []uint64 {
	ids := make([]uint64, 0, len(l.positions))
	for id := range l.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CheckInvariants verifies the conservation rules the operations maintain.
// The engine calls it after every applied command and panics on failure.
func (l *Ledger) CheckInvariants() error {
	var sumCollateral, sumDebt int64
	for id, pos := range l.positions {
		if pos.Collateral < 0 || pos.DebtIssued < 0 {
			return fmt.Errorf("position %d has negative balances: collateral=%d debt=%d",
				id, pos.Collateral, pos.DebtIssued)
		}
		if pos.DebtIssued > 0 && pos.Collateral == 0 {
			return fmt.Errorf("position %d has outstanding debt %d with no collateral",
				id, pos.DebtIssued)
		}
		sumCollateral += pos.Collateral
		sumDebt += pos.DebtIssued
	}
	if sumCollateral != l.globalCollateral {
		return fmt.Errorf("global collateral %d != position sum %d",
			l.globalCollateral, sumCollateral)
	}
	if supply := l.token.TotalSupply(); supply != sumDebt {
		return fmt.Errorf("token supply %d != outstanding debt sum %d", supply, sumDebt)
	}
	if l.sysCollateralReward < 0 || l.sysDebtReward < 0 {
		return fmt.Errorf("negative system rewards: collateral=%d debt=%d",
			l.sysCollateralReward, l.sysDebtReward)
	}
	return nil
}
