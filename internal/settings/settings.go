package settings

import (
	"fmt"

	"github.com/google/uuid"

	"DebtLedger/internal/fixed"
)

// Params holds the protocol parameters the ledger reads on every operation.
// Ratios and fee rates are parts-per-million (fixed.RatioScale); amounts are
// at fixed.AmountScale.
type Params struct {
	// MinDeposit is the minimum collateral attached at creation and the
	// smallest residual collateral a withdrawal may leave behind.
	MinDeposit int64

	// TargetRatio is the system's desired minimum aggregate
	// collateralization (e.g. 1_500_000 = 150%).
	TargetRatio int64

	// BaseRatio is the loosest ratio permitted for new issuance when the
	// global ratio sits at or above target (e.g. 1_150_000 = 115%).
	BaseRatio int64

	// CapitalizationFloorRatio is the threshold below which a position
	// becomes eligible for capitalization.
	CapitalizationFloorRatio int64

	// CapitalizationCeilingRatio caps how far a single capitalization may
	// push the position's ratio back up (e.g. 1_600_000 = 160%).
	CapitalizationCeilingRatio int64

	// CollapseThresholdRatio is the ratio below which a sub-minimum
	// position may be collapsed outright.
	CollapseThresholdRatio int64

	// RepayDustFloor is the smallest repay amount accepted by capitalize
	// (e.g. 100_000 = 0.1 debt-token units).
	RepayDustFloor int64

	// TotalFeeRate is the reward rate applied to the collateral equivalent
	// during capitalization and collapse (e.g. 30_000 = 3%).
	TotalFeeRate int64

	// SystemFeeShare is the protocol's share of the total reward
	// (500_000 = 50%, yielding two equal legs).
	SystemFeeShare int64

	// EffectiveSeq is the command sequence at which these params took effect.
	EffectiveSeq int64
}

// DefaultParams returns the protocol defaults.
func DefaultParams() Params {
	return Params{
		MinDeposit:                 50_000, // 0.05 reserve units
		TargetRatio:                1_500_000,
		BaseRatio:                  1_150_000,
		CapitalizationFloorRatio:   1_450_000,
		CapitalizationCeilingRatio: 1_600_000,
		CollapseThresholdRatio:     1_450_000,
		RepayDustFloor:             100_000, // 0.1 debt-token units
		TotalFeeRate:               30_000,  // 3%
		SystemFeeShare:             500_000, // 50/50 split with the caller
	}
}

// Validate checks that parameters are within protocol-defined ranges.
// Rejections here are range violations at the settings layer; the ledger
// itself never sees out-of-range values.
func Validate(p Params) error {
	if p.MinDeposit <= 0 {
		return fmt.Errorf("min_deposit must be > 0, got %d", p.MinDeposit)
	}
	if p.BaseRatio <= fixed.RatioScale {
		return fmt.Errorf("base_ratio must exceed 100%%, got %d", p.BaseRatio)
	}
	if p.TargetRatio <= p.BaseRatio {
		return fmt.Errorf("target_ratio (%d) must be > base_ratio (%d)", p.TargetRatio, p.BaseRatio)
	}
	if p.CapitalizationFloorRatio <= p.BaseRatio {
		return fmt.Errorf("capitalization_floor_ratio (%d) must be > base_ratio (%d)",
			p.CapitalizationFloorRatio, p.BaseRatio)
	}
	if p.CapitalizationCeilingRatio <= p.CapitalizationFloorRatio {
		return fmt.Errorf("capitalization_ceiling_ratio (%d) must be > capitalization_floor_ratio (%d)",
			p.CapitalizationCeilingRatio, p.CapitalizationFloorRatio)
	}
	if p.CollapseThresholdRatio <= 0 || p.CollapseThresholdRatio > p.CapitalizationCeilingRatio {
		return fmt.Errorf("collapse_threshold_ratio out of range: %d", p.CollapseThresholdRatio)
	}
	if p.RepayDustFloor <= 0 {
		return fmt.Errorf("repay_dust_floor must be > 0, got %d", p.RepayDustFloor)
	}
	if p.TotalFeeRate < 0 || p.TotalFeeRate >= 100_000 {
		return fmt.Errorf("total_fee_rate must be in [0, 10%%), got %d", p.TotalFeeRate)
	}
	if p.SystemFeeShare < 0 || p.SystemFeeShare > fixed.RatioScale {
		return fmt.Errorf("system_fee_share must be in [0, 100%%], got %d", p.SystemFeeShare)
	}
	return nil
}

// Provider exposes current protocol parameters and the administrative role.
// Mutations are admin-gated and range-validated; the ledger only reads.
type Provider struct {
	params Params
	admin  uuid.UUID
}

func NewProvider(p Params, admin uuid.UUID) (*Provider, error) {
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("invalid initial params: %w", err)
	}
	if admin == uuid.Nil {
		return nil, fmt.Errorf("admin role must be set")
	}
	return &Provider{params: p, admin: admin}, nil
}

// Current returns the parameters in force.
func (pr *Provider) Current() Params {
	return pr.params
}

// IsAdmin reports whether the caller holds the administrative role.
func (pr *Provider) IsAdmin(caller uuid.UUID) bool {
	return caller == pr.admin
}

// Restore sets the parameters directly (snapshot restore).
func (pr *Provider) Restore(p Params) {
	pr.params = p
}

// Update replaces the parameters after admin and range checks.
func (pr *Provider) Update(caller uuid.UUID, p Params) error {
	if !pr.IsAdmin(caller) {
		return fmt.Errorf("caller %s does not hold the admin role", caller)
	}
	if err := Validate(p); err != nil {
		return fmt.Errorf("rejected params update: %w", err)
	}
	pr.params = p
	return nil
}
