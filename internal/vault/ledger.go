package vault

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"DebtLedger/internal/fixed"
	"DebtLedger/internal/oracle"
	"DebtLedger/internal/registry"
	"DebtLedger/internal/settings"
	"DebtLedger/internal/token"
)

// SettingsProvider is the slice of the settings layer the ledger reads.
type SettingsProvider interface {
	Current() settings.Params
	IsAdmin(caller uuid.UUID) bool
}

// Ledger owns the position records and the global accounting counters.
// All mutation happens through its operation methods; the engine serializes
// calls so no position is ever observed partially updated.
//
// Every operation validates completely before mutating anything, so a
// rejection leaves all state — positions, counters, token, bank, registry —
// untouched. Collaborator failures after validation indicate corrupted state
// and panic.
type Ledger struct {
	positions map[uint64]*Position
	nextID    uint64

	// Global accounting. globalCollateral is maintained incrementally and
	// must equal the sum of Collateral across all open positions at all
	// times (checked by CheckInvariants after every operation).
	globalCollateral    int64
	sysCollateralReward int64
	sysDebtReward       int64

	// systemAccount holds the protocol's accrued debt-token rewards.
	systemAccount uuid.UUID

	oracle   oracle.PriceOracle
	token    token.DebtToken
	bank     token.Bank
	registry registry.PositionRegistry
	settings SettingsProvider
}

// SystemAccount is the fixed holder id for protocol-owned debt tokens.
var SystemAccount = uuid.MustParse("00000000-0000-0000-0000-00000000feed")

func NewLedger(
	po oracle.PriceOracle,
	dt token.DebtToken,
	bank token.Bank,
	reg registry.PositionRegistry,
	sp SettingsProvider,
) *Ledger {
	return &Ledger{
		positions:     make(map[uint64]*Position),
		nextID:        1,
		systemAccount: SystemAccount,
		oracle:        po,
		token:         dt,
		bank:          bank,
		registry:      reg,
		settings:      sp,
	}
}

// --- Operation results (consumed by the engine for events and journals) ---

type OpenResult struct {
	ID         uint64
	Owner      uuid.UUID
	Collateral int64
	Debt       int64
}

type MutationResult struct {
	ID     uint64
	Owner  uuid.UUID
	Caller uuid.UUID
	Amount int64
}

type CloseResult struct {
	ID         uint64
	Owner      uuid.UUID
	Collateral int64
	DebtBurned int64
}

type CapitalizeResult struct {
	ID            uint64
	Owner         uuid.UUID
	Caller        uuid.UUID
	Repaid        int64
	Equivalent    int64
	CallerReward  int64
	SystemReward  int64
	CollateralOut int64 // Equivalent + CallerReward + SystemReward
}

type CollapseResult struct {
	ID           uint64
	Owner        uuid.UUID
	Caller       uuid.UUID
	DebtBurned   int64
	PaidToCaller int64
	SystemReward int64 // residual collateral accrued to the protocol
	Collateral   int64 // total collateral released from the position
}

type FeesResult struct {
	Beneficiary    uuid.UUID
	CollateralPaid int64
	DebtPaid       int64
}

// --- Issuance policy ---

// SelectIssuanceRatio implements the three-tier issuance limit: when the
// global collateralization sits at or above target (vacuously true with no
// debt outstanding), new positions may open down to the base ratio; below
// target, new debt must be issued at or above the target, pulling the
// average back up. The boundary is closed on the permissive side.
func SelectIssuanceRatio(globalRatio int64, p settings.Params) int64 {
	if globalRatio >= p.TargetRatio {
		return p.BaseRatio
	}
	return p.TargetRatio
}

// --- Operations ---

// Open creates a position with the attached collateral, issuing
// requestedDebt debt tokens to the caller. The caller's bank balance funds
// the collateral.
func (l *Ledger) Open(caller uuid.UUID, collateral, requestedDebt int64) (*OpenResult, error) {
	p := l.settings.Current()

	if collateral < p.MinDeposit {
		return nil, fmt.Errorf("%w: collateral %d below minimum deposit %d",
			ErrBounds, collateral, p.MinDeposit)
	}
	if requestedDebt < 0 {
		return nil, fmt.Errorf("%w: negative debt request %d", ErrBounds, requestedDebt)
	}
	if l.bank.BalanceOf(caller) < collateral {
		return nil, fmt.Errorf("%w: reserve balance %d below attached collateral %d",
			ErrBounds, l.bank.BalanceOf(caller), collateral)
	}

	rate, scale, err := l.oracle.CurrentPrice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrState, err)
	}

	if requestedDebt > 0 {
		issuanceRatio := SelectIssuanceRatio(l.globalRatio(rate, scale), p)
		maxDebt, derr := fixed.DebtForCollateral(rate, scale, collateral, issuanceRatio)
		if derr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBounds, derr)
		}
		if requestedDebt > maxDebt {
			return nil, fmt.Errorf("%w: requested debt %d exceeds maximum %d at ratio %d",
				ErrBounds, requestedDebt, maxDebt, issuanceRatio)
		}
	}

	// Committed: no failure past this point may leave partial state.
	mustNot(l.bank.Debit(caller, collateral))

	id := l.nextID
	l.nextID++

	mustNot(l.registry.Mint(caller, id))
	if requestedDebt > 0 {
		mustNot(l.token.Mint(caller, requestedDebt))
	}

	l.positions[id] = &Position{
		ID:         id,
		Collateral: collateral,
		DebtIssued: requestedDebt,
		Version:    1,
	}
	l.globalCollateral += collateral

	return &OpenResult{ID: id, Owner: caller, Collateral: collateral, Debt: requestedDebt}, nil
}

// AddCollateral tops up a position's collateral. Callable by anyone — the
// operation strictly improves the position's ratio.
func (l *Ledger) AddCollateral(caller uuid.UUID, id uint64, amount int64) (*MutationResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrBounds, amount)
	}
	if l.bank.BalanceOf(caller) < amount {
		return nil, fmt.Errorf("%w: reserve balance %d below %d",
			ErrBounds, l.bank.BalanceOf(caller), amount)
	}

	mustNot(l.bank.Debit(caller, amount))
	pos.Collateral += amount
	pos.Version++
	l.globalCollateral += amount

	return &MutationResult{ID: id, Owner: l.ownerOf(id), Caller: caller, Amount: amount}, nil
}

// RepayDebt burns debt tokens from the caller against a position's
// outstanding debt. Callable by anyone.
func (l *Ledger) RepayDebt(caller uuid.UUID, id uint64, amount int64) (*MutationResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrBounds, amount)
	}
	if amount > pos.DebtIssued {
		return nil, fmt.Errorf("%w: repayment %d exceeds outstanding debt %d",
			ErrBounds, amount, pos.DebtIssued)
	}
	if l.token.BalanceOf(caller) < amount {
		return nil, fmt.Errorf("%w: token balance %d below %d",
			ErrBounds, l.token.BalanceOf(caller), amount)
	}

	mustNot(l.token.BurnFrom(caller, amount))
	pos.DebtIssued -= amount
	pos.Version++

	return &MutationResult{ID: id, Owner: l.ownerOf(id), Caller: caller, Amount: amount}, nil
}

// WithdrawCollateral releases collateral to the caller. Owner or approved
// delegate only; the position must stay at or above the target ratio and may
// not be left with sub-minimum residual collateral.
func (l *Ledger) WithdrawCollateral(caller uuid.UUID, id uint64, amount int64) (*MutationResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}
	if !l.registry.IsOwnerOrApproved(caller, id) {
		return nil, fmt.Errorf("%w: %s may not withdraw from position %d", ErrUnauthorized, caller, id)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrBounds, amount)
	}
	if amount > pos.Collateral {
		return nil, fmt.Errorf("%w: withdrawal %d exceeds collateral %d",
			ErrBounds, amount, pos.Collateral)
	}

	p := l.settings.Current()
	remaining := pos.Collateral - amount
	if remaining != 0 && remaining < p.MinDeposit {
		return nil, fmt.Errorf("%w: residual collateral %d below minimum deposit %d",
			ErrBounds, remaining, p.MinDeposit)
	}

	if pos.DebtIssued > 0 {
		rate, scale, oerr := l.oracle.CurrentPrice()
		if oerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrState, oerr)
		}
		// Withdrawals are always held to the target ratio regardless of the
		// branch in force at creation.
		after := fixed.Ratio(rate, scale, remaining, pos.DebtIssued)
		if after < p.TargetRatio {
			return nil, fmt.Errorf("%w: resulting ratio %d below target %d",
				ErrBounds, after, p.TargetRatio)
		}
	}

	pos.Collateral = remaining
	pos.Version++
	l.globalCollateral -= amount
	l.bank.Credit(caller, amount)

	return &MutationResult{ID: id, Owner: l.ownerOf(id), Caller: caller, Amount: amount}, nil
}

// WithdrawDebt issues additional debt tokens against a position. Owner or
// approved delegate only; held to the target ratio.
func (l *Ledger) WithdrawDebt(caller uuid.UUID, id uint64, amount int64) (*MutationResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}
	if !l.registry.IsOwnerOrApproved(caller, id) {
		return nil, fmt.Errorf("%w: %s may not issue from position %d", ErrUnauthorized, caller, id)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrBounds, amount)
	}

	rate, scale, oerr := l.oracle.CurrentPrice()
	if oerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrState, oerr)
	}

	p := l.settings.Current()
	newDebt := pos.DebtIssued + amount
	after := fixed.Ratio(rate, scale, pos.Collateral, newDebt)
	if after < p.TargetRatio {
		return nil, fmt.Errorf("%w: resulting ratio %d below target %d",
			ErrBounds, after, p.TargetRatio)
	}

	mustNot(l.token.Mint(caller, amount))
	pos.DebtIssued = newDebt
	pos.Version++

	return &MutationResult{ID: id, Owner: l.ownerOf(id), Caller: caller, Amount: amount}, nil
}

// Close burns the position's full outstanding debt from the caller, returns
// all collateral, and deletes the record. Owner only.
func (l *Ledger) Close(caller uuid.UUID, id uint64) (*CloseResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}
	owner, _ := l.registry.OwnerOf(id)
	if owner != caller {
		return nil, fmt.Errorf("%w: %s does not own position %d", ErrUnauthorized, caller, id)
	}
	if pos.DebtIssued > 0 && l.token.BalanceOf(caller) < pos.DebtIssued {
		return nil, fmt.Errorf("%w: token balance %d below outstanding debt %d",
			ErrBounds, l.token.BalanceOf(caller), pos.DebtIssued)
	}

	collateral := pos.Collateral
	debt := pos.DebtIssued

	if debt > 0 {
		mustNot(l.token.BurnFrom(caller, debt))
	}
	l.bank.Credit(caller, collateral)
	l.globalCollateral -= collateral
	delete(l.positions, id)
	mustNot(l.registry.Burn(id))

	return &CloseResult{ID: id, Owner: owner, Collateral: collateral, DebtBurned: debt}, nil
}

// Capitalize repays part of a toxic position's debt from the caller's token
// balance and pays out the collateral equivalent plus the caller's reward
// leg; the protocol's leg accrues to the system collateral reward.
func (l *Ledger) Capitalize(caller uuid.UUID, id uint64, repay int64) (*CapitalizeResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}

	rate, scale, oerr := l.oracle.CurrentPrice()
	if oerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrState, oerr)
	}

	p := l.settings.Current()
	ratio := fixed.Ratio(rate, scale, pos.Collateral, pos.DebtIssued)
	if ratio >= p.CapitalizationFloorRatio || ratio >= p.CapitalizationCeilingRatio {
		return nil, fmt.Errorf("%w: position %d ratio %d not in the toxic band (floor %d)",
			ErrState, id, ratio, p.CapitalizationFloorRatio)
	}

	if repay < p.RepayDustFloor {
		return nil, fmt.Errorf("%w: repayment %d below dust floor %d",
			ErrBounds, repay, p.RepayDustFloor)
	}
	if repay > pos.DebtIssued {
		return nil, fmt.Errorf("%w: repayment %d exceeds outstanding debt %d",
			ErrBounds, repay, pos.DebtIssued)
	}
	if l.token.BalanceOf(caller) < repay {
		return nil, fmt.Errorf("%w: token balance %d below repayment %d",
			ErrBounds, l.token.BalanceOf(caller), repay)
	}

	equivalent, callerReward, sysReward, perr := l.payoutLegs(rate, scale, repay, p)
	if perr != nil {
		return nil, perr
	}
	out := equivalent + callerReward + sysReward

	if out > pos.Collateral {
		return nil, fmt.Errorf("%w: payout %d exceeds position collateral %d",
			ErrBounds, out, pos.Collateral)
	}
	// A position must keep collateral while debt is outstanding; only a full
	// repayment may take the last of it.
	if out == pos.Collateral && repay < pos.DebtIssued {
		return nil, fmt.Errorf("%w: payout %d would strip all collateral with %d debt outstanding",
			ErrBounds, out, pos.DebtIssued-repay)
	}

	after := fixed.Ratio(rate, scale, pos.Collateral-out, pos.DebtIssued-repay)
	if after > p.CapitalizationCeilingRatio {
		return nil, fmt.Errorf("%w: resulting ratio %d above capitalization ceiling %d",
			ErrBounds, after, p.CapitalizationCeilingRatio)
	}

	owner := l.ownerOf(id)

	mustNot(l.token.BurnFrom(caller, repay))
	pos.Collateral -= out
	pos.DebtIssued -= repay
	pos.Version++
	l.globalCollateral -= out
	l.bank.Credit(caller, equivalent+callerReward)
	l.sysCollateralReward += sysReward

	return &CapitalizeResult{
		ID:            id,
		Owner:         owner,
		Caller:        caller,
		Repaid:        repay,
		Equivalent:    equivalent,
		CallerReward:  callerReward,
		SystemReward:  sysReward,
		CollateralOut: out,
	}, nil
}

// CapitalizeMax computes and applies the largest valid repayment in one
// call: the amount that brings the position to the capitalization ceiling,
// clamped by the caller's token balance and the position's collateral.
func (l *Ledger) CapitalizeMax(caller uuid.UUID, id uint64) (*CapitalizeResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}

	rate, scale, oerr := l.oracle.CurrentPrice()
	if oerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrState, oerr)
	}

	p := l.settings.Current()
	candidate := maxRepayAmount(rate, scale, pos.Collateral, pos.DebtIssued, p)
	if bal := l.token.BalanceOf(caller); candidate > bal {
		candidate = bal
	}
	if candidate > pos.DebtIssued {
		candidate = pos.DebtIssued
	}
	if candidate < p.RepayDustFloor {
		return nil, fmt.Errorf("%w: maximum repayment %d below dust floor %d",
			ErrBounds, candidate, p.RepayDustFloor)
	}

	// Floor rounding in the payout legs can leave the analytic candidate
	// above the ceiling. Binary-search the largest repayment that passes the
	// same checks Capitalize applies.
	best := int64(-1)
	lo, hi := p.RepayDustFloor, candidate
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if l.repayFits(rate, scale, pos, mid, p) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best < p.RepayDustFloor {
		return nil, fmt.Errorf("%w: no repayment in [%d, %d] satisfies the ceiling",
			ErrBounds, p.RepayDustFloor, candidate)
	}
	return l.Capitalize(caller, id, best)
}

// repayFits reports whether a repayment passes the payout and ceiling checks
// without mutating anything.
func (l *Ledger) repayFits(rate, scale int64, pos *Position, repay int64, p settings.Params) bool {
	equivalent, callerReward, sysReward, err := l.payoutLegs(rate, scale, repay, p)
	if err != nil {
		return false
	}
	out := equivalent + callerReward + sysReward
	if out > pos.Collateral {
		return false
	}
	if out == pos.Collateral && repay < pos.DebtIssued {
		return false
	}
	after := fixed.Ratio(rate, scale, pos.Collateral-out, pos.DebtIssued-repay)
	return after <= p.CapitalizationCeilingRatio
}

// maxRepayAmount solves for the repayment that moves the position to the
// capitalization ceiling. When the position is so far underwater that
// repayment lowers the ratio (collateral value below debt * (1 + fee)), the
// bound is the collateral itself.
func maxRepayAmount(rate, scale, collateral, debt int64, p settings.Params) int64 {
	ceiling := p.CapitalizationCeilingRatio
	feeFactor := fixed.RatioScale + p.TotalFeeRate // 1 + fee, in ppm

	// value = rate * collateral * RatioScale (debt units, ppm-scaled, scaled
	// additionally by `scale` to stay exact).
	value := new(big.Int).Mul(big.NewInt(rate), big.NewInt(collateral))
	value.Mul(value, big.NewInt(fixed.RatioScale))

	debtSide := new(big.Int).Mul(big.NewInt(feeFactor), big.NewInt(debt))
	debtSide.Mul(debtSide, big.NewInt(scale))

	if value.Cmp(debtSide) <= 0 {
		// Deep underwater: repayment cannot raise the ratio; the payout is
		// bounded by the position's collateral.
		// repay_max = collateral * rate * RatioScale / (feeFactor * scale)
		den := new(big.Int).Mul(big.NewInt(feeFactor), big.NewInt(scale))
		value.Quo(value, den)
		if !value.IsInt64() {
			return 0
		}
		return value.Int64()
	}

	// repay = (ceiling*debt*scale - rate*collateral*RatioScale) / ((ceiling - feeFactor) * scale)
	num := new(big.Int).Mul(big.NewInt(ceiling), big.NewInt(debt))
	num.Mul(num, big.NewInt(scale))
	sub := new(big.Int).Mul(big.NewInt(rate), big.NewInt(collateral))
	sub.Mul(sub, big.NewInt(fixed.RatioScale))
	num.Sub(num, sub)

	den := new(big.Int).Mul(big.NewInt(ceiling-feeFactor), big.NewInt(scale))
	if den.Sign() <= 0 || num.Sign() <= 0 {
		return 0
	}
	num.Quo(num, den)
	if !num.IsInt64() {
		return 0
	}
	repay := num.Int64()
	if repay > debt {
		repay = debt
	}
	return repay
}

// CollapseDust fully liquidates a negligible position: collateral at or
// below the minimum deposit with a sub-threshold ratio. The caller burns the
// outstanding debt and receives the collateral equivalent plus the caller
// reward leg; residual collateral accrues to the system collateral reward so
// the global counter stays conserved.
func (l *Ledger) CollapseDust(caller uuid.UUID, id uint64) (*CollapseResult, error) {
	pos, err := l.active(id)
	if err != nil {
		return nil, err
	}

	rate, scale, oerr := l.oracle.CurrentPrice()
	if oerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrState, oerr)
	}

	p := l.settings.Current()
	if pos.Collateral > p.MinDeposit {
		return nil, fmt.Errorf("%w: collateral %d above minimum deposit %d — capitalize instead",
			ErrState, pos.Collateral, p.MinDeposit)
	}
	ratio := fixed.Ratio(rate, scale, pos.Collateral, pos.DebtIssued)
	if ratio >= p.CollapseThresholdRatio {
		return nil, fmt.Errorf("%w: ratio %d not below collapse threshold %d",
			ErrState, ratio, p.CollapseThresholdRatio)
	}

	debt := pos.DebtIssued
	if l.token.BalanceOf(caller) < debt {
		return nil, fmt.Errorf("%w: token balance %d below outstanding debt %d",
			ErrBounds, l.token.BalanceOf(caller), debt)
	}

	equivalent, callerReward, _, perr := l.payoutLegs(rate, scale, debt, p)
	if perr != nil {
		return nil, perr
	}

	collateral := pos.Collateral
	paid := equivalent + callerReward
	if paid > collateral {
		paid = collateral
	}
	residual := collateral - paid

	owner := l.ownerOf(id)

	if debt > 0 {
		mustNot(l.token.BurnFrom(caller, debt))
	}
	l.bank.Credit(caller, paid)
	l.sysCollateralReward += residual
	l.globalCollateral -= collateral
	delete(l.positions, id)
	mustNot(l.registry.Burn(id))

	return &CollapseResult{
		ID:           id,
		Owner:        owner,
		Caller:       caller,
		DebtBurned:   debt,
		PaidToCaller: paid,
		SystemReward: residual,
		Collateral:   collateral,
	}, nil
}

// Transfer reassigns position ownership through the registry.
func (l *Ledger) Transfer(caller, to uuid.UUID, id uint64) error {
	if _, err := l.active(id); err != nil {
		return err
	}
	if !l.registry.IsOwnerOrApproved(caller, id) {
		return fmt.Errorf("%w: %s may not transfer position %d", ErrUnauthorized, caller, id)
	}
	if to == uuid.Nil {
		return fmt.Errorf("%w: transfer to nil owner", ErrBounds)
	}
	owner, _ := l.registry.OwnerOf(id)
	if err := l.registry.Transfer(owner, to, id); err != nil {
		return fmt.Errorf("%w: %v", ErrState, err)
	}
	return nil
}

// AccrueDebtReward moves debt tokens from the payer to the protocol's
// reward balance. Used by the matching services to remit fees denominated in
// the debt token.
func (l *Ledger) AccrueDebtReward(payer uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrBounds, amount)
	}
	if l.token.BalanceOf(payer) < amount {
		return fmt.Errorf("%w: token balance %d below %d",
			ErrBounds, l.token.BalanceOf(payer), amount)
	}
	mustNot(l.token.Transfer(payer, l.systemAccount, amount))
	l.sysDebtReward += amount
	return nil
}

// WithdrawFees pays both accrued system reward balances to the beneficiary
// and zeroes the counters. Administrative role only. Individual positions
// are untouched.
func (l *Ledger) WithdrawFees(caller, beneficiary uuid.UUID) (*FeesResult, error) {
	if !l.settings.IsAdmin(caller) {
		return nil, fmt.Errorf("%w: %s does not hold the admin role", ErrUnauthorized, caller)
	}
	if beneficiary == uuid.Nil {
		return nil, fmt.Errorf("%w: beneficiary must be set", ErrBounds)
	}
	if l.sysCollateralReward == 0 && l.sysDebtReward == 0 {
		return nil, fmt.Errorf("%w: no accrued rewards to withdraw", ErrState)
	}

	res := &FeesResult{
		Beneficiary:    beneficiary,
		CollateralPaid: l.sysCollateralReward,
		DebtPaid:       l.sysDebtReward,
	}

	if res.CollateralPaid > 0 {
		l.bank.Credit(beneficiary, res.CollateralPaid)
		l.sysCollateralReward = 0
	}
	if res.DebtPaid > 0 {
		mustNot(l.token.Transfer(l.systemAccount, beneficiary, res.DebtPaid))
		l.sysDebtReward = 0
	}

	return res, nil
}

// --- Internal helpers ---

// payoutLegs computes the collateral equivalent of a repayment plus the two
// reward legs. With the default 50% system share the legs are equal.
func (l *Ledger) payoutLegs(rate, scale, repay int64, p settings.Params) (equivalent, callerLeg, sysLeg int64, err error) {
	equivalent, err = fixed.CollateralForDebt(rate, scale, repay)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrBounds, err)
	}
	total := fixed.ApplyRate(equivalent, p.TotalFeeRate)
	sysLeg = fixed.ApplyRate(total, p.SystemFeeShare)
	callerLeg = total - sysLeg
	return equivalent, callerLeg, sysLeg, nil
}

func (l *Ledger) active(id uint64) (*Position, error) {
	pos, ok := l.positions[id]
	if !ok || pos.IsClosed() {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return pos, nil
}

func (l *Ledger) ownerOf(id uint64) uuid.UUID {
	owner, _ := l.registry.OwnerOf(id)
	return owner
}

func (l *Ledger) globalRatio(rate, scale int64) int64 {
	return fixed.Ratio(rate, scale, l.globalCollateral, l.token.TotalSupply())
}

// mustNot panics on collaborator failures that occur after validation has
// passed. Reaching one means in-memory state is already inconsistent and
// continuing would corrupt the ledger.
func mustNot(err error) {
	if err != nil {
		panic(fmt.Sprintf("FATAL: ledger state corrupted: %v", err))
	}
}
