package vault_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"DebtLedger/internal/fixed"
	"DebtLedger/internal/oracle"
	"DebtLedger/internal/registry"
	"DebtLedger/internal/settings"
	"DebtLedger/internal/token"
	"DebtLedger/internal/vault"
)

var adminID = uuid.MustParse("00000000-0000-0000-0000-00000000ad01")

// Price fixture: 1 reserve unit = 2000 debt-token units.
const (
	testRate  = 2_000_000_000
	testScale = 1_000_000

	oneReserve = 1_000_000 // 1.0 at AmountScale
)

type fixture struct {
	ledger *vault.Ledger
	prices *oracle.Static
	token  *token.InMemoryToken
	bank   *token.InMemoryBank
	reg    *registry.InMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	provider, err := settings.NewProvider(settings.DefaultParams(), adminID)
	if err != nil {
		t.Fatalf("settings provider: %v", err)
	}

	f := &fixture{
		prices: oracle.NewStatic(testRate, testScale),
		token:  token.NewInMemoryToken(),
		bank:   token.NewInMemoryBank(),
		reg:    registry.NewInMemory(),
	}
	f.ledger = vault.NewLedger(f.prices, f.token, f.bank, f.reg, provider)
	return f
}

func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()
	if err := f.ledger.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

// ============================================================================
// Test: SelectIssuanceRatio
// ============================================================================

func TestSelectIssuanceRatio(t *testing.T) {
	p := settings.DefaultParams()

	// At or above target: base ratio applies. The boundary is inclusive.
	if got := vault.SelectIssuanceRatio(p.TargetRatio, p); got != p.BaseRatio {
		t.Errorf("at target: got %d, want base %d", got, p.BaseRatio)
	}
	if got := vault.SelectIssuanceRatio(fixed.RatioInfinite, p); got != p.BaseRatio {
		t.Errorf("no debt outstanding: got %d, want base %d", got, p.BaseRatio)
	}

	// Below target: new issuance held to target.
	if got := vault.SelectIssuanceRatio(p.TargetRatio-1, p); got != p.TargetRatio {
		t.Errorf("below target: got %d, want target %d", got, p.TargetRatio)
	}
}

// ============================================================================
// Test: Open
// ============================================================================

func TestOpen_IssuesDebtAtBaseRatio(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, 2*oneReserve)

	// 1 reserve unit at 2000/unit supports 1739.13 debt units at 115%.
	res, err := f.ledger.Open(owner, oneReserve, 1_000_000_000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if res.ID != 1 {
		t.Errorf("first position id: got %d, want 1", res.ID)
	}
	if res.Owner != owner {
		t.Errorf("owner: got %s, want %s", res.Owner, owner)
	}
	if res.Collateral != oneReserve || res.Debt != 1_000_000_000 {
		t.Errorf("result amounts: got (%d, %d)", res.Collateral, res.Debt)
	}

	if got := f.token.BalanceOf(owner); got != 1_000_000_000 {
		t.Errorf("minted tokens: got %d, want 1_000_000_000", got)
	}
	if got := f.bank.BalanceOf(owner); got != oneReserve {
		t.Errorf("bank balance after lock: got %d, want %d", got, oneReserve)
	}
	if got := f.ledger.GlobalCollateral(); got != oneReserve {
		t.Errorf("global collateral: got %d, want %d", got, oneReserve)
	}

	regOwner, ok := f.reg.OwnerOf(res.ID)
	if !ok || regOwner != owner {
		t.Errorf("registry owner: got (%s, %v)", regOwner, ok)
	}

	f.checkInvariants(t)
}

func TestOpen_ZeroDebt(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, err := f.ledger.Open(owner, oneReserve, 0)
	if err != nil {
		t.Fatalf("Open with zero debt: %v", err)
	}
	if res.Debt != 0 {
		t.Errorf("debt: got %d, want 0", res.Debt)
	}
	if got := f.token.TotalSupply(); got != 0 {
		t.Errorf("supply: got %d, want 0", got)
	}
	f.checkInvariants(t)
}

func TestOpen_BelowMinimumDeposit_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	_, err := f.ledger.Open(owner, 49_999, 0)
	if !errors.Is(err, vault.ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
	if got := f.bank.BalanceOf(owner); got != oneReserve {
		t.Errorf("rejection must not move funds: bank=%d", got)
	}
}

func TestOpen_InsufficientReserve_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, 100_000)

	_, err := f.ledger.Open(owner, 200_000, 0)
	if !errors.Is(err, vault.ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

func TestOpen_DebtAboveBaseLimit_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	// Base-ratio limit for 1 reserve unit is 1_739_130_434.
	_, err := f.ledger.Open(owner, oneReserve, 1_800_000_000)
	if !errors.Is(err, vault.ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
	if got := f.token.TotalSupply(); got != 0 {
		t.Errorf("rejection must not mint: supply=%d", got)
	}
}

func TestOpen_BelowTargetGlobalRatio_HeldToTarget(t *testing.T) {
	f := newFixture(t)
	first := uuid.New()
	second := uuid.New()
	f.bank.Credit(first, oneReserve)
	f.bank.Credit(second, oneReserve)

	// First position issues near the base limit, dragging the global ratio
	// to ~117.6% — below target.
	if _, err := f.ledger.Open(first, oneReserve, 1_700_000_000); err != nil {
		t.Fatalf("first open: %v", err)
	}
	ratio, err := f.ledger.GlobalRatio()
	if err != nil {
		t.Fatalf("GlobalRatio: %v", err)
	}
	if ratio >= settings.DefaultParams().TargetRatio {
		t.Fatalf("setup: global ratio %d should be below target", ratio)
	}

	// Target-ratio limit for 1 reserve unit is 1_333_333_333.
	if _, err := f.ledger.Open(second, oneReserve, 1_400_000_000); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("above target limit: got %v, want ErrBounds", err)
	}
	if _, err := f.ledger.Open(second, oneReserve, 1_333_333_333); err != nil {
		t.Errorf("at target limit: %v", err)
	}
	f.checkInvariants(t)
}

// ============================================================================
// Test: AddCollateral / RepayDebt
// ============================================================================

func TestAddCollateral_AnyCaller(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	other := uuid.New()
	f.bank.Credit(owner, oneReserve)
	f.bank.Credit(other, oneReserve)

	res, err := f.ledger.Open(owner, oneReserve, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Topping up someone else's position is allowed.
	mut, err := f.ledger.AddCollateral(other, res.ID, 250_000)
	if err != nil {
		t.Fatalf("AddCollateral: %v", err)
	}
	if mut.Caller != other || mut.Owner != owner || mut.Amount != 250_000 {
		t.Errorf("mutation result: %+v", mut)
	}

	pos, err := f.ledger.Get(res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pos.Collateral != oneReserve+250_000 {
		t.Errorf("collateral: got %d", pos.Collateral)
	}
	if pos.Version != 2 {
		t.Errorf("version: got %d, want 2", pos.Version)
	}
	if got := f.bank.BalanceOf(other); got != 750_000 {
		t.Errorf("caller bank: got %d, want 750_000", got)
	}
	f.checkInvariants(t)
}

func TestRepayDebt(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, err := f.ledger.Open(owner, oneReserve, 1_000_000_000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := f.ledger.RepayDebt(owner, res.ID, 1_000_000_001); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("over-repayment: got %v, want ErrBounds", err)
	}

	if _, err := f.ledger.RepayDebt(owner, res.ID, 400_000_000); err != nil {
		t.Fatalf("RepayDebt: %v", err)
	}

	pos, _ := f.ledger.Get(res.ID)
	if pos.DebtIssued != 600_000_000 {
		t.Errorf("debt after repay: got %d, want 600_000_000", pos.DebtIssued)
	}
	if got := f.token.BalanceOf(owner); got != 600_000_000 {
		t.Errorf("token balance: got %d, want 600_000_000", got)
	}
	f.checkInvariants(t)
}

// ============================================================================
// Test: WithdrawCollateral
// ============================================================================

func TestWithdrawCollateral_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	stranger := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 0)

	if _, err := f.ledger.WithdrawCollateral(stranger, res.ID, 100_000); !errors.Is(err, vault.ErrUnauthorized) {
		t.Errorf("stranger withdraw: got %v, want ErrUnauthorized", err)
	}
}

func TestWithdrawCollateral_ResidualRule(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 0)

	// Leaving 49_999 behind violates the minimum-deposit residual rule.
	if _, err := f.ledger.WithdrawCollateral(owner, res.ID, oneReserve-49_999); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("sub-minimum residual: got %v, want ErrBounds", err)
	}

	// A residual of exactly zero is allowed.
	if _, err := f.ledger.WithdrawCollateral(owner, res.ID, oneReserve); err != nil {
		t.Fatalf("full withdrawal: %v", err)
	}
	if got := f.bank.BalanceOf(owner); got != oneReserve {
		t.Errorf("bank after withdrawal: got %d, want %d", got, oneReserve)
	}
	f.checkInvariants(t)
}

func TestWithdrawCollateral_HeldToTargetRatio(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	// 1000 debt units against 1 reserve unit is 200%; target collateral for
	// that debt is 0.75 units, so at most 0.25 may leave.
	res, _ := f.ledger.Open(owner, oneReserve, 1_000_000_000)

	if _, err := f.ledger.WithdrawCollateral(owner, res.ID, 250_001); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("ratio-breaking withdrawal: got %v, want ErrBounds", err)
	}
	if _, err := f.ledger.WithdrawCollateral(owner, res.ID, 250_000); err != nil {
		t.Fatalf("withdrawal to exactly target: %v", err)
	}

	ratio, err := f.ledger.Ratio(res.ID)
	if err != nil {
		t.Fatalf("Ratio: %v", err)
	}
	if ratio != settings.DefaultParams().TargetRatio {
		t.Errorf("ratio after withdrawal: got %d, want target", ratio)
	}
	f.checkInvariants(t)
}

func TestWithdrawCollateral_ApprovedDelegate(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	delegate := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 0)
	if err := f.reg.Approve(owner, delegate, res.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if _, err := f.ledger.WithdrawCollateral(delegate, res.ID, oneReserve); err != nil {
		t.Fatalf("delegate withdrawal: %v", err)
	}
	// The delegate receives the funds they withdrew.
	if got := f.bank.BalanceOf(delegate); got != oneReserve {
		t.Errorf("delegate bank: got %d, want %d", got, oneReserve)
	}
}

// ============================================================================
// Test: WithdrawDebt
// ============================================================================

func TestWithdrawDebt_HeldToTargetRatio(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 1_000_000_000)

	// Target-ratio limit for 1 reserve unit is 1_333_333_333 total debt.
	if _, err := f.ledger.WithdrawDebt(owner, res.ID, 333_333_334); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("above target: got %v, want ErrBounds", err)
	}
	if _, err := f.ledger.WithdrawDebt(owner, res.ID, 333_333_333); err != nil {
		t.Fatalf("WithdrawDebt: %v", err)
	}

	if got := f.token.BalanceOf(owner); got != 1_333_333_333 {
		t.Errorf("token balance: got %d, want 1_333_333_333", got)
	}
	f.checkInvariants(t)
}

func TestWithdrawDebt_Unauthorized(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	stranger := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 0)

	if _, err := f.ledger.WithdrawDebt(stranger, res.ID, 100_000); !errors.Is(err, vault.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestMaxWithdrawableDebt_MatchesOperation(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 1_000_000_000)

	free, err := f.ledger.MaxWithdrawableDebt(res.ID)
	if err != nil {
		t.Fatalf("MaxWithdrawableDebt: %v", err)
	}
	if free != 333_333_333 {
		t.Errorf("free debt: got %d, want 333_333_333", free)
	}
	if _, err := f.ledger.WithdrawDebt(owner, res.ID, free); err != nil {
		t.Errorf("view answer rejected by operation: %v", err)
	}
}

func TestGlobalWithdrawableCollateral(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, 2*oneReserve)

	// No debt outstanding: the whole pool is headroom.
	f.ledger.Open(owner, oneReserve, 0)
	got, err := f.ledger.GlobalWithdrawableCollateral()
	if err != nil {
		t.Fatalf("GlobalWithdrawableCollateral: %v", err)
	}
	if got != oneReserve {
		t.Errorf("no debt: got %d, want %d", got, oneReserve)
	}

	// 1.3 debt units against 2.0 collateral at 2000/unit needs 0.975 at the
	// 150% target, leaving 1.025 free.
	if _, err := f.ledger.Open(owner, oneReserve, 1_300_000_000); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err = f.ledger.GlobalWithdrawableCollateral()
	if err != nil {
		t.Fatalf("GlobalWithdrawableCollateral: %v", err)
	}
	if got != 1_025_000 {
		t.Errorf("above target: got %d, want 1_025_000", got)
	}
	f.checkInvariants(t)
}

// When the global ratio sits below target the pool has no headroom at all,
// even while individual positions remain above it. Summing per-position
// surpluses would report free collateral here; the view must not.
func TestGlobalWithdrawableCollateral_BelowTarget(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, 2*oneReserve)

	f.ledger.Open(owner, oneReserve, 1_300_000_000)
	f.ledger.Open(owner, oneReserve, 400_000_000)

	// At 1200/unit the pool ratio is 2.4/1.7 = 141%, below the 150% target.
	// The second position alone is at 300%.
	f.prices.Rate = 1_200_000_000

	got, err := f.ledger.GlobalWithdrawableCollateral()
	if err != nil {
		t.Fatalf("GlobalWithdrawableCollateral: %v", err)
	}
	if got != 0 {
		t.Errorf("below target: got %d, want 0", got)
	}
	f.checkInvariants(t)
}

// ============================================================================
// Test: Close
// ============================================================================

func TestClose(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 1_000_000_000)

	closed, err := f.ledger.Close(owner, res.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Collateral != oneReserve || closed.DebtBurned != 1_000_000_000 {
		t.Errorf("close result: %+v", closed)
	}

	if got := f.bank.BalanceOf(owner); got != oneReserve {
		t.Errorf("bank after close: got %d, want %d", got, oneReserve)
	}
	if got := f.token.TotalSupply(); got != 0 {
		t.Errorf("supply after close: got %d, want 0", got)
	}
	if got := f.ledger.GlobalCollateral(); got != 0 {
		t.Errorf("global collateral after close: got %d, want 0", got)
	}
	if _, err := f.ledger.Get(res.ID); !errors.Is(err, vault.ErrNotFound) {
		t.Errorf("closed position lookup: got %v, want ErrNotFound", err)
	}
	f.checkInvariants(t)
}

func TestClose_NotOwner_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	stranger := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 0)

	if _, err := f.ledger.Close(stranger, res.ID); !errors.Is(err, vault.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestClose_InsufficientTokens_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	payee := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 1_000_000_000)

	// Owner gives away part of the issuance; close now needs tokens they
	// no longer hold.
	if err := f.token.Transfer(owner, payee, 500_000_000); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := f.ledger.Close(owner, res.ID); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

// ============================================================================
// Test: Capitalize
// ============================================================================

// toxicFixture opens a position that falls into the toxic band after a price
// drop, plus a funded liquidator. Returns the toxic position id.
func toxicFixture(t *testing.T, f *fixture, liquidator uuid.UUID, liquidatorDebt int64) uint64 {
	t.Helper()

	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)
	f.bank.Credit(liquidator, oneReserve)

	// ~153.8% at the opening price.
	res, err := f.ledger.Open(owner, oneReserve, 1_300_000_000)
	if err != nil {
		t.Fatalf("toxic position open: %v", err)
	}
	if _, err := f.ledger.Open(liquidator, oneReserve, liquidatorDebt); err != nil {
		t.Fatalf("liquidator open: %v", err)
	}

	// Price drops to 1600/unit: the first position sits at ~123%, inside the
	// toxic band; the liquidator stays healthy.
	f.prices.Rate = 1_600_000_000
	return res.ID
}

func TestCapitalize_PartialRepayment(t *testing.T) {
	f := newFixture(t)
	liquidator := uuid.New()
	id := toxicFixture(t, f, liquidator, 405_000_000)

	res, err := f.ledger.Capitalize(liquidator, id, 400_000_000)
	if err != nil {
		t.Fatalf("Capitalize: %v", err)
	}

	// 400 debt units at 1600/unit = 0.25 reserve; 3% reward split 50/50.
	want := &vault.CapitalizeResult{
		ID:            id,
		Owner:         res.Owner,
		Caller:        liquidator,
		Repaid:        400_000_000,
		Equivalent:    250_000,
		CallerReward:  3_750,
		SystemReward:  3_750,
		CollateralOut: 257_500,
	}
	if !reflect.DeepEqual(res, want) {
		t.Errorf("result:\n got %+v\nwant %+v", res, want)
	}

	pos, _ := f.ledger.Get(id)
	if pos.Collateral != oneReserve-257_500 || pos.DebtIssued != 900_000_000 {
		t.Errorf("position after capitalize: %+v", pos)
	}

	if got := f.token.BalanceOf(liquidator); got != 5_000_000 {
		t.Errorf("liquidator tokens after burn: got %d, want 5_000_000", got)
	}
	// Capitalizing pays the equivalent plus the caller's reward leg.
	if got := f.bank.BalanceOf(liquidator); got != 253_750 {
		t.Errorf("liquidator bank: got %d, want 253_750", got)
	}

	collateralReward, debtReward := f.ledger.SystemRewards()
	if collateralReward != 3_750 || debtReward != 0 {
		t.Errorf("system rewards: got (%d, %d)", collateralReward, debtReward)
	}
	f.checkInvariants(t)
}

func TestCapitalize_HealthyPosition_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	// 200% — well above the capitalization floor.
	res, _ := f.ledger.Open(owner, oneReserve, 1_000_000_000)

	if _, err := f.ledger.Capitalize(owner, res.ID, 200_000); !errors.Is(err, vault.ErrState) {
		t.Errorf("got %v, want ErrState", err)
	}
}

func TestCapitalize_BelowDustFloor_Rejected(t *testing.T) {
	f := newFixture(t)
	liquidator := uuid.New()
	id := toxicFixture(t, f, liquidator, 405_000_000)

	if _, err := f.ledger.Capitalize(liquidator, id, 99_999); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

func TestCapitalize_OvershootCeiling_Rejected(t *testing.T) {
	f := newFixture(t)
	liquidator := uuid.New()
	id := toxicFixture(t, f, liquidator, 1_300_000_000)

	// Repaying nearly everything would leave a tiny debt against most of the
	// collateral, far above the capitalization ceiling.
	if _, err := f.ledger.Capitalize(liquidator, id, 1_290_000_000); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

func TestCapitalizeMax(t *testing.T) {
	f := newFixture(t)
	liquidator := uuid.New()
	id := toxicFixture(t, f, liquidator, 900_000_000)

	res, err := f.ledger.CapitalizeMax(liquidator, id)
	if err != nil {
		t.Fatalf("CapitalizeMax: %v", err)
	}
	if res.Repaid <= 0 {
		t.Fatalf("repaid nothing: %+v", res)
	}

	p := settings.DefaultParams()
	after, err := f.ledger.Ratio(id)
	if err != nil {
		t.Fatalf("Ratio: %v", err)
	}
	if after > p.CapitalizationCeilingRatio {
		t.Errorf("ratio after max capitalize %d exceeds ceiling %d", after, p.CapitalizationCeilingRatio)
	}
	if after <= p.CapitalizationFloorRatio {
		t.Errorf("ratio after max capitalize %d should clear the floor %d", after, p.CapitalizationFloorRatio)
	}
	f.checkInvariants(t)
}

func TestCapitalizeMax_ClampedByBalance(t *testing.T) {
	f := newFixture(t)
	liquidator := uuid.New()
	id := toxicFixture(t, f, liquidator, 200_000_000)

	res, err := f.ledger.CapitalizeMax(liquidator, id)
	if err != nil {
		t.Fatalf("CapitalizeMax: %v", err)
	}
	if res.Repaid != 200_000_000 {
		t.Errorf("repaid: got %d, want full balance 200_000_000", res.Repaid)
	}
	if got := f.token.BalanceOf(liquidator); got != 0 {
		t.Errorf("liquidator tokens: got %d, want 0", got)
	}
	f.checkInvariants(t)
}

// A deep-underwater position whose payout would consume the collateral
// exactly must not be partially capitalized: debt would remain with nothing
// backing it. Only a full repayment may take the last of the collateral.
func TestCapitalize_PayoutCannotStrandDebt(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	liquidator := uuid.New()
	f.bank.Credit(owner, 103_000)
	f.bank.Credit(liquidator, oneReserve)

	// 206% at 4000/unit.
	f.prices.Rate = 4_000_000_000
	res, err := f.ledger.Open(owner, 103_000, 200_000_000)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.ledger.Open(liquidator, oneReserve, 150_000_000); err != nil {
		t.Fatalf("liquidator open: %v", err)
	}

	// Crash to 1000/unit: the position sits at 51.5%, the payout for a 100
	// debt-unit repayment (100 equivalent + 3% reward) consumes the whole
	// 0.103 collateral while 100 debt units remain.
	f.prices.Rate = 1_000_000_000

	if _, cerr := f.ledger.Capitalize(liquidator, res.ID, 100_000_000); !errors.Is(cerr, vault.ErrBounds) {
		t.Fatalf("got %v, want ErrBounds", cerr)
	}

	// Complete no-op: the position and the caller are untouched.
	pos, _ := f.ledger.Get(res.ID)
	if pos.Collateral != 103_000 || pos.DebtIssued != 200_000_000 {
		t.Errorf("position after rejection: %+v", pos)
	}
	if got := f.token.BalanceOf(liquidator); got != 150_000_000 {
		t.Errorf("liquidator tokens: got %d, want 150_000_000", got)
	}
	f.checkInvariants(t)
}

// CapitalizeMax on the same position must also never strand debt: whatever
// repayment the search settles on leaves collateral behind or repays in full.
func TestCapitalizeMax_NeverStrandsDebt(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	liquidator := uuid.New()
	f.bank.Credit(owner, 103_000)
	f.bank.Credit(liquidator, oneReserve)

	f.prices.Rate = 4_000_000_000
	res, err := f.ledger.Open(owner, 103_000, 200_000_000)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.ledger.Open(liquidator, oneReserve, 250_000_000); err != nil {
		t.Fatalf("liquidator open: %v", err)
	}
	f.prices.Rate = 1_000_000_000

	cres, cerr := f.ledger.CapitalizeMax(liquidator, res.ID)
	if cerr != nil {
		t.Fatalf("CapitalizeMax: %v", cerr)
	}
	pos, _ := f.ledger.Get(res.ID)
	if pos.DebtIssued > 0 && pos.Collateral == 0 {
		t.Errorf("stranded: repaid %d, position %+v", cres.Repaid, pos)
	}
	f.checkInvariants(t)
}

// ============================================================================
// Test: CollapseDust
// ============================================================================

func TestCollapseDust(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	caller := uuid.New()
	f.bank.Credit(owner, 50_000)
	f.bank.Credit(caller, oneReserve)

	// Minimum-sized position at 125% — below the collapse threshold.
	res, err := f.ledger.Open(owner, 50_000, 80_000_000)
	if err != nil {
		t.Fatalf("dust open: %v", err)
	}
	if _, err := f.ledger.Open(caller, oneReserve, 100_000_000); err != nil {
		t.Fatalf("caller open: %v", err)
	}

	col, err := f.ledger.CollapseDust(caller, res.ID)
	if err != nil {
		t.Fatalf("CollapseDust: %v", err)
	}

	// 80 debt units = 0.04 reserve; +1.5% caller leg = 40_600 paid,
	// 9_400 residual to the protocol.
	want := &vault.CollapseResult{
		ID:           res.ID,
		Owner:        owner,
		Caller:       caller,
		DebtBurned:   80_000_000,
		PaidToCaller: 40_600,
		SystemReward: 9_400,
		Collateral:   50_000,
	}
	if !reflect.DeepEqual(col, want) {
		t.Errorf("result:\n got %+v\nwant %+v", col, want)
	}

	if _, err := f.ledger.Get(res.ID); !errors.Is(err, vault.ErrNotFound) {
		t.Errorf("collapsed position lookup: got %v, want ErrNotFound", err)
	}
	collateralReward, _ := f.ledger.SystemRewards()
	if collateralReward != 9_400 {
		t.Errorf("residual reward: got %d, want 9_400", collateralReward)
	}
	f.checkInvariants(t)
}

func TestCollapseDust_AboveMinimumDeposit_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 1_300_000_000)
	f.prices.Rate = 1_600_000_000 // toxic, but not dust

	if _, err := f.ledger.CollapseDust(owner, res.ID); !errors.Is(err, vault.ErrState) {
		t.Errorf("got %v, want ErrState", err)
	}
}

func TestCollapseDust_AboveThreshold_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, 50_000)

	// 50_000 collateral, 60 debt units: ~166% — above the threshold.
	res, _ := f.ledger.Open(owner, 50_000, 60_000_000)

	if _, err := f.ledger.CollapseDust(owner, res.ID); !errors.Is(err, vault.ErrState) {
		t.Errorf("got %v, want ErrState", err)
	}
}

// ============================================================================
// Test: Transfer
// ============================================================================

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	buyer := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 0)

	if err := f.ledger.Transfer(owner, buyer, res.ID); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	newOwner, _ := f.reg.OwnerOf(res.ID)
	if newOwner != buyer {
		t.Errorf("owner after transfer: got %s, want %s", newOwner, buyer)
	}

	// The old owner lost all rights.
	if _, err := f.ledger.WithdrawCollateral(owner, res.ID, oneReserve); !errors.Is(err, vault.ErrUnauthorized) {
		t.Errorf("old owner withdraw: got %v, want ErrUnauthorized", err)
	}
	if _, err := f.ledger.WithdrawCollateral(buyer, res.ID, oneReserve); err != nil {
		t.Errorf("new owner withdraw: %v", err)
	}
}

func TestTransfer_NilTarget_Rejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, oneReserve)

	res, _ := f.ledger.Open(owner, oneReserve, 0)

	if err := f.ledger.Transfer(owner, uuid.Nil, res.ID); !errors.Is(err, vault.ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

// ============================================================================
// Test: Rewards
// ============================================================================

func TestAccrueDebtReward(t *testing.T) {
	f := newFixture(t)
	payer := uuid.New()
	f.bank.Credit(payer, oneReserve)

	if _, err := f.ledger.Open(payer, oneReserve, 500_000_000); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := f.ledger.AccrueDebtReward(payer, 10_000_000); err != nil {
		t.Fatalf("AccrueDebtReward: %v", err)
	}

	_, debtReward := f.ledger.SystemRewards()
	if debtReward != 10_000_000 {
		t.Errorf("debt reward: got %d, want 10_000_000", debtReward)
	}
	if got := f.token.BalanceOf(payer); got != 490_000_000 {
		t.Errorf("payer tokens: got %d, want 490_000_000", got)
	}
	f.checkInvariants(t)
}

func TestWithdrawFees_AdminOnly(t *testing.T) {
	f := newFixture(t)
	payer := uuid.New()
	beneficiary := uuid.New()
	f.bank.Credit(payer, oneReserve)

	if _, err := f.ledger.Open(payer, oneReserve, 500_000_000); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.ledger.AccrueDebtReward(payer, 10_000_000); err != nil {
		t.Fatalf("AccrueDebtReward: %v", err)
	}

	if _, err := f.ledger.WithdrawFees(payer, beneficiary); !errors.Is(err, vault.ErrUnauthorized) {
		t.Errorf("non-admin: got %v, want ErrUnauthorized", err)
	}

	fees, err := f.ledger.WithdrawFees(adminID, beneficiary)
	if err != nil {
		t.Fatalf("WithdrawFees: %v", err)
	}
	if fees.DebtPaid != 10_000_000 || fees.CollateralPaid != 0 {
		t.Errorf("fees result: %+v", fees)
	}
	if got := f.token.BalanceOf(beneficiary); got != 10_000_000 {
		t.Errorf("beneficiary tokens: got %d, want 10_000_000", got)
	}

	// Counters zeroed; a second withdraw has nothing to pay.
	if _, err := f.ledger.WithdrawFees(adminID, beneficiary); !errors.Is(err, vault.ErrState) {
		t.Errorf("empty withdraw: got %v, want ErrState", err)
	}
	f.checkInvariants(t)
}

// ============================================================================
// Test: Snapshot / Restore
// ============================================================================

func TestSnapshotRestore_Roundtrip(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, 2*oneReserve)

	f.ledger.Open(owner, oneReserve, 1_000_000_000)
	f.ledger.Open(owner, oneReserve, 0)

	snap := f.ledger.Snapshot()
	digest := f.ledger.StateDigest()

	restored := newFixture(t)
	restored.ledger.Restore(snap)
	restored.token.Restore(f.token.Balances())

	if got := restored.ledger.GlobalCollateral(); got != 2*oneReserve {
		t.Errorf("restored global collateral: got %d", got)
	}
	pos, err := restored.ledger.Get(1)
	if err != nil {
		t.Fatalf("restored Get: %v", err)
	}
	if pos.DebtIssued != 1_000_000_000 {
		t.Errorf("restored debt: got %d", pos.DebtIssued)
	}

	restoredDigest := restored.ledger.StateDigest()
	if string(digest) != string(restoredDigest) {
		t.Error("state digest changed across snapshot roundtrip")
	}
}

// A fresh position after restore must continue the id sequence.
func TestSnapshotRestore_NextID(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.bank.Credit(owner, 2*oneReserve)

	f.ledger.Open(owner, oneReserve, 0)

	restored := newFixture(t)
	restored.ledger.Restore(f.ledger.Snapshot())
	restored.bank.Credit(owner, oneReserve)
	restored.reg.Restore(f.reg.Snapshot())

	res, err := restored.ledger.Open(owner, oneReserve, 0)
	if err != nil {
		t.Fatalf("Open after restore: %v", err)
	}
	if res.ID != 2 {
		t.Errorf("id after restore: got %d, want 2", res.ID)
	}
}

// ============================================================================
// Test: Invariant checking
// ============================================================================

// Outstanding debt with no collateral behind it is unbacked supply; the
// invariant sweep has to catch such a record no matter how it arose.
func TestCheckInvariants_UnbackedDebt(t *testing.T) {
	f := newFixture(t)
	holder := uuid.New()

	if err := f.token.Mint(holder, 500_000_000); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	f.ledger.Restore(vault.LedgerSnapshot{
		Positions: []vault.Position{
			{ID: 1, Collateral: 0, DebtIssued: 500_000_000, Version: 1},
		},
		NextID: 2,
	})

	if err := f.ledger.CheckInvariants(); err == nil {
		t.Error("unbacked debt passed the invariant sweep")
	}
}
