package ledger_test

import (
	"testing"

	"github.com/google/uuid"

	"DebtLedger/internal/ledger"
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	holderID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ledger.NewUserAccountKey(holderID, ledger.SubTypeReserve, ledger.AssetReserve)

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:reserve:ETH"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_UserDebtPath(t *testing.T) {
	holderID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ledger.NewUserAccountKey(holderID, ledger.SubTypeDebt, ledger.AssetDebt)

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:debt:DUSD"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_SystemPath(t *testing.T) {
	key := ledger.NewSystemAccountKey(ledger.SubTypePositions, ledger.AssetReserve)

	path := key.AccountPath()
	if path != "system:positions:ETH" {
		t.Errorf("got %q, want %q", path, "system:positions:ETH")
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	key := ledger.NewExternalAccountKey(ledger.SubTypeExternalDebtSupply, ledger.AssetDebt)

	path := key.AccountPath()
	if path != "external:debt_supply:DUSD" {
		t.Errorf("got %q, want %q", path, "external:debt_supply:DUSD")
	}
}

func TestGetAssetID_Known(t *testing.T) {
	id, ok := ledger.GetAssetID("ETH")
	if !ok {
		t.Fatal("ETH should be a known asset")
	}
	if id != ledger.AssetReserve {
		t.Errorf("ETH asset ID: got %d, want %d", id, ledger.AssetReserve)
	}

	id, ok = ledger.GetAssetID("DUSD")
	if !ok {
		t.Fatal("DUSD should be a known asset")
	}
	if id != ledger.AssetDebt {
		t.Errorf("DUSD asset ID: got %d, want %d", id, ledger.AssetDebt)
	}
}

func TestGetAssetID_Unknown(t *testing.T) {
	_, ok := ledger.GetAssetID("DOGE")
	if ok {
		t.Error("DOGE should not be a known asset")
	}
}

// ============================================================================
// Test: ParseAccountPath
// ============================================================================

func TestParseAccountPath_Roundtrip(t *testing.T) {
	holderID := uuid.New()
	keys := []ledger.AccountKey{
		ledger.NewUserAccountKey(holderID, ledger.SubTypeReserve, ledger.AssetReserve),
		ledger.NewUserAccountKey(holderID, ledger.SubTypeDebt, ledger.AssetDebt),
		ledger.NewSystemAccountKey(ledger.SubTypePositions, ledger.AssetReserve),
		ledger.NewSystemAccountKey(ledger.SubTypeRewardCollateral, ledger.AssetReserve),
		ledger.NewSystemAccountKey(ledger.SubTypeRewardDebt, ledger.AssetDebt),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, ledger.AssetReserve),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalWithdrawals, ledger.AssetReserve),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalDebtSupply, ledger.AssetDebt),
	}

	for _, key := range keys {
		path := key.AccountPath()
		parsed, err := ledger.ParseAccountPath(path)
		if err != nil {
			t.Fatalf("ParseAccountPath(%q): %v", path, err)
		}
		if parsed != key {
			t.Errorf("roundtrip mismatch for %q: got %+v, want %+v", path, parsed, key)
		}
	}
}

func TestParseAccountPath_Malformed(t *testing.T) {
	cases := []string{
		"",
		"user",
		"user:not-a-uuid:reserve:ETH",
		"user:550e8400-e29b-41d4-a716-446655440000:reserve",
		"system:unknown_subtype:ETH",
		"system:positions:DOGE",
		"galaxy:positions:ETH",
	}

	for _, path := range cases {
		if _, err := ledger.ParseAccountPath(path); err == nil {
			t.Errorf("ParseAccountPath(%q) should fail", path)
		}
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func depositJournal(holderID uuid.UUID, amount int64) ledger.Journal {
	return ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewUserAccountKey(holderID, ledger.SubTypeReserve, ledger.AssetReserve),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, ledger.AssetReserve),
		AssetID:       ledger.AssetReserve,
		Amount:        amount,
		JournalType:   ledger.JournalTypeDeposit,
	}
}

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()

	if got := bt.GetUserReserve(holderID); got != 0 {
		t.Errorf("initial reserve should be 0, got %d", got)
	}
	if got := bt.GetUserDebt(holderID); got != 0 {
		t.Errorf("initial debt should be 0, got %d", got)
	}
}

func TestBalanceTracker_ApplyJournal(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()

	bt.ApplyJournal(depositJournal(holderID, 1_000_000))

	if got := bt.GetUserReserve(holderID); got != 1_000_000 {
		t.Errorf("reserve: got %d, want 1_000_000", got)
	}
}

func TestBalanceTracker_ApplyBatch(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()
	batchID := uuid.New()

	j := depositJournal(holderID, 500_000)
	j.BatchID = batchID

	batch := &ledger.Batch{
		BatchID:  batchID,
		Journals: []ledger.Journal{j},
	}

	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	if got := bt.GetUserReserve(holderID); got != 500_000 {
		t.Errorf("reserve: got %d, want 500_000", got)
	}
}

func TestBalanceTracker_GlobalBalanceZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()

	bt.ApplyJournal(depositJournal(holderID, 1_000_000))

	// Lock collateral: user:reserve -> system:positions
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewSystemAccountKey(ledger.SubTypePositions, ledger.AssetReserve),
		CreditAccount: ledger.NewUserAccountKey(holderID, ledger.SubTypeReserve, ledger.AssetReserve),
		AssetID:       ledger.AssetReserve,
		Amount:        300_000,
		JournalType:   ledger.JournalTypeCollateralLock,
	})

	totals := bt.ComputeGlobalBalance()
	for aid, total := range totals {
		if total != 0 {
			t.Errorf("asset %d has non-zero global balance: %d", aid, total)
		}
	}

	if got := bt.GetLockedCollateral(); got != 300_000 {
		t.Errorf("locked collateral: got %d, want 300_000", got)
	}
	if got := bt.GetUserReserve(holderID); got != 700_000 {
		t.Errorf("reserve after lock: got %d, want 700_000", got)
	}
}

func TestBalanceTracker_DebtSupply(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()

	// Mint: external:debt_supply -> user:debt
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewUserAccountKey(holderID, ledger.SubTypeDebt, ledger.AssetDebt),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDebtSupply, ledger.AssetDebt),
		AssetID:       ledger.AssetDebt,
		Amount:        2_000_000,
		JournalType:   ledger.JournalTypeDebtMint,
	})

	if got := bt.GetDebtSupply(); got != 2_000_000 {
		t.Errorf("debt supply: got %d, want 2_000_000", got)
	}
	if got := bt.GetUserDebt(holderID); got != 2_000_000 {
		t.Errorf("holder debt tokens: got %d, want 2_000_000", got)
	}
}

func TestBalanceTracker_ValidateSufficientReserve(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()

	if err := bt.ValidateSufficientReserve(holderID, 100); err == nil {
		t.Error("expected error for insufficient reserve")
	}

	bt.ApplyJournal(depositJournal(holderID, 1_000))

	if err := bt.ValidateSufficientReserve(holderID, 1_000); err != nil {
		t.Errorf("should have sufficient reserve: %v", err)
	}
	if err := bt.ValidateSufficientReserve(holderID, 1_001); err == nil {
		t.Error("expected error for 1_001 > 1_000")
	}
}

func TestBalanceTracker_Snapshot(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()

	bt.ApplyJournal(depositJournal(holderID, 999))

	snap := bt.Snapshot()
	if len(snap) == 0 {
		t.Fatal("snapshot should not be empty")
	}

	// Mutating snapshot should not affect tracker
	for k := range snap {
		snap[k] = 0
	}

	if got := bt.GetUserReserve(holderID); got != 999 {
		t.Error("tracker balance should not be affected by snapshot mutation")
	}
}

func TestBalanceTracker_Restore(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	holderID := uuid.New()
	bt.ApplyJournal(depositJournal(holderID, 777))

	restored := ledger.NewBalanceTracker()
	restored.Restore(bt.Snapshot())

	if got := restored.GetUserReserve(holderID); got != 777 {
		t.Errorf("restored reserve: got %d, want 777", got)
	}
}

// ============================================================================
// Test: Batch Validation
// ============================================================================

func TestBatchValidate_EmptyBatch_Fails(t *testing.T) {
	batch := &ledger.Batch{
		BatchID:  uuid.New(),
		Journals: []ledger.Journal{},
	}

	if err := batch.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}
}

func TestBatchValidate_NonPositiveAmount_Fails(t *testing.T) {
	for _, amount := range []int64{0, -100} {
		batchID := uuid.New()
		j := depositJournal(uuid.New(), amount)
		j.BatchID = batchID

		batch := &ledger.Batch{
			BatchID:  batchID,
			Journals: []ledger.Journal{j},
		}

		if err := batch.Validate(); err == nil {
			t.Errorf("amount %d should fail validation", amount)
		}
	}
}

func TestBatchValidate_SelfTransfer_Fails(t *testing.T) {
	batchID := uuid.New()
	sameAccount := ledger.NewUserAccountKey(uuid.New(), ledger.SubTypeReserve, ledger.AssetReserve)

	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				DebitAccount:  sameAccount,
				CreditAccount: sameAccount,
				AssetID:       ledger.AssetReserve,
				Amount:        100,
			},
		},
	}

	if err := batch.Validate(); err == nil {
		t.Error("self-transfer should fail validation")
	}
}

func TestBatchValidate_MismatchedBatchID_Fails(t *testing.T) {
	j := depositJournal(uuid.New(), 100)

	batch := &ledger.Batch{
		BatchID:  uuid.New(), // differs from j.BatchID
		Journals: []ledger.Journal{j},
	}

	if err := batch.Validate(); err == nil {
		t.Error("mismatched batch ID should fail validation")
	}
}

func TestBatchValidate_MixedAssets_Fails(t *testing.T) {
	batchID := uuid.New()

	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				DebitAccount:  ledger.NewUserAccountKey(uuid.New(), ledger.SubTypeReserve, ledger.AssetReserve),
				CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDebtSupply, ledger.AssetDebt),
				AssetID:       ledger.AssetReserve,
				Amount:        100,
			},
		},
	}

	if err := batch.Validate(); err == nil {
		t.Error("mixed-asset journal should fail validation")
	}
}

func TestBatchValidate_ValidBatch_Passes(t *testing.T) {
	batchID := uuid.New()
	j := depositJournal(uuid.New(), 1_000_000)
	j.BatchID = batchID

	batch := &ledger.Batch{
		BatchID:  batchID,
		Journals: []ledger.Journal{j},
	}

	if err := batch.Validate(); err != nil {
		t.Errorf("valid batch should pass: %v", err)
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_GlobalBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("empty ledger should have zero global balance: %v", err)
	}

	bt.ApplyJournal(depositJournal(uuid.New(), 1_000_000))

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("balanced ledger should have zero global balance: %v", err)
	}
}

func TestInvariantValidator_UserNonNegative(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)
	holderID := uuid.New()

	bt.ApplyJournal(depositJournal(holderID, 100))
	if err := v.ValidateUserNonNegative(holderID); err != nil {
		t.Errorf("positive balance should pass: %v", err)
	}

	// Withdraw more than deposited (tracker does not validate on apply)
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewExternalAccountKey(ledger.SubTypeExternalWithdrawals, ledger.AssetReserve),
		CreditAccount: ledger.NewUserAccountKey(holderID, ledger.SubTypeReserve, ledger.AssetReserve),
		AssetID:       ledger.AssetReserve,
		Amount:        200,
		JournalType:   ledger.JournalTypeWithdrawal,
	})

	if err := v.ValidateUserNonNegative(holderID); err == nil {
		t.Error("negative balance should fail")
	}
}

func TestInvariantValidator_CrossChecks(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)
	holderID := uuid.New()

	bt.ApplyJournal(depositJournal(holderID, 1_000_000))
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewSystemAccountKey(ledger.SubTypePositions, ledger.AssetReserve),
		CreditAccount: ledger.NewUserAccountKey(holderID, ledger.SubTypeReserve, ledger.AssetReserve),
		AssetID:       ledger.AssetReserve,
		Amount:        400_000,
		JournalType:   ledger.JournalTypeCollateralLock,
	})

	if err := v.ValidateLockedCollateral(400_000); err != nil {
		t.Errorf("locked collateral cross-check: %v", err)
	}
	if err := v.ValidateLockedCollateral(500_000); err == nil {
		t.Error("locked collateral mismatch should fail")
	}

	if err := v.ValidateDebtSupply(0); err != nil {
		t.Errorf("debt supply cross-check: %v", err)
	}
	if err := v.ValidateRewards(0, 0); err != nil {
		t.Errorf("rewards cross-check: %v", err)
	}
}
