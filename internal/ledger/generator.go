package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"DebtLedger/internal/event"
	"DebtLedger/internal/vault"
)

// JournalGenerator creates balanced journal batches mirroring vault
// operation results. The vault has already validated the operation; the
// pre-checks here catch drift between the vault's counters and the journal
// balances before an inconsistent batch is applied.
type JournalGenerator struct {
	sequence int64
	tracker  *BalanceTracker
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence: startSequence,
		tracker:  tracker,
	}
}

// SetSequence aligns the generator with the engine's global sequence (used
// during recovery).
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

func (jg *JournalGenerator) newBatch(eventRef string, timestamp int64, capacity int) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, capacity),
	}
}

func (jg *JournalGenerator) entry(b *Batch, debit, credit AccountKey, asset AssetID, amount int64, jt JournalType) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       asset,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// GenerateReserveDeposit moves funds: external:deposits -> user:reserve
func (jg *JournalGenerator) GenerateReserveDeposit(evt *event.ReserveDeposit, timestamp int64) (*Batch, error) {
	b := jg.newBatch(evt.IdempotencyKey(), timestamp, 1)
	jg.entry(b,
		NewUserAccountKey(evt.Holder, SubTypeReserve, AssetReserve),
		NewExternalAccountKey(SubTypeExternalDeposits, AssetReserve),
		AssetReserve, evt.Amount, JournalTypeDeposit)
	jg.sequence++
	return b, nil
}

// GenerateReserveWithdrawal moves funds: user:reserve -> external:withdrawals
func (jg *JournalGenerator) GenerateReserveWithdrawal(evt *event.ReserveWithdrawal, timestamp int64) (*Batch, error) {
	if err := jg.tracker.ValidateSufficientReserve(evt.Holder, evt.Amount); err != nil {
		return nil, fmt.Errorf("withdrawal pre-check failed: %w", err)
	}

	b := jg.newBatch(evt.IdempotencyKey(), timestamp, 1)
	jg.entry(b,
		NewExternalAccountKey(SubTypeExternalWithdrawals, AssetReserve),
		NewUserAccountKey(evt.Holder, SubTypeReserve, AssetReserve),
		AssetReserve, evt.Amount, JournalTypeWithdrawal)
	jg.sequence++
	return b, nil
}

// GenerateOpen locks collateral and mints the initial debt issuance.
// Legs: user:reserve -> system:positions; external:debt_supply -> user:debt
func (jg *JournalGenerator) GenerateOpen(res *vault.OpenResult, eventRef string, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp, 2)
	jg.entry(b,
		NewSystemAccountKey(SubTypePositions, AssetReserve),
		NewUserAccountKey(res.Owner, SubTypeReserve, AssetReserve),
		AssetReserve, res.Collateral, JournalTypeCollateralLock)
	if res.Debt > 0 {
		jg.entry(b,
			NewUserAccountKey(res.Owner, SubTypeDebt, AssetDebt),
			NewExternalAccountKey(SubTypeExternalDebtSupply, AssetDebt),
			AssetDebt, res.Debt, JournalTypeDebtMint)
	}
	jg.sequence++
	return b, nil
}

// GenerateCollateralAdd locks additional collateral from the caller.
func (jg *JournalGenerator) GenerateCollateralAdd(res *vault.MutationResult, eventRef string, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp, 1)
	jg.entry(b,
		NewSystemAccountKey(SubTypePositions, AssetReserve),
		NewUserAccountKey(res.Caller, SubTypeReserve, AssetReserve),
		AssetReserve, res.Amount, JournalTypeCollateralLock)
	jg.sequence++
	return b, nil
}

// GenerateDebtRepay burns debt tokens from the caller.
func (jg *JournalGenerator) GenerateDebtRepay(res *vault.MutationResult, eventRef string, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp, 1)
	jg.entry(b,
		NewExternalAccountKey(SubTypeExternalDebtSupply, AssetDebt),
		NewUserAccountKey(res.Caller, SubTypeDebt, AssetDebt),
		AssetDebt, res.Amount, JournalTypeDebtBurn)
	jg.sequence++
	return b, nil
}

// GenerateCollateralWithdraw releases collateral back to the caller.
func (jg *JournalGenerator) GenerateCollateralWithdraw(res *vault.MutationResult, eventRef string, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp, 1)
	jg.entry(b,
		NewUserAccountKey(res.Caller, SubTypeReserve, AssetReserve),
		NewSystemAccountKey(SubTypePositions, AssetReserve),
		AssetReserve, res.Amount, JournalTypeCollateralRelease)
	jg.sequence++
	return b, nil
}

// GenerateDebtWithdraw mints additional debt tokens to the caller.
func (jg *JournalGenerator) GenerateDebtWithdraw(res *vault.MutationResult, eventRef string, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp, 1)
	jg.entry(b,
		NewUserAccountKey(res.Caller, SubTypeDebt, AssetDebt),
		NewExternalAccountKey(SubTypeExternalDebtSupply, AssetDebt),
		AssetDebt, res.Amount, JournalTypeDebtMint)
	jg.sequence++
	return b, nil
}

// GenerateClose burns the full debt and releases all collateral.
func (jg *JournalGenerator) GenerateClose(res *vault.CloseResult, eventRef string, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp, 2)
	if res.DebtBurned > 0 {
		jg.entry(b,
			NewExternalAccountKey(SubTypeExternalDebtSupply, AssetDebt),
			NewUserAccountKey(res.Owner, SubTypeDebt, AssetDebt),
			AssetDebt, res.DebtBurned, JournalTypeDebtBurn)
	}
	jg.entry(b,
		NewUserAccountKey(res.Owner, SubTypeReserve, AssetReserve),
		NewSystemAccountKey(SubTypePositions, AssetReserve),
		AssetReserve, res.Collateral, JournalTypeCollateralRelease)
	jg.sequence++
	return b, nil
}

// GenerateCapitalize burns the repayment and splits the released collateral
// between the caller and the protocol reward account.
func (jg *JournalGenerator) GenerateCapitalize(res *vault.CapitalizeResult, eventRef string, timestamp int64) (*Batch, error) {
	if err := jg.tracker.ValidateSufficientDebt(res.Caller, res.Repaid); err != nil {
		return nil, fmt.Errorf("capitalization pre-check failed: %w", err)
	}

	b := jg.newBatch(eventRef, timestamp, 3)
	jg.entry(b,
		NewExternalAccountKey(SubTypeExternalDebtSupply, AssetDebt),
		NewUserAccountKey(res.Caller, SubTypeDebt, AssetDebt),
		AssetDebt, res.Repaid, JournalTypeDebtBurn)
	if payout := res.Equivalent + res.CallerReward; payout > 0 {
		jg.entry(b,
			NewUserAccountKey(res.Caller, SubTypeReserve, AssetReserve),
			NewSystemAccountKey(SubTypePositions, AssetReserve),
			AssetReserve, payout, JournalTypeCapitalizationPayout)
	}
	if res.SystemReward > 0 {
		jg.entry(b,
			NewSystemAccountKey(SubTypeRewardCollateral, AssetReserve),
			NewSystemAccountKey(SubTypePositions, AssetReserve),
			AssetReserve, res.SystemReward, JournalTypeCapitalizationReward)
	}
	jg.sequence++
	return b, nil
}

// GenerateCollapse burns the full debt, pays the caller, and routes residual
// collateral to the protocol reward account.
func (jg *JournalGenerator) GenerateCollapse(res *vault.CollapseResult, eventRef string, timestamp int64) (*Batch, error) {
	if err := jg.tracker.ValidateSufficientDebt(res.Caller, res.DebtBurned); err != nil {
		return nil, fmt.Errorf("collapse pre-check failed: %w", err)
	}

	b := jg.newBatch(eventRef, timestamp, 3)
	if res.DebtBurned > 0 {
		jg.entry(b,
			NewExternalAccountKey(SubTypeExternalDebtSupply, AssetDebt),
			NewUserAccountKey(res.Caller, SubTypeDebt, AssetDebt),
			AssetDebt, res.DebtBurned, JournalTypeDebtBurn)
	}
	if res.PaidToCaller > 0 {
		jg.entry(b,
			NewUserAccountKey(res.Caller, SubTypeReserve, AssetReserve),
			NewSystemAccountKey(SubTypePositions, AssetReserve),
			AssetReserve, res.PaidToCaller, JournalTypeCollapsePayout)
	}
	if res.SystemReward > 0 {
		jg.entry(b,
			NewSystemAccountKey(SubTypeRewardCollateral, AssetReserve),
			NewSystemAccountKey(SubTypePositions, AssetReserve),
			AssetReserve, res.SystemReward, JournalTypeCollapseResidual)
	}
	jg.sequence++
	return b, nil
}

// GenerateRewardAccrual moves debt tokens from the payer to the protocol
// reward account.
func (jg *JournalGenerator) GenerateRewardAccrual(payer uuid.UUID, amount int64, eventRef string, timestamp int64) (*Batch, error) {
	if err := jg.tracker.ValidateSufficientDebt(payer, amount); err != nil {
		return nil, fmt.Errorf("reward accrual pre-check failed: %w", err)
	}

	b := jg.newBatch(eventRef, timestamp, 1)
	jg.entry(b,
		NewSystemAccountKey(SubTypeRewardDebt, AssetDebt),
		NewUserAccountKey(payer, SubTypeDebt, AssetDebt),
		AssetDebt, amount, JournalTypeRewardAccrual)
	jg.sequence++
	return b, nil
}

// GenerateFeeWithdrawal pays both reward balances to the beneficiary.
func (jg *JournalGenerator) GenerateFeeWithdrawal(res *vault.FeesResult, eventRef string, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp, 2)
	if res.CollateralPaid > 0 {
		jg.entry(b,
			NewUserAccountKey(res.Beneficiary, SubTypeReserve, AssetReserve),
			NewSystemAccountKey(SubTypeRewardCollateral, AssetReserve),
			AssetReserve, res.CollateralPaid, JournalTypeFeePayout)
	}
	if res.DebtPaid > 0 {
		jg.entry(b,
			NewUserAccountKey(res.Beneficiary, SubTypeDebt, AssetDebt),
			NewSystemAccountKey(SubTypeRewardDebt, AssetDebt),
			AssetDebt, res.DebtPaid, JournalTypeFeePayout)
	}
	jg.sequence++
	return b, nil
}
