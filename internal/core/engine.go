package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"DebtLedger/internal/event"
	"DebtLedger/internal/ledger"
	"DebtLedger/internal/observability"
	"DebtLedger/internal/oracle"
	"DebtLedger/internal/registry"
	"DebtLedger/internal/settings"
	"DebtLedger/internal/token"
	"DebtLedger/internal/vault"
)

// Engine is the single-threaded deterministic event processor. Every state
// mutation flows through ProcessEvent: dedup, sequence validation, vault
// operation, journal generation, invariant post-checks, state hashing, and
// emission to the persistence and projection channels.
type Engine struct {
	sequence          int64
	hasher            *StateHasher
	balanceTracker    *ledger.BalanceTracker
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	vault             *vault.Ledger
	bank              *token.InMemoryBank
	debtToken         *token.InMemoryToken
	registry          *registry.InMemory
	prices            *oracle.Cache
	settings          *settings.Provider
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- EngineOutput
	projectionChan chan<- EngineOutput

	// replaying suppresses downstream emission and tier-2 dedup while the
	// event log is being re-applied at startup.
	replaying bool
}

// EngineOutput carries one applied event downstream. Result holds the typed
// vault operation result for projections that need more than the journals.
type EngineOutput struct {
	Envelope *event.EventEnvelope
	Batch    *ledger.Batch
	Result   interface{}
}

func NewEngine(
	startSequence int64,
	provider *settings.Provider,
	prices *oracle.Cache,
	persistChan, projectionChan chan<- EngineOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Engine {
	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)
	journalGen := ledger.NewJournalGenerator(startSequence, balanceTracker)

	bank := token.NewInMemoryBank()
	debtToken := token.NewInMemoryToken()
	reg := registry.NewInMemory()
	vlt := vault.NewLedger(prices, debtToken, bank, reg, provider)

	// LRU capacity of 1M entries
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker)
	sequenceValidator := NewSequenceValidator()

	return &Engine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		balanceTracker:    balanceTracker,
		journalGen:        journalGen,
		validator:         validator,
		vault:             vlt,
		bank:              bank,
		debtToken:         debtToken,
		registry:          reg,
		prices:            prices,
		settings:          provider,
		idempotency:       idempotencyChecker,
		sequenceValidator: sequenceValidator,
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// Vault exposes the vault for read-only view queries.
func (e *Engine) Vault() *vault.Ledger {
	return e.vault
}

// Tracker exposes the balance tracker for read-only queries.
func (e *Engine) Tracker() *ledger.BalanceTracker {
	return e.balanceTracker
}

// ProcessEvent is the main processing pipeline
func (e *Engine) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check. Two-tier normally; during replay every key
	// is in Postgres by definition, so only the LRU is consulted.
	var isDuplicate bool
	if e.replaying {
		isDuplicate = e.idempotency.IsDuplicateInMemory(eventType, idempotencyKey)
	} else {
		isDuplicate = e.idempotency.IsDuplicate(eventType, idempotencyKey)
	}

	// Step 2: Sequence validation. Price feed sequences tolerate gaps and
	// silently drop stale observations; everything else is strict.
	partition := evt.Partition()
	sourceSequence := evt.SourceSequence()

	if partition == event.PartitionPrice {
		if stale := e.sequenceValidator.ValidatePriceSequence(partition, sourceSequence); stale {
			if e.metrics != nil {
				e.metrics.PriceUpdatesStale.Inc()
			}
			return nil
		}
	} else {
		if err := e.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	if isDuplicate {
		if e.metrics != nil {
			e.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch — apply the vault operation and build the journals
	batch, result, err := e.dispatchEvent(evt)
	if err != nil {
		if e.metrics != nil {
			e.metrics.CoreEventsRejected.WithLabelValues(eventType, "validation").Inc()
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: Validate and apply the journal batch. State-only events
	// (PriceUpdate, ParamsUpdate, PositionTransfer) produce no journals but
	// still need an envelope in the event log.
	if len(batch.Journals) > 0 {
		if verr := e.validator.ValidateBatchBalance(batch); verr != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", verr))
		}
		if aerr := e.balanceTracker.ApplyBatch(batch); aerr != nil {
			return fmt.Errorf("apply batch failed: %w", aerr)
		}
	}

	// Step 5: State digest and hash chain
	stateDigest := e.computeStateDigest(batch)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

	payload, perr := json.Marshal(evt)
	if perr != nil {
		panic(fmt.Sprintf("FATAL: cannot encode event payload: %v", perr))
	}

	envelope := &event.EventEnvelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Partition:      partition,
		Timestamp:      e.getEventTimestamp(evt),
		SourceSequence: sourceSequence,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := EngineOutput{
		Envelope: envelope,
		Batch:    batch,
		Result:   result,
	}
	e.sequence++

	// Step 6: Post-checks. A violation here means the vault and the journal
	// disagree about reality; continuing would persist corrupted state.
	if err := e.postCheckInvariants(evt); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 7: Emit. Persistence uses a BLOCKING send (backpressure stalls
	// the engine rather than losing events); projections use a non-blocking
	// send and rebuild from the event log if they fall behind. Replay
	// re-applies already-persisted events, so nothing is emitted.
	if !e.replaying {
		e.persistChan <- output

		select {
		case e.projectionChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.WithLabelValues("all").Inc()
			}
		}
	}

	// Step 8: Mark as processed (add to LRU)
	e.idempotency.MarkProcessed(eventType, idempotencyKey)

	e.recordMetrics(evt, result, start)

	return nil
}

func (e *Engine) recordMetrics(evt event.Event, result interface{}, start time.Time) {
	if e.metrics == nil {
		return
	}

	eventType := evt.EventType().String()
	e.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
	e.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	e.metrics.CoreSequence.Set(float64(e.sequence))

	switch r := result.(type) {
	case *vault.OpenResult:
		e.metrics.PositionsOpened.Inc()
	case *vault.CloseResult:
		e.metrics.PositionsClosed.WithLabelValues("close").Inc()
	case *vault.CapitalizeResult:
		e.metrics.Capitalizations.Inc()
		e.metrics.CapitalizedDebt.Add(float64(r.Repaid))
	case *vault.CollapseResult:
		e.metrics.PositionsClosed.WithLabelValues("collapse").Inc()
		e.metrics.DustCollapses.Inc()
	}
	if evt.EventType() == event.EventTypePriceUpdate {
		e.metrics.PriceUpdatesApplied.Inc()
	}

	e.metrics.PositionsOpen.Set(float64(len(e.vault.PositionIDs())))
	e.metrics.GlobalCollateral.Set(float64(e.vault.GlobalCollateral()))
	e.metrics.DebtSupply.Set(float64(e.debtToken.TotalSupply()))
	collateralReward, debtReward := e.vault.SystemRewards()
	e.metrics.RewardCollateral.Set(float64(collateralReward))
	e.metrics.RewardDebt.Set(float64(debtReward))
	if ratio, err := e.vault.GlobalRatio(); err == nil {
		e.metrics.GlobalRatio.Set(float64(ratio))
	}
}

// getEventTimestamp extracts the versioned timestamp from an event. The
// engine MUST NOT call time.Now(); all timestamps are versioned inputs.
func (e *Engine) getEventTimestamp(evt event.Event) time.Time {
	switch ev := evt.(type) {
	case *event.ReserveDeposit:
		return time.UnixMicro(ev.Timestamp)
	case *event.ReserveWithdrawal:
		return time.UnixMicro(ev.Timestamp)
	case *event.PositionOpen:
		return time.UnixMicro(ev.Timestamp)
	case *event.CollateralAdd:
		return time.UnixMicro(ev.Timestamp)
	case *event.DebtRepay:
		return time.UnixMicro(ev.Timestamp)
	case *event.CollateralWithdraw:
		return time.UnixMicro(ev.Timestamp)
	case *event.DebtWithdraw:
		return time.UnixMicro(ev.Timestamp)
	case *event.PositionClose:
		return time.UnixMicro(ev.Timestamp)
	case *event.PositionTransfer:
		return time.UnixMicro(ev.Timestamp)
	case *event.Capitalize:
		return time.UnixMicro(ev.Timestamp)
	case *event.CapitalizeMax:
		return time.UnixMicro(ev.Timestamp)
	case *event.DustCollapse:
		return time.UnixMicro(ev.Timestamp)
	case *event.DebtRewardAccrual:
		return time.UnixMicro(ev.Timestamp)
	case *event.FeeWithdrawal:
		return time.UnixMicro(ev.Timestamp)
	case *event.PriceUpdate:
		return time.UnixMicro(ev.PriceTimestamp)
	case *event.ParamsUpdate:
		return time.UnixMicro(ev.Timestamp)
	default:
		panic(fmt.Sprintf("FATAL: getEventTimestamp called with unhandled event type %T", evt))
	}
}

// computeStateDigest creates canonical bytes for the state hash: the
// balances of every account the batch touched, in deterministic order,
// followed by the vault's global counters.
func (e *Engine) computeStateDigest(batch *ledger.Batch) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64+40)

	for _, key := range accounts {
		balance := e.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, balance)
	}

	digest = appendInt64LE(digest, e.vault.GlobalCollateral())
	collateralReward, debtReward := e.vault.SystemRewards()
	digest = appendInt64LE(digest, collateralReward)
	digest = appendInt64LE(digest, debtReward)
	digest = appendInt64LE(digest, e.debtToken.TotalSupply())

	rate, scale, err := e.prices.CurrentPrice()
	if err == nil {
		digest = appendInt64LE(digest, rate)
		digest = appendInt64LE(digest, scale)
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates conservation after batch application
func (e *Engine) postCheckInvariants(evt event.Event) error {
	// Vault-level conservation: counters vs position sums vs token supply
	if err := e.vault.CheckInvariants(); err != nil {
		return err
	}

	// Journal-level cross-checks: the tracker must mirror the vault
	if err := e.validator.ValidateLockedCollateral(e.vault.GlobalCollateral()); err != nil {
		return err
	}
	if err := e.validator.ValidateDebtSupply(e.debtToken.TotalSupply()); err != nil {
		return err
	}
	collateralReward, debtReward := e.vault.SystemRewards()
	if err := e.validator.ValidateRewards(collateralReward, debtReward); err != nil {
		return err
	}

	// Periodic global zero-sum check
	if e.sequence > 0 && e.sequence%1000 == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("at seq %d: %w", e.sequence, err)
		}
	}

	return nil
}

// --- Event handlers ---

func (e *Engine) handleReserveDeposit(evt *event.ReserveDeposit) (*ledger.Batch, interface{}, error) {
	if evt.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive, got %d", vault.ErrBounds, evt.Amount)
	}

	batch, err := e.journalGen.GenerateReserveDeposit(evt, evt.Timestamp)
	if err != nil {
		return nil, nil, err
	}

	e.bank.Credit(evt.Holder, evt.Amount)
	return batch, nil, nil
}

func (e *Engine) handleReserveWithdrawal(evt *event.ReserveWithdrawal) (*ledger.Batch, interface{}, error) {
	if evt.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive, got %d", vault.ErrBounds, evt.Amount)
	}
	if e.bank.BalanceOf(evt.Holder) < evt.Amount {
		return nil, nil, fmt.Errorf("%w: reserve balance %d below withdrawal %d",
			vault.ErrBounds, e.bank.BalanceOf(evt.Holder), evt.Amount)
	}

	batch, err := e.journalGen.GenerateReserveWithdrawal(evt, evt.Timestamp)
	if err != nil {
		return nil, nil, err
	}

	if derr := e.bank.Debit(evt.Holder, evt.Amount); derr != nil {
		panic(fmt.Sprintf("FATAL: bank debit failed after validation: %v", derr))
	}
	return batch, nil, nil
}

func (e *Engine) handlePositionOpen(evt *event.PositionOpen) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.Open(evt.Caller, evt.Collateral, evt.Debt)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateOpen(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handleCollateralAdd(evt *event.CollateralAdd) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.AddCollateral(evt.Caller, evt.PositionID, evt.Amount)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateCollateralAdd(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handleDebtRepay(evt *event.DebtRepay) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.RepayDebt(evt.Caller, evt.PositionID, evt.Amount)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateDebtRepay(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handleCollateralWithdraw(evt *event.CollateralWithdraw) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.WithdrawCollateral(evt.Caller, evt.PositionID, evt.Amount)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateCollateralWithdraw(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handleDebtWithdraw(evt *event.DebtWithdraw) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.WithdrawDebt(evt.Caller, evt.PositionID, evt.Amount)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateDebtWithdraw(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handlePositionClose(evt *event.PositionClose) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.Close(evt.Caller, evt.PositionID)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateClose(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handlePositionTransfer(evt *event.PositionTransfer) (*ledger.Batch, interface{}, error) {
	if err := e.vault.Transfer(evt.Caller, evt.To, evt.PositionID); err != nil {
		return nil, nil, err
	}
	// Ownership changes move no value: empty batch, envelope only
	return e.emptyBatch(evt.IdempotencyKey(), evt.Timestamp), nil, nil
}

func (e *Engine) handleCapitalize(evt *event.Capitalize) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.Capitalize(evt.Caller, evt.PositionID, evt.Repay)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateCapitalize(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handleCapitalizeMax(evt *event.CapitalizeMax) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.CapitalizeMax(evt.Caller, evt.PositionID)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateCapitalize(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handleDustCollapse(evt *event.DustCollapse) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.CollapseDust(evt.Caller, evt.PositionID)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateCollapse(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handleDebtRewardAccrual(evt *event.DebtRewardAccrual) (*ledger.Batch, interface{}, error) {
	if err := e.vault.AccrueDebtReward(evt.Payer, evt.Amount); err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateRewardAccrual(evt.Payer, evt.Amount, evt.IdempotencyKey(), evt.Timestamp)
	return batch, nil, err
}

func (e *Engine) handleFeeWithdrawal(evt *event.FeeWithdrawal) (*ledger.Batch, interface{}, error) {
	res, err := e.vault.WithdrawFees(evt.Caller, evt.Beneficiary)
	if err != nil {
		return nil, nil, err
	}
	batch, err := e.journalGen.GenerateFeeWithdrawal(res, evt.IdempotencyKey(), evt.Timestamp)
	return batch, res, err
}

func (e *Engine) handlePriceUpdate(evt *event.PriceUpdate) (*ledger.Batch, interface{}, error) {
	// Stale sequences were dropped upstream; the cache re-checks anyway.
	if _, err := e.prices.Update(evt.Rate, evt.PriceSequence, evt.PriceTimestamp); err != nil {
		return nil, nil, err
	}
	return e.emptyBatch(evt.IdempotencyKey(), evt.PriceTimestamp), nil, nil
}

func (e *Engine) handleParamsUpdate(evt *event.ParamsUpdate) (*ledger.Batch, interface{}, error) {
	params := settings.Params{
		MinDeposit:                 evt.MinDeposit,
		TargetRatio:                evt.TargetRatio,
		BaseRatio:                  evt.BaseRatio,
		CapitalizationFloorRatio:   evt.CapitalizationFloorRatio,
		CapitalizationCeilingRatio: evt.CapitalizationCeilingRatio,
		CollapseThresholdRatio:     evt.CollapseThresholdRatio,
		RepayDustFloor:             evt.RepayDustFloor,
		TotalFeeRate:               evt.TotalFeeRate,
		SystemFeeShare:             evt.SystemFeeShare,
		EffectiveSeq:               evt.Sequence,
	}
	if err := e.settings.Update(evt.Caller, params); err != nil {
		return nil, nil, err
	}
	return e.emptyBatch(evt.IdempotencyKey(), evt.Timestamp), nil, nil
}

func (e *Engine) emptyBatch(eventRef string, timestamp int64) *ledger.Batch {
	return &ledger.Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  e.sequence,
		Timestamp: timestamp,
		Journals:  []ledger.Journal{},
	}
}

func (e *Engine) dispatchEvent(evt event.Event) (*ledger.Batch, interface{}, error) {
	switch ev := evt.(type) {
	case *event.ReserveDeposit:
		return e.handleReserveDeposit(ev)
	case *event.ReserveWithdrawal:
		return e.handleReserveWithdrawal(ev)
	case *event.PositionOpen:
		return e.handlePositionOpen(ev)
	case *event.CollateralAdd:
		return e.handleCollateralAdd(ev)
	case *event.DebtRepay:
		return e.handleDebtRepay(ev)
	case *event.CollateralWithdraw:
		return e.handleCollateralWithdraw(ev)
	case *event.DebtWithdraw:
		return e.handleDebtWithdraw(ev)
	case *event.PositionClose:
		return e.handlePositionClose(ev)
	case *event.PositionTransfer:
		return e.handlePositionTransfer(ev)
	case *event.Capitalize:
		return e.handleCapitalize(ev)
	case *event.CapitalizeMax:
		return e.handleCapitalizeMax(ev)
	case *event.DustCollapse:
		return e.handleDustCollapse(ev)
	case *event.DebtRewardAccrual:
		return e.handleDebtRewardAccrual(ev)
	case *event.FeeWithdrawal:
		return e.handleFeeWithdrawal(ev)
	case *event.PriceUpdate:
		return e.handlePriceUpdate(ev)
	case *event.ParamsUpdate:
		return e.handleParamsUpdate(ev)
	default:
		return nil, nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// --- Snapshot restore & startup ---

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence          int64
	StateHash         [32]byte
	Balances          map[ledger.AccountKey]int64
	Vault             vault.LedgerSnapshot
	BankBalances      map[uuid.UUID]int64
	TokenBalances     map[uuid.UUID]int64
	RegistryOwners    map[uint64]uuid.UUID
	RegistryApprovals map[uint64]uuid.UUID
	PriceRate         int64
	PriceSequence     int64
	PriceTimestamp    int64
	Params            settings.Params
	SequenceState     map[string]int64
	IdempotencyKeys   []string
}

// RestoreFromSnapshot restores the engine's in-memory state. On warm
// restart, load the latest snapshot and then replay events from
// snapshot.Sequence+1.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.sequence = snap.Sequence + 1
	e.hasher.SetPrevHash(snap.StateHash)
	e.balanceTracker.Restore(snap.Balances)
	e.vault.Restore(snap.Vault)
	e.bank.Restore(snap.BankBalances)
	e.debtToken.Restore(snap.TokenBalances)
	e.registry.Restore(snap.RegistryOwners, snap.RegistryApprovals)
	e.prices.Restore(snap.PriceRate, snap.PriceSequence, snap.PriceTimestamp)
	e.settings.Restore(snap.Params)

	for partition, nextSeq := range snap.SequenceState {
		e.sequenceValidator.RestorePartition(partition, nextSeq)
	}

	e.journalGen.SetSequence(e.sequence)
	e.idempotency.lru.WarmFromKeys(snap.IdempotencyKeys)
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	owners, approvals := e.registry.Snapshot()
	return &SnapshotState{
		Sequence:          e.sequence - 1,
		StateHash:         e.hasher.GetPrevHash(),
		Balances:          e.balanceTracker.Snapshot(),
		Vault:             e.vault.Snapshot(),
		BankBalances:      e.bank.Balances(),
		TokenBalances:     e.debtToken.Balances(),
		RegistryOwners:    owners,
		RegistryApprovals: approvals,
		PriceRate:         e.prices.Rate(),
		PriceSequence:     e.prices.Sequence(),
		PriceTimestamp:    e.prices.Timestamp(),
		Params:            e.settings.Current(),
		SequenceState:     e.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys:   e.idempotency.lru.GetAllKeys(),
	}
}

// SetReplaying toggles replay mode. While replaying, downstream channels
// receive nothing and dedup skips the Postgres tier.
func (e *Engine) SetReplaying(replaying bool) {
	e.replaying = replaying
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently processed events after restart.
func (e *Engine) WarmLRU(keys []string) {
	e.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the next global sequence number to assign.
func (e *Engine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}
