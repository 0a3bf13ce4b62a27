package event

import "github.com/google/uuid"

// DebtRewardAccrual remits matching-service fees, denominated in the debt
// token, to the protocol's reward balance.
type DebtRewardAccrual struct {
	RequestID uuid.UUID
	Payer     uuid.UUID
	Amount    int64
	Timestamp int64 // Epoch microseconds (versioned input)
	Sequence  int64
}

func (a *DebtRewardAccrual) IdempotencyKey() string { return a.RequestID.String() }
func (a *DebtRewardAccrual) EventType() EventType   { return EventTypeDebtRewardAccrual }
func (a *DebtRewardAccrual) Partition() string      { return PartitionOps }
func (a *DebtRewardAccrual) SourceSequence() int64  { return a.Sequence }

// FeeWithdrawal pays the accrued system reward balances to a beneficiary.
// Admin-gated at apply time.
type FeeWithdrawal struct {
	RequestID   uuid.UUID
	Caller      uuid.UUID
	Beneficiary uuid.UUID
	Timestamp   int64
	Sequence    int64
}

func (f *FeeWithdrawal) IdempotencyKey() string { return f.RequestID.String() }
func (f *FeeWithdrawal) EventType() EventType   { return EventTypeFeeWithdrawal }
func (f *FeeWithdrawal) Partition() string      { return PartitionOps }
func (f *FeeWithdrawal) SourceSequence() int64  { return f.Sequence }
