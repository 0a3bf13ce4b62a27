package event

import "github.com/google/uuid"

// ReserveDeposit credits the reserve asset into a holder's bank balance.
type ReserveDeposit struct {
	DepositID uuid.UUID
	Holder    uuid.UUID
	Amount    int64 // Fixed-point: amount scale
	Timestamp int64 // Epoch microseconds (versioned input)
	Sequence  int64
}

func (d *ReserveDeposit) IdempotencyKey() string {
	return d.DepositID.String()
}

func (d *ReserveDeposit) EventType() EventType {
	return EventTypeReserveDeposit
}

func (d *ReserveDeposit) Partition() string {
	return PartitionOps
}

func (d *ReserveDeposit) SourceSequence() int64 {
	return d.Sequence
}

// ReserveWithdrawal debits the reserve asset from a holder's bank balance.
type ReserveWithdrawal struct {
	WithdrawalID uuid.UUID
	Holder       uuid.UUID
	Amount       int64
	Timestamp    int64
	Sequence     int64
}

func (w *ReserveWithdrawal) IdempotencyKey() string {
	return w.WithdrawalID.String()
}

func (w *ReserveWithdrawal) EventType() EventType {
	return EventTypeReserveWithdrawal
}

func (w *ReserveWithdrawal) Partition() string {
	return PartitionOps
}

func (w *ReserveWithdrawal) SourceSequence() int64 {
	return w.Sequence
}
