package event

import "github.com/google/uuid"

// PositionOpen creates a position with attached collateral and an optional
// initial debt issuance.
type PositionOpen struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	Collateral int64
	Debt       int64
	Timestamp  int64 // Epoch microseconds (versioned input)
	Sequence   int64
}

func (p *PositionOpen) IdempotencyKey() string { return p.RequestID.String() }
func (p *PositionOpen) EventType() EventType   { return EventTypePositionOpen }
func (p *PositionOpen) Partition() string      { return PartitionOps }
func (p *PositionOpen) SourceSequence() int64  { return p.Sequence }

// CollateralAdd tops up a position's collateral from the caller's reserve.
type CollateralAdd struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Amount     int64
	Timestamp  int64
	Sequence   int64
}

func (c *CollateralAdd) IdempotencyKey() string { return c.RequestID.String() }
func (c *CollateralAdd) EventType() EventType   { return EventTypeCollateralAdd }
func (c *CollateralAdd) Partition() string      { return PartitionOps }
func (c *CollateralAdd) SourceSequence() int64  { return c.Sequence }

// DebtRepay burns debt tokens from the caller against a position.
type DebtRepay struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Amount     int64
	Timestamp  int64
	Sequence   int64
}

func (r *DebtRepay) IdempotencyKey() string { return r.RequestID.String() }
func (r *DebtRepay) EventType() EventType   { return EventTypeDebtRepay }
func (r *DebtRepay) Partition() string      { return PartitionOps }
func (r *DebtRepay) SourceSequence() int64  { return r.Sequence }

// CollateralWithdraw releases collateral to the caller.
type CollateralWithdraw struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Amount     int64
	Timestamp  int64
	Sequence   int64
}

func (w *CollateralWithdraw) IdempotencyKey() string { return w.RequestID.String() }
func (w *CollateralWithdraw) EventType() EventType   { return EventTypeCollateralWithdraw }
func (w *CollateralWithdraw) Partition() string      { return PartitionOps }
func (w *CollateralWithdraw) SourceSequence() int64  { return w.Sequence }

// DebtWithdraw issues additional debt tokens against a position.
type DebtWithdraw struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Amount     int64
	Timestamp  int64
	Sequence   int64
}

func (w *DebtWithdraw) IdempotencyKey() string { return w.RequestID.String() }
func (w *DebtWithdraw) EventType() EventType   { return EventTypeDebtWithdraw }
func (w *DebtWithdraw) Partition() string      { return PartitionOps }
func (w *DebtWithdraw) SourceSequence() int64  { return w.Sequence }

// PositionClose burns the full outstanding debt and releases all collateral.
type PositionClose struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Timestamp  int64
	Sequence   int64
}

func (c *PositionClose) IdempotencyKey() string { return c.RequestID.String() }
func (c *PositionClose) EventType() EventType   { return EventTypePositionClose }
func (c *PositionClose) Partition() string      { return PartitionOps }
func (c *PositionClose) SourceSequence() int64  { return c.Sequence }

// PositionTransfer reassigns position ownership.
type PositionTransfer struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	To         uuid.UUID
	PositionID uint64
	Timestamp  int64
	Sequence   int64
}

func (t *PositionTransfer) IdempotencyKey() string { return t.RequestID.String() }
func (t *PositionTransfer) EventType() EventType   { return EventTypePositionTransfer }
func (t *PositionTransfer) Partition() string      { return PartitionOps }
func (t *PositionTransfer) SourceSequence() int64  { return t.Sequence }
