package event

import "github.com/google/uuid"

// Capitalize repays part of a toxic position's debt from the caller's token
// balance in exchange for discounted collateral.
type Capitalize struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Repay      int64
	Timestamp  int64 // Epoch microseconds (versioned input)
	Sequence   int64
}

func (c *Capitalize) IdempotencyKey() string { return c.RequestID.String() }
func (c *Capitalize) EventType() EventType   { return EventTypeCapitalize }
func (c *Capitalize) Partition() string      { return PartitionOps }
func (c *Capitalize) SourceSequence() int64  { return c.Sequence }

// CapitalizeMax resolves the largest valid repayment deterministically at
// apply time, so the event needs no amount.
type CapitalizeMax struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Timestamp  int64
	Sequence   int64
}

func (c *CapitalizeMax) IdempotencyKey() string { return c.RequestID.String() }
func (c *CapitalizeMax) EventType() EventType   { return EventTypeCapitalizeMax }
func (c *CapitalizeMax) Partition() string      { return PartitionOps }
func (c *CapitalizeMax) SourceSequence() int64  { return c.Sequence }

// DustCollapse fully liquidates a negligible position.
type DustCollapse struct {
	RequestID  uuid.UUID
	Caller     uuid.UUID
	PositionID uint64
	Timestamp  int64
	Sequence   int64
}

func (d *DustCollapse) IdempotencyKey() string { return d.RequestID.String() }
func (d *DustCollapse) EventType() EventType   { return EventTypeDustCollapse }
func (d *DustCollapse) Partition() string      { return PartitionOps }
func (d *DustCollapse) SourceSequence() int64  { return d.Sequence }
