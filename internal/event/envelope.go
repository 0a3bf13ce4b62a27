package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeReserveDeposit
	EventTypeReserveWithdrawal
	EventTypePositionOpen
	EventTypeCollateralAdd
	EventTypeDebtRepay
	EventTypeCollateralWithdraw
	EventTypeDebtWithdraw
	EventTypePositionClose
	EventTypePositionTransfer
	EventTypeCapitalize
	EventTypeCapitalizeMax
	EventTypeDustCollapse
	EventTypeDebtRewardAccrual
	EventTypeFeeWithdrawal
	EventTypePriceUpdate
	EventTypeParamsUpdate
)

// Well-known partitions. Operations arrive on a strictly ordered partition;
// price updates arrive on a gap-tolerant one.
const (
	PartitionOps   = "ops"
	PartitionPrice = "price"
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Source partition for ordering validation
	Partition string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Partition returns the source partition for sequence validation
	Partition() string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeReserveDeposit:
		return "ReserveDeposit"
	case EventTypeReserveWithdrawal:
		return "ReserveWithdrawal"
	case EventTypePositionOpen:
		return "PositionOpen"
	case EventTypeCollateralAdd:
		return "CollateralAdd"
	case EventTypeDebtRepay:
		return "DebtRepay"
	case EventTypeCollateralWithdraw:
		return "CollateralWithdraw"
	case EventTypeDebtWithdraw:
		return "DebtWithdraw"
	case EventTypePositionClose:
		return "PositionClose"
	case EventTypePositionTransfer:
		return "PositionTransfer"
	case EventTypeCapitalize:
		return "Capitalize"
	case EventTypeCapitalizeMax:
		return "CapitalizeMax"
	case EventTypeDustCollapse:
		return "DustCollapse"
	case EventTypeDebtRewardAccrual:
		return "DebtRewardAccrual"
	case EventTypeFeeWithdrawal:
		return "FeeWithdrawal"
	case EventTypePriceUpdate:
		return "PriceUpdate"
	case EventTypeParamsUpdate:
		return "ParamsUpdate"
	default:
		return "Unknown"
	}
}
