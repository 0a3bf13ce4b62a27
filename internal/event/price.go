package event

import "fmt"

// PriceUpdate carries a reserve-asset price observation from the feed.
// Stale sequences are silently ignored; gaps are tolerated.
type PriceUpdate struct {
	Rate           int64 // Debt units per ScalingFactor reserve units
	ScalingFactor  int64
	PriceSequence  int64 // Monotonic per feed
	PriceTimestamp int64 // Epoch microseconds (versioned input)
}

func (p *PriceUpdate) IdempotencyKey() string {
	return fmt.Sprintf("price:%d", p.PriceSequence)
}

func (p *PriceUpdate) EventType() EventType {
	return EventTypePriceUpdate
}

func (p *PriceUpdate) Partition() string {
	return PartitionPrice
}

func (p *PriceUpdate) SourceSequence() int64 {
	return p.PriceSequence
}
