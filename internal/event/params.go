package event

import "github.com/google/uuid"

// ParamsUpdate replaces the policy parameter set. Admin-gated and
// range-validated at apply time. All ratios and rates are in ppm; amounts in
// fixed-point amount scale.
type ParamsUpdate struct {
	RequestID                  uuid.UUID
	Caller                     uuid.UUID
	MinDeposit                 int64
	TargetRatio                int64
	BaseRatio                  int64
	CapitalizationFloorRatio   int64
	CapitalizationCeilingRatio int64
	CollapseThresholdRatio     int64
	RepayDustFloor             int64
	TotalFeeRate               int64
	SystemFeeShare             int64
	Timestamp                  int64 // Epoch microseconds (versioned input)
	Sequence                   int64
}

func (p *ParamsUpdate) IdempotencyKey() string { return p.RequestID.String() }
func (p *ParamsUpdate) EventType() EventType   { return EventTypeParamsUpdate }
func (p *ParamsUpdate) Partition() string      { return PartitionOps }
func (p *ParamsUpdate) SourceSequence() int64  { return p.Sequence }
