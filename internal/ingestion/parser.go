package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"DebtLedger/internal/event"
)

// ParseRawEvent converts a raw wire message into a typed event. Wire payloads
// use snake_case field names to match upstream producers; identifiers must be
// valid UUIDs since they double as idempotency keys.
func ParseRawEvent(raw RawEvent) (event.Event, error) {
	switch raw.EventType {
	case "ReserveDeposit":
		return parseReserveDeposit(raw.Data)
	case "ReserveWithdrawal":
		return parseReserveWithdrawal(raw.Data)
	case "PositionOpen":
		return parsePositionOpen(raw.Data)
	case "CollateralAdd":
		return parseCollateralAdd(raw.Data)
	case "DebtRepay":
		return parseDebtRepay(raw.Data)
	case "CollateralWithdraw":
		return parseCollateralWithdraw(raw.Data)
	case "DebtWithdraw":
		return parseDebtWithdraw(raw.Data)
	case "PositionClose":
		return parsePositionClose(raw.Data)
	case "PositionTransfer":
		return parsePositionTransfer(raw.Data)
	case "Capitalize":
		return parseCapitalize(raw.Data)
	case "CapitalizeMax":
		return parseCapitalizeMax(raw.Data)
	case "DustCollapse":
		return parseDustCollapse(raw.Data)
	case "DebtRewardAccrual":
		return parseDebtRewardAccrual(raw.Data)
	case "FeeWithdrawal":
		return parseFeeWithdrawal(raw.Data)
	case "PriceUpdate":
		return parsePriceUpdate(raw.Data)
	case "ParamsUpdate":
		return parseParamsUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", raw.EventType)
	}
}

type reserveMoveJSON struct {
	TransferID  string `json:"transfer_id"`
	HolderID    string `json:"holder_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseReserveDeposit(data []byte) (*event.ReserveDeposit, error) {
	var j reserveMoveJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReserveDeposit: %w", err)
	}
	transferID, err := uuid.Parse(j.TransferID)
	if err != nil {
		return nil, fmt.Errorf("parse transfer_id: %w", err)
	}
	holderID, err := uuid.Parse(j.HolderID)
	if err != nil {
		return nil, fmt.Errorf("parse holder_id: %w", err)
	}
	return &event.ReserveDeposit{
		DepositID: transferID,
		Holder:    holderID,
		Amount:    j.Amount,
		Timestamp: j.TimestampUs,
		Sequence:  j.Sequence,
	}, nil
}

func parseReserveWithdrawal(data []byte) (*event.ReserveWithdrawal, error) {
	var j reserveMoveJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReserveWithdrawal: %w", err)
	}
	transferID, err := uuid.Parse(j.TransferID)
	if err != nil {
		return nil, fmt.Errorf("parse transfer_id: %w", err)
	}
	holderID, err := uuid.Parse(j.HolderID)
	if err != nil {
		return nil, fmt.Errorf("parse holder_id: %w", err)
	}
	return &event.ReserveWithdrawal{
		WithdrawalID: transferID,
		Holder:       holderID,
		Amount:       j.Amount,
		Timestamp:    j.TimestampUs,
		Sequence:     j.Sequence,
	}, nil
}

type positionOpenJSON struct {
	RequestID   string `json:"request_id"`
	CallerID    string `json:"caller_id"`
	Collateral  int64  `json:"collateral"`
	Debt        int64  `json:"debt"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePositionOpen(data []byte) (*event.PositionOpen, error) {
	var j positionOpenJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionOpen: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.PositionOpen{
		RequestID:  requestID,
		Caller:     callerID,
		Collateral: j.Collateral,
		Debt:       j.Debt,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

// positionMutationJSON covers the four amount-bearing position operations.
type positionMutationJSON struct {
	RequestID   string `json:"request_id"`
	CallerID    string `json:"caller_id"`
	PositionID  uint64 `json:"position_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func (j *positionMutationJSON) ids() (uuid.UUID, uuid.UUID, error) {
	return parseRequestCaller(j.RequestID, j.CallerID)
}

func parseCollateralAdd(data []byte) (*event.CollateralAdd, error) {
	var j positionMutationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CollateralAdd: %w", err)
	}
	requestID, callerID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &event.CollateralAdd{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Amount:     j.Amount,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

func parseDebtRepay(data []byte) (*event.DebtRepay, error) {
	var j positionMutationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DebtRepay: %w", err)
	}
	requestID, callerID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &event.DebtRepay{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Amount:     j.Amount,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

func parseCollateralWithdraw(data []byte) (*event.CollateralWithdraw, error) {
	var j positionMutationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CollateralWithdraw: %w", err)
	}
	requestID, callerID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &event.CollateralWithdraw{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Amount:     j.Amount,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

func parseDebtWithdraw(data []byte) (*event.DebtWithdraw, error) {
	var j positionMutationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DebtWithdraw: %w", err)
	}
	requestID, callerID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &event.DebtWithdraw{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Amount:     j.Amount,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

// positionTargetJSON covers operations that name a position but no amount.
type positionTargetJSON struct {
	RequestID   string `json:"request_id"`
	CallerID    string `json:"caller_id"`
	PositionID  uint64 `json:"position_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePositionClose(data []byte) (*event.PositionClose, error) {
	var j positionTargetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionClose: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.PositionClose{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

type positionTransferJSON struct {
	RequestID   string `json:"request_id"`
	CallerID    string `json:"caller_id"`
	ToID        string `json:"to_id"`
	PositionID  uint64 `json:"position_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePositionTransfer(data []byte) (*event.PositionTransfer, error) {
	var j positionTransferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionTransfer: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	toID, err := uuid.Parse(j.ToID)
	if err != nil {
		return nil, fmt.Errorf("parse to_id: %w", err)
	}
	return &event.PositionTransfer{
		RequestID:  requestID,
		Caller:     callerID,
		To:         toID,
		PositionID: j.PositionID,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

type capitalizeJSON struct {
	RequestID   string `json:"request_id"`
	CallerID    string `json:"caller_id"`
	PositionID  uint64 `json:"position_id"`
	Repay       int64  `json:"repay"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseCapitalize(data []byte) (*event.Capitalize, error) {
	var j capitalizeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Capitalize: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.Capitalize{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Repay:      j.Repay,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

func parseCapitalizeMax(data []byte) (*event.CapitalizeMax, error) {
	var j positionTargetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CapitalizeMax: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.CapitalizeMax{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

func parseDustCollapse(data []byte) (*event.DustCollapse, error) {
	var j positionTargetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DustCollapse: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.DustCollapse{
		RequestID:  requestID,
		Caller:     callerID,
		PositionID: j.PositionID,
		Timestamp:  j.TimestampUs,
		Sequence:   j.Sequence,
	}, nil
}

type rewardAccrualJSON struct {
	RequestID   string `json:"request_id"`
	PayerID     string `json:"payer_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDebtRewardAccrual(data []byte) (*event.DebtRewardAccrual, error) {
	var j rewardAccrualJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DebtRewardAccrual: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	payerID, err := uuid.Parse(j.PayerID)
	if err != nil {
		return nil, fmt.Errorf("parse payer_id: %w", err)
	}
	return &event.DebtRewardAccrual{
		RequestID: requestID,
		Payer:     payerID,
		Amount:    j.Amount,
		Timestamp: j.TimestampUs,
		Sequence:  j.Sequence,
	}, nil
}

type feeWithdrawalJSON struct {
	RequestID     string `json:"request_id"`
	CallerID      string `json:"caller_id"`
	BeneficiaryID string `json:"beneficiary_id"`
	Sequence      int64  `json:"sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parseFeeWithdrawal(data []byte) (*event.FeeWithdrawal, error) {
	var j feeWithdrawalJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FeeWithdrawal: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	beneficiaryID, err := uuid.Parse(j.BeneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("parse beneficiary_id: %w", err)
	}
	return &event.FeeWithdrawal{
		RequestID:   requestID,
		Caller:      callerID,
		Beneficiary: beneficiaryID,
		Timestamp:   j.TimestampUs,
		Sequence:    j.Sequence,
	}, nil
}

type priceUpdateJSON struct {
	Rate          int64 `json:"rate"`
	ScalingFactor int64 `json:"scaling_factor"`
	Sequence      int64 `json:"sequence"`
	TimestampUs   int64 `json:"timestamp_us"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}
	if j.Rate <= 0 {
		return nil, fmt.Errorf("price rate must be positive, got %d", j.Rate)
	}
	return &event.PriceUpdate{
		Rate:           j.Rate,
		ScalingFactor:  j.ScalingFactor,
		PriceSequence:  j.Sequence,
		PriceTimestamp: j.TimestampUs,
	}, nil
}

type paramsUpdateJSON struct {
	RequestID                  string `json:"request_id"`
	CallerID                   string `json:"caller_id"`
	MinDeposit                 int64  `json:"min_deposit"`
	TargetRatio                int64  `json:"target_ratio"`
	BaseRatio                  int64  `json:"base_ratio"`
	CapitalizationFloorRatio   int64  `json:"capitalization_floor_ratio"`
	CapitalizationCeilingRatio int64  `json:"capitalization_ceiling_ratio"`
	CollapseThresholdRatio     int64  `json:"collapse_threshold_ratio"`
	RepayDustFloor             int64  `json:"repay_dust_floor"`
	TotalFeeRate               int64  `json:"total_fee_rate"`
	SystemFeeShare             int64  `json:"system_fee_share"`
	Sequence                   int64  `json:"sequence"`
	TimestampUs                int64  `json:"timestamp_us"`
}

func parseParamsUpdate(data []byte) (*event.ParamsUpdate, error) {
	var j paramsUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ParamsUpdate: %w", err)
	}
	requestID, callerID, err := parseRequestCaller(j.RequestID, j.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.ParamsUpdate{
		RequestID:                  requestID,
		Caller:                     callerID,
		MinDeposit:                 j.MinDeposit,
		TargetRatio:                j.TargetRatio,
		BaseRatio:                  j.BaseRatio,
		CapitalizationFloorRatio:   j.CapitalizationFloorRatio,
		CapitalizationCeilingRatio: j.CapitalizationCeilingRatio,
		CollapseThresholdRatio:     j.CollapseThresholdRatio,
		RepayDustFloor:             j.RepayDustFloor,
		TotalFeeRate:               j.TotalFeeRate,
		SystemFeeShare:             j.SystemFeeShare,
		Timestamp:                  j.TimestampUs,
		Sequence:                   j.Sequence,
	}, nil
}

func parseRequestCaller(requestID, callerID string) (uuid.UUID, uuid.UUID, error) {
	req, err := uuid.Parse(requestID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse request_id: %w", err)
	}
	caller, err := uuid.Parse(callerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse caller_id: %w", err)
	}
	return req, caller, nil
}
