package event

import (
	"encoding/json"
	"fmt"
)

// Decode reconstructs a typed event from a stored envelope payload.
// Used by recovery replay and by consumers of the event log.
func Decode(et EventType, payload []byte) (Event, error) {
	var evt Event

	switch et {
	case EventTypeReserveDeposit:
		evt = &ReserveDeposit{}
	case EventTypeReserveWithdrawal:
		evt = &ReserveWithdrawal{}
	case EventTypePositionOpen:
		evt = &PositionOpen{}
	case EventTypeCollateralAdd:
		evt = &CollateralAdd{}
	case EventTypeDebtRepay:
		evt = &DebtRepay{}
	case EventTypeCollateralWithdraw:
		evt = &CollateralWithdraw{}
	case EventTypeDebtWithdraw:
		evt = &DebtWithdraw{}
	case EventTypePositionClose:
		evt = &PositionClose{}
	case EventTypePositionTransfer:
		evt = &PositionTransfer{}
	case EventTypeCapitalize:
		evt = &Capitalize{}
	case EventTypeCapitalizeMax:
		evt = &CapitalizeMax{}
	case EventTypeDustCollapse:
		evt = &DustCollapse{}
	case EventTypeDebtRewardAccrual:
		evt = &DebtRewardAccrual{}
	case EventTypeFeeWithdrawal:
		evt = &FeeWithdrawal{}
	case EventTypePriceUpdate:
		evt = &PriceUpdate{}
	case EventTypeParamsUpdate:
		evt = &ParamsUpdate{}
	default:
		return nil, fmt.Errorf("decode: unknown event type %d", et)
	}

	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", et, err)
	}
	return evt, nil
}
