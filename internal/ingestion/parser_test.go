package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"DebtLedger/internal/event"
	"DebtLedger/internal/ingestion"
)

func rawFromJSON(t *testing.T, eventType string, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		EventType: eventType,
		Data:      data,
		Received:  time.Now(),
		Ack:       func() {},
		Nak:       func() {},
	}
}

func TestParseReserveDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"transfer_id":  "550e8400-e29b-41d4-a716-446655440000",
		"holder_id":    "660e8400-e29b-41d4-a716-446655440001",
		"amount":       int64(1_000_000),
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "ReserveDeposit", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rd, ok := evt.(*event.ReserveDeposit)
	if !ok {
		t.Fatalf("expected *event.ReserveDeposit, got %T", evt)
	}

	if rd.Amount != 1_000_000 {
		t.Errorf("amount: got %d, want 1_000_000", rd.Amount)
	}
	if rd.Sequence != 1 {
		t.Errorf("sequence: got %d, want 1", rd.Sequence)
	}
	if rd.Timestamp != 1700000000000000 {
		t.Errorf("timestamp: got %d, want 1700000000000000", rd.Timestamp)
	}
	if rd.EventType() != event.EventTypeReserveDeposit {
		t.Errorf("event type: got %v, want ReserveDeposit", rd.EventType())
	}
	if rd.IdempotencyKey() != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("idempotency key: got %s", rd.IdempotencyKey())
	}
}

func TestParseReserveWithdrawal(t *testing.T) {
	payload := map[string]interface{}{
		"transfer_id":  "550e8400-e29b-41d4-a716-446655440000",
		"holder_id":    "660e8400-e29b-41d4-a716-446655440001",
		"amount":       int64(250_000),
		"sequence":     int64(7),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "ReserveWithdrawal", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rw, ok := evt.(*event.ReserveWithdrawal)
	if !ok {
		t.Fatalf("expected *event.ReserveWithdrawal, got %T", evt)
	}
	if rw.Amount != 250_000 {
		t.Errorf("amount: got %d, want 250_000", rw.Amount)
	}
}

func TestParsePositionOpen(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"collateral":   int64(1_000_000),
		"debt":         int64(1_000_000_000),
		"sequence":     int64(3),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "PositionOpen", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	po, ok := evt.(*event.PositionOpen)
	if !ok {
		t.Fatalf("expected *event.PositionOpen, got %T", evt)
	}

	if po.Collateral != 1_000_000 {
		t.Errorf("collateral: got %d, want 1_000_000", po.Collateral)
	}
	if po.Debt != 1_000_000_000 {
		t.Errorf("debt: got %d, want 1_000_000_000", po.Debt)
	}
	if po.Sequence != 3 {
		t.Errorf("sequence: got %d, want 3", po.Sequence)
	}
}

func TestParseDebtWithdraw(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"position_id":  uint64(42),
		"amount":       int64(500_000_000),
		"sequence":     int64(9),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "DebtWithdraw", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dw, ok := evt.(*event.DebtWithdraw)
	if !ok {
		t.Fatalf("expected *event.DebtWithdraw, got %T", evt)
	}

	if dw.PositionID != 42 {
		t.Errorf("position_id: got %d, want 42", dw.PositionID)
	}
	if dw.Amount != 500_000_000 {
		t.Errorf("amount: got %d, want 500_000_000", dw.Amount)
	}
}

func TestParsePositionTransfer(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"to_id":        "770e8400-e29b-41d4-a716-446655440002",
		"position_id":  uint64(5),
		"sequence":     int64(11),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "PositionTransfer", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pt, ok := evt.(*event.PositionTransfer)
	if !ok {
		t.Fatalf("expected *event.PositionTransfer, got %T", evt)
	}
	if pt.To.String() != "770e8400-e29b-41d4-a716-446655440002" {
		t.Errorf("to_id: got %s", pt.To)
	}
	if pt.PositionID != 5 {
		t.Errorf("position_id: got %d, want 5", pt.PositionID)
	}
}

func TestParseCapitalize(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"position_id":  uint64(7),
		"repay":        int64(400_000_000),
		"sequence":     int64(13),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "Capitalize", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cp, ok := evt.(*event.Capitalize)
	if !ok {
		t.Fatalf("expected *event.Capitalize, got %T", evt)
	}
	if cp.Repay != 400_000_000 {
		t.Errorf("repay: got %d, want 400_000_000", cp.Repay)
	}
	if cp.PositionID != 7 {
		t.Errorf("position_id: got %d, want 7", cp.PositionID)
	}
}

func TestParsePriceUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"rate":           int64(2_000_000_000),
		"scaling_factor": int64(1_000_000),
		"sequence":       int64(100),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, "PriceUpdate", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.PriceUpdate)
	if !ok {
		t.Fatalf("expected *event.PriceUpdate, got %T", evt)
	}

	if pu.Rate != 2_000_000_000 {
		t.Errorf("rate: got %d, want 2_000_000_000", pu.Rate)
	}
	if pu.PriceSequence != 100 {
		t.Errorf("price_sequence: got %d, want 100", pu.PriceSequence)
	}
	if pu.IdempotencyKey() != "price:100" {
		t.Errorf("idempotency key: got %s, want price:100", pu.IdempotencyKey())
	}
}

func TestParsePriceUpdate_NonPositiveRate_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"rate":           int64(0),
		"scaling_factor": int64(1_000_000),
		"sequence":       int64(100),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, "PriceUpdate", payload)
	_, err := ingestion.ParseRawEvent(raw)
	if err == nil {
		t.Fatal("expected error for non-positive rate")
	}
}

func TestParseParamsUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":                   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":                    "660e8400-e29b-41d4-a716-446655440001",
		"min_deposit":                  int64(50_000),
		"target_ratio":                 int64(1_500_000),
		"base_ratio":                   int64(1_150_000),
		"capitalization_floor_ratio":   int64(1_450_000),
		"capitalization_ceiling_ratio": int64(1_600_000),
		"collapse_threshold_ratio":     int64(1_450_000),
		"repay_dust_floor":             int64(100_000),
		"total_fee_rate":               int64(30_000),
		"system_fee_share":             int64(500_000),
		"sequence":                     int64(2),
		"timestamp_us":                 int64(1700000000000000),
	}

	raw := rawFromJSON(t, "ParamsUpdate", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.ParamsUpdate)
	if !ok {
		t.Fatalf("expected *event.ParamsUpdate, got %T", evt)
	}

	if pu.TargetRatio != 1_500_000 {
		t.Errorf("target_ratio: got %d, want 1_500_000", pu.TargetRatio)
	}
	if pu.TotalFeeRate != 30_000 {
		t.Errorf("total_fee_rate: got %d, want 30_000", pu.TotalFeeRate)
	}
	if pu.SystemFeeShare != 500_000 {
		t.Errorf("system_fee_share: got %d, want 500_000", pu.SystemFeeShare)
	}
}

func TestParseFeeWithdrawal(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":     "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":      "660e8400-e29b-41d4-a716-446655440001",
		"beneficiary_id": "770e8400-e29b-41d4-a716-446655440002",
		"sequence":       int64(4),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, "FeeWithdrawal", payload)
	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	fw, ok := evt.(*event.FeeWithdrawal)
	if !ok {
		t.Fatalf("expected *event.FeeWithdrawal, got %T", evt)
	}
	if fw.Beneficiary.String() != "770e8400-e29b-41d4-a716-446655440002" {
		t.Errorf("beneficiary_id: got %s", fw.Beneficiary)
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{EventType: "NonExistentType", Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw)
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{EventType: "PositionOpen", Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":   "not-a-uuid",
		"caller_id":    "also-not-a-uuid",
		"collateral":   int64(1),
		"debt":         int64(1),
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, "PositionOpen", payload)
	_, err := ingestion.ParseRawEvent(raw)
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
