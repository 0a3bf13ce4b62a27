package settings_test

import (
	"testing"

	"github.com/google/uuid"

	"DebtLedger/internal/settings"
)

var admin = uuid.MustParse("00000000-0000-0000-0000-00000000ad01")

func TestDefaultParams_Valid(t *testing.T) {
	if err := settings.Validate(settings.DefaultParams()); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*settings.Params)
	}{
		{"zero min deposit", func(p *settings.Params) { p.MinDeposit = 0 }},
		{"base ratio at 100%", func(p *settings.Params) { p.BaseRatio = 1_000_000 }},
		{"target below base", func(p *settings.Params) { p.TargetRatio = 1_100_000 }},
		{"cap floor below base", func(p *settings.Params) { p.CapitalizationFloorRatio = 1_150_000 }},
		{"cap ceiling below floor", func(p *settings.Params) { p.CapitalizationCeilingRatio = 1_450_000 }},
		{"collapse threshold zero", func(p *settings.Params) { p.CollapseThresholdRatio = 0 }},
		{"collapse threshold above ceiling", func(p *settings.Params) { p.CollapseThresholdRatio = 1_700_000 }},
		{"zero repay dust floor", func(p *settings.Params) { p.RepayDustFloor = 0 }},
		{"negative fee rate", func(p *settings.Params) { p.TotalFeeRate = -1 }},
		{"fee rate at 10%", func(p *settings.Params) { p.TotalFeeRate = 100_000 }},
		{"fee share above 100%", func(p *settings.Params) { p.SystemFeeShare = 1_000_001 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := settings.DefaultParams()
			tt.mutate(&p)
			if err := settings.Validate(p); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestNewProvider_RejectsNilAdmin(t *testing.T) {
	if _, err := settings.NewProvider(settings.DefaultParams(), uuid.Nil); err == nil {
		t.Fatal("expected error for nil admin")
	}
}

func TestNewProvider_RejectsInvalidParams(t *testing.T) {
	p := settings.DefaultParams()
	p.MinDeposit = -1
	if _, err := settings.NewProvider(p, admin); err == nil {
		t.Fatal("expected error for invalid params")
	}
}

func TestProvider_IsAdmin(t *testing.T) {
	pr, err := settings.NewProvider(settings.DefaultParams(), admin)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if !pr.IsAdmin(admin) {
		t.Error("admin should hold the admin role")
	}
	if pr.IsAdmin(uuid.New()) {
		t.Error("random caller should not hold the admin role")
	}
}

func TestProvider_Update(t *testing.T) {
	pr, err := settings.NewProvider(settings.DefaultParams(), admin)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	next := settings.DefaultParams()
	next.MinDeposit = 60_000
	next.EffectiveSeq = 42

	// Non-admin rejected, params unchanged
	if uerr := pr.Update(uuid.New(), next); uerr == nil {
		t.Fatal("expected rejection for non-admin caller")
	}
	if got := pr.Current().MinDeposit; got != 50_000 {
		t.Errorf("min deposit changed after rejected update: %d", got)
	}

	// Admin with out-of-range params rejected
	bad := next
	bad.TotalFeeRate = 200_000
	if uerr := pr.Update(admin, bad); uerr == nil {
		t.Fatal("expected rejection for out-of-range params")
	}

	// Admin with valid params applies
	if uerr := pr.Update(admin, next); uerr != nil {
		t.Fatalf("admin update failed: %v", uerr)
	}
	got := pr.Current()
	if got.MinDeposit != 60_000 {
		t.Errorf("min deposit: got %d, want 60_000", got.MinDeposit)
	}
	if got.EffectiveSeq != 42 {
		t.Errorf("effective seq: got %d, want 42", got.EffectiveSeq)
	}
}

func TestProvider_Restore(t *testing.T) {
	pr, err := settings.NewProvider(settings.DefaultParams(), admin)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	snap := settings.DefaultParams()
	snap.TargetRatio = 1_550_000
	snap.EffectiveSeq = 99
	pr.Restore(snap)

	if got := pr.Current().TargetRatio; got != 1_550_000 {
		t.Errorf("target ratio: got %d, want 1_550_000", got)
	}
}
