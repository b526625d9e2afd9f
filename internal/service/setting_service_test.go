package service

import (
	"testing"

	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
)

func TestGetPlatformSettingsDefaults(t *testing.T) {
	db := openGatewayTestDB(t, "settings_defaults")
	svc := NewSettingService(repository.NewSettingRepository(db))

	settings, err := svc.GetPlatformSettings()
	if err != nil {
		t.Fatalf("GetPlatformSettings error: %v", err)
	}
	if !settings.CommissionPercent.Decimal.Equal(decimal.Zero) {
		t.Fatalf("expected zero percent, got %s", settings.CommissionPercent.String())
	}
	if !settings.CommissionFixed.Decimal.Equal(decimal.Zero) {
		t.Fatalf("expected zero fixed, got %s", settings.CommissionFixed.String())
	}
	if !settings.MinPayoutFiat.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected default min payout 50, got %s", settings.MinPayoutFiat.String())
	}
	if !settings.AutoApproveMerchants {
		t.Fatalf("expected auto approve enabled by default")
	}
}

func TestUpdatePlatformSettingsRoundtrip(t *testing.T) {
	db := openGatewayTestDB(t, "settings_roundtrip")
	svc := NewSettingService(repository.NewSettingRepository(db))

	updated, err := svc.UpdatePlatformSettings(PlatformSettings{
		CommissionPercent:    models.NewMoneyFromDecimal(decimal.NewFromFloat(1.5)),
		CommissionFixed:      models.NewMoneyFromDecimal(decimal.NewFromFloat(0.3)),
		MinPayoutFiat:        models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		AutoApproveMerchants: false,
	})
	if err != nil {
		t.Fatalf("UpdatePlatformSettings error: %v", err)
	}
	if !updated.CommissionPercent.Decimal.Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("unexpected percent %s", updated.CommissionPercent.String())
	}
	if !updated.MinPayoutFiat.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected min payout %s", updated.MinPayoutFiat.String())
	}

	// 重新读取仍能拿到更新后的值
	again, err := svc.GetPlatformSettings()
	if err != nil {
		t.Fatalf("GetPlatformSettings error: %v", err)
	}
	if !again.CommissionFixed.Decimal.Equal(decimal.NewFromFloat(0.3)) {
		t.Fatalf("unexpected fixed %s", again.CommissionFixed.String())
	}
	if again.AutoApproveMerchants {
		t.Fatalf("expected auto approve disabled after update")
	}
}
