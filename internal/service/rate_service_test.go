package service

import (
	"testing"

	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
)

func TestRateServiceUpsert(t *testing.T) {
	db := openGatewayTestDB(t, "rate_upsert")
	svc := NewRateService(repository.NewRateRepository(db))

	rate, err := svc.Upsert(UpsertRateInput{
		Crypto: " btc ",
		Fiat:   "usd",
		Rate:   decimal.NewFromInt(50000),
	})
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if rate.Crypto != "BTC" || rate.FiatCurrency != "USD" {
		t.Fatalf("expected normalized pair, got %s/%s", rate.Crypto, rate.FiatCurrency)
	}
	if rate.Source != constants.RateSourceManual || rate.FeePolicy != constants.FeePolicyPercent {
		t.Fatalf("expected manual/percent defaults, got %s/%s", rate.Source, rate.FeePolicy)
	}

	// 同币对再次写入应更新而非新增
	updated, err := svc.Upsert(UpsertRateInput{
		Crypto:     "BTC",
		Fiat:       "USD",
		Rate:       decimal.NewFromInt(60000),
		FeePercent: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("second Upsert error: %v", err)
	}
	if updated.ID != rate.ID {
		t.Fatalf("expected same row, got %d and %d", rate.ID, updated.ID)
	}
	if !updated.Rate.Decimal.Equal(decimal.NewFromInt(60000)) {
		t.Fatalf("expected updated rate 60000, got %s", updated.Rate.String())
	}

	list, err := svc.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 configured pair, got %d", len(list))
	}
}

func TestRateServiceUpsertValidation(t *testing.T) {
	db := openGatewayTestDB(t, "rate_validation")
	svc := NewRateService(repository.NewRateRepository(db))

	if _, err := svc.Upsert(UpsertRateInput{Crypto: "", Fiat: "USD"}); err == nil {
		t.Fatalf("expected error for empty crypto")
	}
	if _, err := svc.Upsert(UpsertRateInput{Crypto: "BTC", Fiat: "USD", Source: "kraken"}); err == nil {
		t.Fatalf("expected error for unsupported source")
	}
	if _, err := svc.Upsert(UpsertRateInput{Crypto: "BTC", Fiat: "USD", Source: constants.RateSourceManual}); err == nil {
		t.Fatalf("expected error for manual rate without value")
	}
	if _, err := svc.Upsert(UpsertRateInput{
		Crypto: "BTC", Fiat: "USD", Rate: decimal.NewFromInt(1), FeePolicy: "weird",
	}); err == nil {
		t.Fatalf("expected error for unsupported fee policy")
	}
}
