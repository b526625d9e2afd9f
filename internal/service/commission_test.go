package service

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateCommissionPercentAndFixed(t *testing.T) {
	gross := decimal.NewFromInt(100)
	commission, net := CalculateCommission(gross, decimal.NewFromInt(1), decimal.NewFromFloat(0.5))
	if !commission.Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("expected commission 1.5, got %s", commission.String())
	}
	if !net.Equal(decimal.NewFromFloat(98.5)) {
		t.Fatalf("expected net 98.5, got %s", net.String())
	}
}

func TestCalculateCommissionZero(t *testing.T) {
	gross := decimal.NewFromInt(100)
	commission, net := CalculateCommission(gross, decimal.Zero, decimal.Zero)
	if !commission.Equal(decimal.Zero) {
		t.Fatalf("expected zero commission, got %s", commission.String())
	}
	if !net.Equal(gross) {
		t.Fatalf("expected net to equal gross, got %s", net.String())
	}
}

func TestCalculateCommissionClampedToGross(t *testing.T) {
	gross := decimal.NewFromInt(10)
	commission, net := CalculateCommission(gross, decimal.NewFromInt(50), decimal.NewFromInt(20))
	if !commission.Equal(gross) {
		t.Fatalf("expected commission clamped to gross, got %s", commission.String())
	}
	if !net.Equal(decimal.Zero) {
		t.Fatalf("expected zero net, got %s", net.String())
	}
}

func TestCalculateCommissionNegativeClampedToZero(t *testing.T) {
	gross := decimal.NewFromInt(10)
	commission, net := CalculateCommission(gross, decimal.Zero, decimal.NewFromInt(-5))
	if !commission.Equal(decimal.Zero) {
		t.Fatalf("expected zero commission, got %s", commission.String())
	}
	if !net.Equal(gross) {
		t.Fatalf("expected net to equal gross, got %s", net.String())
	}
}
