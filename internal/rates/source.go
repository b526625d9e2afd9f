package rates

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrRateUnavailable   = errors.New("rates: rate unavailable")
	ErrPairNotConfigured = errors.New("rates: pair not configured")
)

// Source 汇率来源（1 crypto = rate fiat）
type Source interface {
	Name() string
	Rate(ctx context.Context, crypto, fiat string) (decimal.Decimal, error)
}
