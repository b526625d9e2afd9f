package rates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shkeeper-next/internal/cache"
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
)

// Quote 一次询价结果
type Quote struct {
	Crypto     string          `json:"crypto"`
	Fiat       string          `json:"fiat"`
	Source     string          `json:"source"`
	Rate       decimal.Decimal `json:"rate"`        // 1 crypto = Rate fiat
	FeePolicy  string          `json:"fee_policy"`  // percent / fixed / percent_and_fixed
	FeePercent decimal.Decimal `json:"fee_percent"` // 渠道手续费比例
	FixedFee   decimal.Decimal `json:"fixed_fee"`   // 渠道固定手续费（法币）
}

// Resolver 汇率解析器（配置行决定来源，外部来源带短缓存）
type Resolver struct {
	rateRepo repository.RateRepository
	sources  map[string]Source
	cacheTTL time.Duration
}

// NewResolver 创建汇率解析器
func NewResolver(rateRepo repository.RateRepository, cacheTTL time.Duration, sources ...Source) *Resolver {
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		if s != nil {
			m[s.Name()] = s
		}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Resolver{
		rateRepo: rateRepo,
		sources:  m,
		cacheTTL: cacheTTL,
	}
}

// Resolve 取币种对法币的当前询价
func (r *Resolver) Resolve(ctx context.Context, crypto, fiat string) (*Quote, error) {
	crypto = strings.ToUpper(strings.TrimSpace(crypto))
	fiat = strings.ToUpper(strings.TrimSpace(fiat))

	pair, err := r.rateRepo.GetPair(crypto, fiat)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairNotConfigured, crypto, fiat)
	}

	quote := &Quote{
		Crypto:     crypto,
		Fiat:       fiat,
		Source:     pair.Source,
		FeePolicy:  pair.FeePolicy,
		FeePercent: pair.FeePercent.Decimal,
		FixedFee:   pair.FixedFee.Decimal,
	}
	if quote.FeePolicy == "" {
		quote.FeePolicy = constants.FeePolicyPercent
	}

	if pair.Source == "" || pair.Source == constants.RateSourceManual {
		if pair.Rate.Sign() <= 0 {
			return nil, fmt.Errorf("%w: manual rate not set for %s/%s", ErrRateUnavailable, crypto, fiat)
		}
		quote.Rate = pair.Rate.Decimal
		return quote, nil
	}

	rate, err := r.externalRate(ctx, pair.Source, crypto, fiat)
	if err != nil {
		return nil, err
	}
	quote.Rate = rate
	return quote, nil
}

func (r *Resolver) externalRate(ctx context.Context, sourceName, crypto, fiat string) (decimal.Decimal, error) {
	cacheKey := fmt.Sprintf("rate:%s:%s:%s", sourceName, crypto, fiat)
	var cached string
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		if rate, perr := decimal.NewFromString(cached); perr == nil && rate.Sign() > 0 {
			return rate, nil
		}
	}

	source, ok := r.sources[sourceName]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown source %s", ErrRateUnavailable, sourceName)
	}
	rate, err := source.Rate(ctx, crypto, fiat)
	if err != nil {
		return decimal.Zero, err
	}

	if err := cache.SetJSON(ctx, cacheKey, rate.String(), r.cacheTTL); err != nil {
		logger.Warnw("rate_cache_write_failed", "key", cacheKey, "error", err)
	}
	return rate, nil
}

// FiatToCrypto 法币金额折算应收链上金额（叠加渠道手续费）
func (q *Quote) FiatToCrypto(amountFiat decimal.Decimal) decimal.Decimal {
	return q.GrossFiat(amountFiat).DivRound(q.Rate, constants.CryptoScale)
}

// GrossFiat 法币金额叠加渠道手续费后的总额
func (q *Quote) GrossFiat(amountFiat decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	switch q.FeePolicy {
	case constants.FeePolicyFixed:
		return amountFiat.Add(q.FixedFee)
	case constants.FeePolicyPercentAndFixed:
		return amountFiat.Mul(hundred.Add(q.FeePercent)).Div(hundred).Add(q.FixedFee)
	default:
		return amountFiat.Mul(hundred.Add(q.FeePercent)).Div(hundred)
	}
}

// OrigFiat 从含手续费总额反推原始法币金额
func (q *Quote) OrigFiat(grossFiat decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	switch q.FeePolicy {
	case constants.FeePolicyFixed:
		return grossFiat.Sub(q.FixedFee)
	case constants.FeePolicyPercentAndFixed:
		return grossFiat.Sub(q.FixedFee).Mul(hundred).DivRound(hundred.Add(q.FeePercent), constants.FiatScale)
	default:
		return grossFiat.Mul(hundred).DivRound(hundred.Add(q.FeePercent), constants.FiatScale)
	}
}

// CryptoToFiat 链上金额按汇率折算法币（不含手续费）
func (q *Quote) CryptoToFiat(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(q.Rate).Round(constants.FiatScale)
}
