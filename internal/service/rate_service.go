package service

import (
	"errors"
	"strings"
	"time"

	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
)

// RateService 汇率配置服务
type RateService struct {
	rateRepo repository.RateRepository
}

// NewRateService 创建汇率配置服务
func NewRateService(rateRepo repository.RateRepository) *RateService {
	return &RateService{rateRepo: rateRepo}
}

// UpsertRateInput 汇率配置参数
type UpsertRateInput struct {
	Crypto     string
	Fiat       string
	Source     string
	Rate       decimal.Decimal
	FeePolicy  string
	FeePercent decimal.Decimal
	FixedFee   decimal.Decimal
}

// List 查询全部汇率配置
func (s *RateService) List() ([]models.ExchangeRate, error) {
	return s.rateRepo.List()
}

// Upsert 写入币对汇率配置
func (s *RateService) Upsert(input UpsertRateInput) (*models.ExchangeRate, error) {
	crypto := strings.ToUpper(strings.TrimSpace(input.Crypto))
	fiat := strings.ToUpper(strings.TrimSpace(input.Fiat))
	if crypto == "" || fiat == "" {
		return nil, errors.New("币种与法币不能为空")
	}

	source := strings.ToLower(strings.TrimSpace(input.Source))
	switch source {
	case constants.RateSourceManual, constants.RateSourceCoinbase, constants.RateSourceBinance:
	case "":
		source = constants.RateSourceManual
	default:
		return nil, errors.New("不支持的汇率来源")
	}
	if source == constants.RateSourceManual && input.Rate.Sign() <= 0 {
		return nil, errors.New("手工汇率必须大于零")
	}

	policy := strings.ToLower(strings.TrimSpace(input.FeePolicy))
	switch policy {
	case constants.FeePolicyPercent, constants.FeePolicyFixed, constants.FeePolicyPercentAndFixed:
	case "":
		policy = constants.FeePolicyPercent
	default:
		return nil, errors.New("不支持的手续费策略")
	}

	rate, err := s.rateRepo.GetPair(crypto, fiat)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if rate == nil {
		rate = &models.ExchangeRate{
			Crypto:       crypto,
			FiatCurrency: fiat,
			CreatedAt:    now,
		}
	}
	rate.Source = source
	rate.Rate = models.NewCoinAmountFromDecimal(input.Rate)
	rate.FeePolicy = policy
	rate.FeePercent = models.NewMoneyFromDecimal(input.FeePercent)
	rate.FixedFee = models.NewMoneyFromDecimal(input.FixedFee)
	rate.UpdatedAt = now

	if err := s.rateRepo.Save(rate); err != nil {
		return nil, err
	}
	logger.Infow("exchange_rate_saved",
		"crypto", crypto, "fiat", fiat, "source", source, "fee_policy", policy)
	return rate, nil
}
