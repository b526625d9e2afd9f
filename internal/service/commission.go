package service

import (
	"time"

	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// CalculateCommission 计算佣金与商户净额，佣金不超过总额
func CalculateCommission(gross, percent, fixed decimal.Decimal) (commission, net decimal.Decimal) {
	commission = gross.Mul(percent).Div(oneHundred).Add(fixed)
	if commission.GreaterThan(gross) {
		commission = gross
	}
	if commission.Sign() < 0 {
		commission = decimal.Zero
	}
	net = gross.Sub(commission)
	return commission, net
}

// creditMerchantBalance 把结算净额计入商户台账，桶不存在时创建
func creditMerchantBalance(
	tx *gorm.DB,
	balanceRepo repository.BalanceRepository,
	merchantID uint,
	crypto, fiatCurrency string,
	gross, commission, net decimal.Decimal,
	now time.Time,
) error {
	repo := balanceRepo.WithTx(tx)
	bucket, err := repo.GetBucketForUpdate(merchantID, crypto, fiatCurrency)
	if err != nil {
		return err
	}
	if bucket == nil {
		bucket = &models.MerchantBalance{
			MerchantID:   merchantID,
			Crypto:       crypto,
			FiatCurrency: fiatCurrency,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.Create(bucket); err != nil {
			return err
		}
	}
	bucket.TotalReceived = models.NewMoneyFromDecimal(bucket.TotalReceived.Decimal.Add(gross))
	bucket.TotalCommission = models.NewMoneyFromDecimal(bucket.TotalCommission.Decimal.Add(commission))
	bucket.AvailableBalance = models.NewMoneyFromDecimal(bucket.AvailableBalance.Decimal.Add(net))
	bucket.UpdatedAt = now
	return repo.Update(bucket)
}
