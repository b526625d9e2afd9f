package models

import "time"

// ExchangeRate 汇率配置表（币种+法币 维度）
type ExchangeRate struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                      // 主键
	Crypto       string     `gorm:"index:idx_rate_pair,unique;not null" json:"crypto"`         // 币种标识
	FiatCurrency string     `gorm:"index:idx_rate_pair,unique;not null" json:"fiat"`           // 法币币种
	Source       string     `gorm:"not null;default:manual" json:"source"`                     // 汇率来源（manual/coinbase/binance）
	Rate         CoinAmount `gorm:"type:decimal(32,8);not null;default:0" json:"rate"`         // 手工汇率（source=manual 时生效）
	FeePolicy    string     `gorm:"not null;default:percent" json:"fee_policy"`                // 手续费策略
	FeePercent   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"fee_percent"`  // 渠道手续费比例
	FixedFee     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_fee"`    // 渠道固定手续费（法币）
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`                                   // 更新时间
}

// TableName 指定表名
func (ExchangeRate) TableName() string {
	return "exchange_rates"
}
