package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice 账单表（商户请求收款后生成）
type Invoice struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                        // 主键
	ExternalID    string         `gorm:"index:idx_invoice_merchant_external,unique;not null" json:"external_id"` // 商户侧订单号
	MerchantID    *uint          `gorm:"index:idx_invoice_merchant_external,unique;index" json:"merchant_id,omitempty"` // 商户ID（历史账单/出账账单为空）
	Crypto        string         `gorm:"index;not null" json:"crypto"`                                // 币种标识
	FiatCurrency  string         `gorm:"not null" json:"fiat"`                                        // 法币币种
	AmountFiat    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount_fiat"`    // 应收法币金额
	ExchangeRate  CoinAmount     `gorm:"type:decimal(32,8);not null;default:0" json:"exchange_rate"`  // 下单时汇率（1 crypto = rate fiat）
	AmountCrypto  CoinAmount     `gorm:"type:decimal(32,8);not null;default:0" json:"amount_crypto"`  // 应收链上金额（含渠道手续费）
	BalanceCrypto CoinAmount     `gorm:"type:decimal(32,8);not null;default:0" json:"balance_crypto"` // 已收链上金额
	BalanceFiat   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"balance_fiat"`   // 已收法币金额（按下单汇率折算）
	Status        string         `gorm:"index;not null" json:"status"`                                // 账单状态
	CallbackURL   string         `gorm:"not null" json:"callback_url"`                                // 商户回调地址
	CommissionFiat *Money        `gorm:"type:decimal(20,2)" json:"commission_fiat,omitempty"`         // 已计提佣金（为空表示未计提）
	PaidAt        *time.Time     `gorm:"index" json:"paid_at"`                                        // 达到已支付的时间
	NotifiedAt    *time.Time     `gorm:"index" json:"notified_at"`                                    // 商户回调确认时间（202）
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                     // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间

	// 关联
	Address      *InvoiceAddress `gorm:"foreignKey:InvoiceID" json:"address,omitempty"`      // 收款地址
	Transactions []Transaction   `gorm:"foreignKey:InvoiceID" json:"transactions,omitempty"` // 关联链上交易
}

// TableName 指定表名
func (Invoice) TableName() string {
	return "invoices"
}
