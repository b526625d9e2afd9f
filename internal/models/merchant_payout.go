package models

import (
	"time"

	"gorm.io/gorm"
)

// MerchantPayout 商户出金单
type MerchantPayout struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                       // 主键
	MerchantID   uint           `gorm:"index;not null" json:"merchant_id"`                          // 商户ID
	Crypto       string         `gorm:"index;not null" json:"crypto"`                               // 币种标识
	FiatCurrency string         `gorm:"not null" json:"fiat"`                                       // 法币币种
	AmountFiat   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount_fiat"`   // 出金法币金额
	AmountCrypto CoinAmount     `gorm:"type:decimal(32,8);not null;default:0" json:"amount_crypto"` // 执行时折算链上金额
	Destination  string         `gorm:"not null" json:"destination"`                                // 出金地址
	Status       string         `gorm:"index;not null;default:pending" json:"status"`               // 出金状态
	TxIDs        StringArray    `gorm:"column:tx_ids;type:json" json:"txids"`                       // 链上交易哈希列表
	ErrorMessage string         `json:"error_message,omitempty"`                                    // 失败/驳回原因
	ProcessedAt  *time.Time     `gorm:"index" json:"processed_at"`                                  // 完成/失败时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                                    // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                             // 软删除时间
}

// TableName 指定表名
func (MerchantPayout) TableName() string {
	return "merchant_payouts"
}
