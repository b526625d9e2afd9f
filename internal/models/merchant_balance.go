package models

import "time"

// MerchantBalance 商户资金台账（商户+币种+法币 维度）
type MerchantBalance struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                            // 主键
	MerchantID       uint      `gorm:"index:idx_balance_bucket,unique;not null" json:"merchant_id"`     // 商户ID
	Crypto           string    `gorm:"index:idx_balance_bucket,unique;not null" json:"crypto"`          // 币种标识
	FiatCurrency     string    `gorm:"index:idx_balance_bucket,unique;not null" json:"fiat"`            // 法币币种
	AvailableBalance Money     `gorm:"type:decimal(20,2);not null;default:0" json:"available_balance"`  // 可用余额
	PendingBalance   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"pending_balance"`    // 出金在途余额
	TotalReceived    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_received"`     // 累计入账（毛额）
	TotalCommission  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_commission"`   // 累计佣金
	TotalPaidOut     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_paid_out"`     // 累计已出金
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`                                         // 更新时间
}

// TableName 指定表名
func (MerchantBalance) TableName() string {
	return "merchant_balances"
}
