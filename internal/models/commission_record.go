package models

import "time"

// CommissionRecord 佣金计提流水（每张账单最多一条）
type CommissionRecord struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                        // 主键
	MerchantID     uint      `gorm:"index;not null" json:"merchant_id"`                           // 商户ID
	InvoiceID      uint      `gorm:"uniqueIndex;not null" json:"invoice_id"`                      // 账单ID
	Crypto         string    `gorm:"not null" json:"crypto"`                                      // 币种标识
	FiatCurrency   string    `gorm:"not null" json:"fiat"`                                        // 法币币种
	GrossFiat      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"gross_fiat"`     // 入账毛额
	CommissionFiat Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commission_fiat"` // 计提佣金
	NetFiat        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"net_fiat"`       // 入可用余额的净额
	PercentApplied Money     `gorm:"type:decimal(20,2);not null;default:0" json:"percent_applied"` // 生效的比例
	FixedApplied   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_applied"`  // 生效的固定额
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                     // 创建时间
}

// TableName 指定表名
func (CommissionRecord) TableName() string {
	return "commission_records"
}
