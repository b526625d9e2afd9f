package models

import "time"

// InvoiceAddress 账单收款地址表（地址在同币种下唯一指向一张账单）
type InvoiceAddress struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                         // 主键
	InvoiceID uint      `gorm:"index;not null" json:"invoice_id"`                             // 账单ID
	Crypto    string    `gorm:"index:idx_addr_crypto,unique;not null" json:"crypto"`          // 币种标识
	Address   string    `gorm:"index:idx_addr_crypto,unique;not null" json:"address"`         // 链上收款地址
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                      // 创建时间
}

// TableName 指定表名
func (InvoiceAddress) TableName() string {
	return "invoice_addresses"
}
