package models

import "time"

// PayoutRecord 后端出账回执记录（运营侧手动出账同样落此表）
type PayoutRecord struct {
	ID        uint        `gorm:"primarykey" json:"id"`                                 // 主键
	Crypto    string      `gorm:"index;not null" json:"crypto"`                         // 币种标识
	Amount    CoinAmount  `gorm:"type:decimal(32,8);not null;default:0" json:"amount"`  // 出账链上金额
	Dest      string      `gorm:"not null" json:"dest"`                                 // 出账地址
	Status    string      `gorm:"index;not null" json:"status"`                         // 后端回报状态
	TxIDs     StringArray `gorm:"column:tx_ids;type:json" json:"txids"`                 // 链上交易哈希列表
	CreatedAt time.Time   `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt time.Time   `gorm:"index" json:"updated_at"`                              // 更新时间
}

// TableName 指定表名
func (PayoutRecord) TableName() string {
	return "payout_records"
}
