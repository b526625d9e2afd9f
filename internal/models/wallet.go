package models

import "time"

// Wallet 币种钱包策略表（每个接入币种一条）
type Wallet struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                          // 主键
	Crypto           string    `gorm:"uniqueIndex;not null" json:"crypto"`                            // 币种标识
	Enabled          bool      `gorm:"not null;default:true" json:"enabled"`                          // 是否启用
	MinConfirmations uint      `gorm:"not null;default:1" json:"min_confirmations"`                   // 入账所需确认数
	LowerTolerance   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"lower_tolerance"`  // 少付容忍（法币）
	UpperTolerance   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"upper_tolerance"`  // 多付容忍（法币）
	PayoutFee        string    `gorm:"not null;default:''" json:"payout_fee"`                         // 出金手续费参数（按链语义解释）
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (Wallet) TableName() string {
	return "wallets"
}
