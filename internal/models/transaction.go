package models

import "time"

// Transaction 已确认链上交易表
type Transaction struct {
	ID                    uint       `gorm:"primarykey" json:"id"`                                         // 主键
	InvoiceID             *uint      `gorm:"index" json:"invoice_id,omitempty"`                            // 关联账单ID（出账交易为空）
	Crypto                string     `gorm:"index:idx_tx_unique,unique;not null" json:"crypto"`            // 币种标识
	TxID                  string     `gorm:"index:idx_tx_unique,unique;not null" json:"txid"`              // 链上交易哈希
	Address               string     `gorm:"index:idx_tx_unique,unique;not null" json:"address"`           // 收款/出款地址
	Category              string     `gorm:"not null" json:"category"`                                     // receive / send
	Amount                CoinAmount `gorm:"type:decimal(32,8);not null;default:0" json:"amount"`          // 链上金额
	AmountFiat            Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount_fiat"`     // 入账时折算法币金额
	Confirmations         uint       `gorm:"not null;default:0" json:"confirmations"`                      // 入账时确认数
	NeedMoreConfirmations bool       `gorm:"index;not null;default:false" json:"need_more_confirmations"`  // 是否仍需等待确认
	CallbackConfirmed     bool       `gorm:"index;not null;default:false" json:"callback_confirmed"`       // 商户回调是否已确认（202）
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt             time.Time  `gorm:"index" json:"updated_at"`                                      // 更新时间
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}

// UnconfirmedTransaction 零确认交易表（同币种+哈希+地址仅保留一条）
type UnconfirmedTransaction struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                   // 主键
	Crypto            string     `gorm:"index:idx_utx_unique,unique;not null" json:"crypto"`     // 币种标识
	TxID              string     `gorm:"index:idx_utx_unique,unique;not null" json:"txid"`       // 链上交易哈希
	Address           string     `gorm:"index:idx_utx_unique,unique;not null" json:"address"`    // 收款地址
	Amount            CoinAmount `gorm:"type:decimal(32,8);not null;default:0" json:"amount"`    // 链上金额
	CallbackConfirmed bool       `gorm:"index;not null;default:false" json:"callback_confirmed"` // 零确认通知是否已确认（202）
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (UnconfirmedTransaction) TableName() string {
	return "unconfirmed_transactions"
}
