package models

import (
	"time"

	"gorm.io/gorm"
)

// Merchant 商户表
type Merchant struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                 // 主键
	Name               string         `gorm:"uniqueIndex;not null" json:"name"`                     // 商户名
	Email              string         `gorm:"uniqueIndex;not null" json:"email"`                    // 登录邮箱
	PasswordHash       string         `gorm:"not null" json:"-"`                                    // 密码哈希（不返回给前端）
	APIKey             string         `gorm:"uniqueIndex;not null" json:"-"`                        // 网关 API 密钥
	WebhookSecret      string         `gorm:"not null" json:"-"`                                    // 回调签名密钥
	CallbackURL        string         `json:"callback_url"`                                         // 默认回调地址
	Status             string         `gorm:"index;not null;default:active" json:"status"`          // 商户状态
	SecurityPhraseHash string         `json:"-"`                                                    // 出金口令哈希（首次出金时设置）
	PayoutAddresses    JSON           `gorm:"type:json" json:"payout_addresses"`                    // 币种 -> 出金地址
	CommissionPercent  *Money         `gorm:"type:decimal(20,2)" json:"commission_percent,omitempty"` // 佣金比例覆盖（为空用平台默认）
	CommissionFixed    *Money         `gorm:"type:decimal(20,2)" json:"commission_fixed,omitempty"` // 固定佣金覆盖（为空用平台默认）
	MinPayoutFiat      *Money         `gorm:"type:decimal(20,2)" json:"min_payout_fiat,omitempty"`  // 最小出金额覆盖（为空用平台默认）
	LastLoginAt        *time.Time     `json:"last_login_at"`                                        // 最后登录时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                              // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                       // 软删除时间
}

// TableName 指定表名
func (Merchant) TableName() string {
	return "merchants"
}

// PayoutAddress 返回商户在指定币种下配置的出金地址
func (m *Merchant) PayoutAddress(crypto string) string {
	if m == nil || m.PayoutAddresses == nil {
		return ""
	}
	v, ok := m.PayoutAddresses[crypto]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
