package chains

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCrypto     = errors.New("chains: unknown crypto")
	ErrPayoutUnsupported = errors.New("chains: payout not supported")
	ErrRequestFailed     = errors.New("chains: backend request failed")
	ErrResponseInvalid   = errors.New("chains: backend response invalid")
)

// ResolvedTx 链上后端按交易哈希解析出的一条转账记录
type ResolvedTx struct {
	Address       string          // 涉及地址
	Amount        decimal.Decimal // 转账金额（币本位）
	Confirmations uint            // 当前确认数
	Category      string          // receive / send 等
}

// Status 链上后端状态
type Status struct {
	LastBlock int64 `json:"last_block"` // 已同步区块高度
	Synced    bool  `json:"synced"`     // 是否追上链头
}

// Adapter 单币种链上后端能力
type Adapter interface {
	Crypto() string
	// ResolveTx 按交易哈希解析涉及本钱包的转账明细
	ResolveTx(ctx context.Context, txid string) ([]ResolvedTx, error)
	// GenerateAddress 生成新的收款地址
	GenerateAddress(ctx context.Context) (string, error)
	// Balance 查询钱包余额（币本位）
	Balance(ctx context.Context) (decimal.Decimal, error)
	// GetStatus 查询后端同步状态
	GetStatus(ctx context.Context) (*Status, error)
}

// PayoutResult 出金执行结果
type PayoutResult struct {
	TxIDs []string // 链上交易哈希列表
}

// Payer 支持主动出金的链上后端（可选能力）
type Payer interface {
	// CreatePayout 发起出金，fee 为空时由后端取默认手续费
	CreatePayout(ctx context.Context, destination string, amount decimal.Decimal, fee string) (*PayoutResult, error)
}
