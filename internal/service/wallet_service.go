package service

import (
	"context"
	"strings"
	"time"

	"github.com/shkeeper-next/internal/chains"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
)

// WalletService 币种钱包策略服务
type WalletService struct {
	walletRepo repository.WalletRepository
	registry   *chains.Registry
}

// NewWalletService 创建钱包策略服务
func NewWalletService(walletRepo repository.WalletRepository, registry *chains.Registry) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		registry:   registry,
	}
}

// WalletStatus 钱包策略与链上状态
type WalletStatus struct {
	Wallet    *models.Wallet  `json:"wallet"`
	Balance   decimal.Decimal `json:"balance"`
	LastBlock int64           `json:"last_block"`
	Synced    bool            `json:"synced"`
	Online    bool            `json:"online"`
}

// UpdateWalletInput 钱包策略更新参数
type UpdateWalletInput struct {
	Crypto           string
	Enabled          *bool
	MinConfirmations *uint
	LowerTolerance   *decimal.Decimal
	UpperTolerance   *decimal.Decimal
	PayoutFee        *string
}

// List 查询全部钱包策略
func (s *WalletService) List() ([]models.Wallet, error) {
	return s.walletRepo.List()
}

// GetStatus 查询单个币种的策略与链上状态
func (s *WalletService) GetStatus(ctx context.Context, crypto string) (*WalletStatus, error) {
	crypto = strings.ToUpper(strings.TrimSpace(crypto))
	adapter, err := s.registry.Get(crypto)
	if err != nil {
		return nil, ErrCryptoNotSupported
	}

	wallet, err := s.walletRepo.GetByCrypto(crypto)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		wallet = &models.Wallet{Crypto: crypto, Enabled: true, MinConfirmations: 1}
	}

	result := &WalletStatus{Wallet: wallet}
	balance, err := adapter.Balance(ctx)
	if err != nil {
		logger.Warnw("wallet_balance_query_failed", "crypto", crypto, "error", err)
		return result, nil
	}
	result.Balance = balance
	result.Online = true

	status, err := adapter.GetStatus(ctx)
	if err != nil {
		logger.Warnw("wallet_status_query_failed", "crypto", crypto, "error", err)
		return result, nil
	}
	result.LastBlock = status.LastBlock
	result.Synced = status.Synced
	return result, nil
}

// Update 更新钱包策略，记录不存在时创建
func (s *WalletService) Update(input UpdateWalletInput) (*models.Wallet, error) {
	crypto := strings.ToUpper(strings.TrimSpace(input.Crypto))
	if !s.registry.Has(crypto) {
		return nil, ErrCryptoNotSupported
	}

	wallet, err := s.walletRepo.GetByCrypto(crypto)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if wallet == nil {
		wallet = &models.Wallet{
			Crypto:           crypto,
			Enabled:          true,
			MinConfirmations: 1,
			CreatedAt:        now,
		}
	}

	if input.Enabled != nil {
		wallet.Enabled = *input.Enabled
	}
	if input.MinConfirmations != nil && *input.MinConfirmations > 0 {
		wallet.MinConfirmations = *input.MinConfirmations
	}
	if input.LowerTolerance != nil && input.LowerTolerance.Sign() >= 0 {
		wallet.LowerTolerance = models.NewMoneyFromDecimal(*input.LowerTolerance)
	}
	if input.UpperTolerance != nil && input.UpperTolerance.Sign() >= 0 {
		wallet.UpperTolerance = models.NewMoneyFromDecimal(*input.UpperTolerance)
	}
	if input.PayoutFee != nil {
		wallet.PayoutFee = strings.TrimSpace(*input.PayoutFee)
	}
	wallet.UpdatedAt = now

	if err := s.walletRepo.Save(wallet); err != nil {
		return nil, err
	}
	logger.Infow("wallet_policy_updated",
		"crypto", crypto, "enabled", wallet.Enabled, "min_confirmations", wallet.MinConfirmations)
	return wallet, nil
}
