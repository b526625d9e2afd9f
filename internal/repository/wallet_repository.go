package repository

import (
	"errors"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
)

// WalletRepository 币种钱包策略数据访问接口
type WalletRepository interface {
	GetByCrypto(crypto string) (*models.Wallet, error)
	Save(wallet *models.Wallet) error
	List() ([]models.Wallet, error)
	ListEnabled() ([]models.Wallet, error)
	WithTx(tx *gorm.DB) *GormWalletRepository
}

// GormWalletRepository GORM 钱包策略仓储实现
type GormWalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包策略仓储
func NewWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWalletRepository) WithTx(tx *gorm.DB) *GormWalletRepository {
	if tx == nil {
		return r
	}
	return &GormWalletRepository{db: tx}
}

// GetByCrypto 按币种获取钱包策略
func (r *GormWalletRepository) GetByCrypto(crypto string) (*models.Wallet, error) {
	if crypto == "" {
		return nil, nil
	}
	var wallet models.Wallet
	if err := r.db.Where("crypto = ?", crypto).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// Save 创建或更新钱包策略
func (r *GormWalletRepository) Save(wallet *models.Wallet) error {
	return r.db.Save(wallet).Error
}

// List 查询全部钱包策略
func (r *GormWalletRepository) List() ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := r.db.Order("crypto asc").Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// ListEnabled 查询启用中的钱包策略
func (r *GormWalletRepository) ListEnabled() ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := r.db.Where("enabled = ?", true).Order("crypto asc").Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}
