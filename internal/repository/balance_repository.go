package repository

import (
	"errors"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRepository 商户资金台账数据访问接口
type BalanceRepository interface {
	GetBucket(merchantID uint, crypto, fiat string) (*models.MerchantBalance, error)
	GetBucketForUpdate(merchantID uint, crypto, fiat string) (*models.MerchantBalance, error)
	GetRichestBucketForUpdate(merchantID uint, crypto string) (*models.MerchantBalance, error)
	ListByMerchant(merchantID uint) ([]models.MerchantBalance, error)
	Create(balance *models.MerchantBalance) error
	Update(balance *models.MerchantBalance) error
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormBalanceRepository
}

// GormBalanceRepository GORM 资金台账仓储实现
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository 创建资金台账仓储
func NewBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// Transaction 执行数据库事务
func (r *GormBalanceRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// WithTx 绑定事务
func (r *GormBalanceRepository) WithTx(tx *gorm.DB) *GormBalanceRepository {
	if tx == nil {
		return r
	}
	return &GormBalanceRepository{db: tx}
}

// GetBucket 获取台账分桶
func (r *GormBalanceRepository) GetBucket(merchantID uint, crypto, fiat string) (*models.MerchantBalance, error) {
	if merchantID == 0 || crypto == "" || fiat == "" {
		return nil, nil
	}
	var balance models.MerchantBalance
	if err := r.db.Where("merchant_id = ? AND crypto = ? AND fiat_currency = ?", merchantID, crypto, fiat).
		First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

// GetBucketForUpdate 加锁获取台账分桶
func (r *GormBalanceRepository) GetBucketForUpdate(merchantID uint, crypto, fiat string) (*models.MerchantBalance, error) {
	if merchantID == 0 || crypto == "" || fiat == "" {
		return nil, nil
	}
	var balance models.MerchantBalance
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_id = ? AND crypto = ? AND fiat_currency = ?", merchantID, crypto, fiat).
		First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

// GetRichestBucketForUpdate 加锁获取指定币种下可用余额最高的分桶
func (r *GormBalanceRepository) GetRichestBucketForUpdate(merchantID uint, crypto string) (*models.MerchantBalance, error) {
	if merchantID == 0 || crypto == "" {
		return nil, nil
	}
	var balance models.MerchantBalance
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_id = ? AND crypto = ?", merchantID, crypto).
		Order("available_balance desc").
		First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

// ListByMerchant 查询商户全部台账分桶
func (r *GormBalanceRepository) ListByMerchant(merchantID uint) ([]models.MerchantBalance, error) {
	if merchantID == 0 {
		return []models.MerchantBalance{}, nil
	}
	var balances []models.MerchantBalance
	if err := r.db.Where("merchant_id = ?", merchantID).Order("crypto asc").Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}

// Create 创建台账分桶
func (r *GormBalanceRepository) Create(balance *models.MerchantBalance) error {
	return r.db.Create(balance).Error
}

// Update 更新台账分桶
func (r *GormBalanceRepository) Update(balance *models.MerchantBalance) error {
	return r.db.Save(balance).Error
}
