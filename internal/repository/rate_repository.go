package repository

import (
	"errors"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
)

// RateRepository 汇率配置数据访问接口
type RateRepository interface {
	GetPair(crypto, fiat string) (*models.ExchangeRate, error)
	Save(rate *models.ExchangeRate) error
	List() ([]models.ExchangeRate, error)
	WithTx(tx *gorm.DB) *GormRateRepository
}

// GormRateRepository GORM 汇率配置仓储实现
type GormRateRepository struct {
	db *gorm.DB
}

// NewRateRepository 创建汇率配置仓储
func NewRateRepository(db *gorm.DB) *GormRateRepository {
	return &GormRateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRateRepository) WithTx(tx *gorm.DB) *GormRateRepository {
	if tx == nil {
		return r
	}
	return &GormRateRepository{db: tx}
}

// GetPair 按币种+法币获取汇率配置
func (r *GormRateRepository) GetPair(crypto, fiat string) (*models.ExchangeRate, error) {
	if crypto == "" || fiat == "" {
		return nil, nil
	}
	var rate models.ExchangeRate
	if err := r.db.Where("crypto = ? AND fiat_currency = ?", crypto, fiat).First(&rate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

// Save 创建或更新汇率配置
func (r *GormRateRepository) Save(rate *models.ExchangeRate) error {
	return r.db.Save(rate).Error
}

// List 查询全部汇率配置
func (r *GormRateRepository) List() ([]models.ExchangeRate, error) {
	var rates []models.ExchangeRate
	if err := r.db.Order("crypto asc, fiat_currency asc").Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}
