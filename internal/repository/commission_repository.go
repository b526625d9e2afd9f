package repository

import (
	"errors"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
)

// CommissionRepository 佣金流水数据访问接口
type CommissionRepository interface {
	Create(record *models.CommissionRecord) error
	GetByInvoiceID(invoiceID uint) (*models.CommissionRecord, error)
	List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error)
	WithTx(tx *gorm.DB) *GormCommissionRepository
}

// GormCommissionRepository GORM 佣金流水仓储实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金流水仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) *GormCommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Create 创建佣金流水
func (r *GormCommissionRepository) Create(record *models.CommissionRecord) error {
	return r.db.Create(record).Error
}

// GetByInvoiceID 按账单ID获取佣金流水
func (r *GormCommissionRepository) GetByInvoiceID(invoiceID uint) (*models.CommissionRecord, error) {
	if invoiceID == 0 {
		return nil, nil
	}
	var record models.CommissionRecord
	if err := r.db.Where("invoice_id = ?", invoiceID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List 分页查询佣金流水
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	query := r.db.Model(&models.CommissionRecord{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Crypto != "" {
		query = query.Where("crypto = ?", filter.Crypto)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var records []models.CommissionRecord
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
