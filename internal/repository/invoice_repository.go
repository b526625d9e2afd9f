package repository

import (
	"errors"
	"strings"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository 账单数据访问接口
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id uint) (*models.Invoice, error)
	GetByIDForUpdate(id uint) (*models.Invoice, error)
	GetByMerchantAndExternalID(merchantID uint, externalID string) (*models.Invoice, error)
	GetByAddress(crypto, address string) (*models.Invoice, error)
	Update(invoice *models.Invoice) error
	List(filter InvoiceListFilter) ([]models.Invoice, int64, error)
	ListByStatuses(statuses []string) ([]models.Invoice, error)
	CreateAddress(address *models.InvoiceAddress) error
	GetAddressByInvoiceID(invoiceID uint) (*models.InvoiceAddress, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormInvoiceRepository
}

// GormInvoiceRepository GORM 账单仓储实现
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository 创建账单仓储
func NewInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Transaction 执行数据库事务
func (r *GormInvoiceRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// WithTx 绑定事务
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	if tx == nil {
		return r
	}
	return &GormInvoiceRepository{db: tx}
}

// Create 创建账单
func (r *GormInvoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// GetByID 按ID获取账单
func (r *GormInvoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	if id == 0 {
		return nil, nil
	}
	var invoice models.Invoice
	if err := r.db.Preload("Address").Where("id = ?", id).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// GetByIDForUpdate 按ID加锁获取账单
func (r *GormInvoiceRepository) GetByIDForUpdate(id uint) (*models.Invoice, error) {
	if id == 0 {
		return nil, nil
	}
	var invoice models.Invoice
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// GetByMerchantAndExternalID 按商户与外部订单号获取账单
func (r *GormInvoiceRepository) GetByMerchantAndExternalID(merchantID uint, externalID string) (*models.Invoice, error) {
	externalID = strings.TrimSpace(externalID)
	if merchantID == 0 || externalID == "" {
		return nil, nil
	}
	var invoice models.Invoice
	if err := r.db.Preload("Address").
		Where("merchant_id = ? AND external_id = ?", merchantID, externalID).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// GetByAddress 按币种与收款地址获取账单
func (r *GormInvoiceRepository) GetByAddress(crypto, address string) (*models.Invoice, error) {
	address = strings.TrimSpace(address)
	if crypto == "" || address == "" {
		return nil, nil
	}
	var addr models.InvoiceAddress
	if err := r.db.Where("crypto = ? AND address = ?", crypto, address).First(&addr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.GetByID(addr.InvoiceID)
}

// Update 更新账单
func (r *GormInvoiceRepository) Update(invoice *models.Invoice) error {
	return r.db.Save(invoice).Error
}

// List 分页查询账单
func (r *GormInvoiceRepository) List(filter InvoiceListFilter) ([]models.Invoice, int64, error) {
	query := r.db.Model(&models.Invoice{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Crypto != "" {
		query = query.Where("crypto = ?", filter.Crypto)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ExternalID != "" {
		query = query.Where("external_id = ?", filter.ExternalID)
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

	var invoices []models.Invoice
	if err := query.Preload("Address").Order("id desc").Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// ListByStatuses 按状态批量查询账单
func (r *GormInvoiceRepository) ListByStatuses(statuses []string) ([]models.Invoice, error) {
	if len(statuses) == 0 {
		return []models.Invoice{}, nil
	}
	var invoices []models.Invoice
	if err := r.db.Where("status IN ?", statuses).Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// CreateAddress 创建账单收款地址
func (r *GormInvoiceRepository) CreateAddress(address *models.InvoiceAddress) error {
	return r.db.Create(address).Error
}

// GetAddressByInvoiceID 按账单ID获取收款地址
func (r *GormInvoiceRepository) GetAddressByInvoiceID(invoiceID uint) (*models.InvoiceAddress, error) {
	if invoiceID == 0 {
		return nil, nil
	}
	var addr models.InvoiceAddress
	if err := r.db.Where("invoice_id = ?", invoiceID).First(&addr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &addr, nil
}
