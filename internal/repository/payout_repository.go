package repository

import (
	"errors"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRepository 出金单数据访问接口
type PayoutRepository interface {
	Create(payout *models.MerchantPayout) error
	GetByID(id uint) (*models.MerchantPayout, error)
	GetByIDForUpdate(id uint) (*models.MerchantPayout, error)
	Update(payout *models.MerchantPayout) error
	UpdateStatusCAS(id uint, fromStatus string, updates map[string]interface{}) (int64, error)
	List(filter PayoutListFilter) ([]models.MerchantPayout, int64, error)
	ListByStatus(status string) ([]models.MerchantPayout, error)
	ListProcessingByDestination(crypto, destination string) ([]models.MerchantPayout, error)
	CreateRecord(record *models.PayoutRecord) error
	ListRecords(crypto string) ([]models.PayoutRecord, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormPayoutRepository
}

// GormPayoutRepository GORM 出金单仓储实现
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建出金单仓储
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// Transaction 执行数据库事务
func (r *GormPayoutRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) *GormPayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Create 创建出金单
func (r *GormPayoutRepository) Create(payout *models.MerchantPayout) error {
	return r.db.Create(payout).Error
}

// GetByID 按ID获取出金单
func (r *GormPayoutRepository) GetByID(id uint) (*models.MerchantPayout, error) {
	if id == 0 {
		return nil, nil
	}
	var payout models.MerchantPayout
	if err := r.db.Where("id = ?", id).First(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// GetByIDForUpdate 按ID加锁获取出金单
func (r *GormPayoutRepository) GetByIDForUpdate(id uint) (*models.MerchantPayout, error) {
	if id == 0 {
		return nil, nil
	}
	var payout models.MerchantPayout
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// Update 更新出金单
func (r *GormPayoutRepository) Update(payout *models.MerchantPayout) error {
	return r.db.Save(payout).Error
}

// UpdateStatusCAS 仅当出金单仍处于 fromStatus 时更新，返回受影响行数
func (r *GormPayoutRepository) UpdateStatusCAS(id uint, fromStatus string, updates map[string]interface{}) (int64, error) {
	if id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.MerchantPayout{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// List 分页查询出金单
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.MerchantPayout, int64, error) {
	query := r.db.Model(&models.MerchantPayout{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Crypto != "" {
		query = query.Where("crypto = ?", filter.Crypto)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

	var payouts []models.MerchantPayout
	if err := query.Order("id desc").Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

// ListByStatus 按状态查询出金单
func (r *GormPayoutRepository) ListByStatus(status string) ([]models.MerchantPayout, error) {
	if status == "" {
		return []models.MerchantPayout{}, nil
	}
	var payouts []models.MerchantPayout
	if err := r.db.Where("status = ?", status).Order("id asc").Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

// ListProcessingByDestination 查询指定地址下处理中的出金单
func (r *GormPayoutRepository) ListProcessingByDestination(crypto, destination string) ([]models.MerchantPayout, error) {
	if crypto == "" || destination == "" {
		return []models.MerchantPayout{}, nil
	}
	var payouts []models.MerchantPayout
	if err := r.db.Where("crypto = ? AND destination = ? AND status = ?",
		crypto, destination, "processing").
		Order("id asc").Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

// CreateRecord 保存后端出账回执
func (r *GormPayoutRepository) CreateRecord(record *models.PayoutRecord) error {
	return r.db.Create(record).Error
}

// ListRecords 查询出账回执记录
func (r *GormPayoutRepository) ListRecords(crypto string) ([]models.PayoutRecord, error) {
	query := r.db.Model(&models.PayoutRecord{})
	if crypto != "" {
		query = query.Where("crypto = ?", crypto)
	}
	var records []models.PayoutRecord
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
