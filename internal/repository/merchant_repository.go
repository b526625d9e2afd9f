package repository

import (
	"errors"
	"strings"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
)

// MerchantRepository 商户数据访问接口
type MerchantRepository interface {
	Create(merchant *models.Merchant) error
	GetByID(id uint) (*models.Merchant, error)
	GetByEmail(email string) (*models.Merchant, error)
	GetByName(name string) (*models.Merchant, error)
	GetByAPIKey(apiKey string) (*models.Merchant, error)
	Update(merchant *models.Merchant) error
	List(filter MerchantListFilter) ([]models.Merchant, int64, error)
	WithTx(tx *gorm.DB) *GormMerchantRepository
}

// GormMerchantRepository GORM 商户仓储实现
type GormMerchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository 创建商户仓储
func NewMerchantRepository(db *gorm.DB) *GormMerchantRepository {
	return &GormMerchantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMerchantRepository) WithTx(tx *gorm.DB) *GormMerchantRepository {
	if tx == nil {
		return r
	}
	return &GormMerchantRepository{db: tx}
}

// Create 创建商户
func (r *GormMerchantRepository) Create(merchant *models.Merchant) error {
	return r.db.Create(merchant).Error
}

// GetByID 按ID获取商户
func (r *GormMerchantRepository) GetByID(id uint) (*models.Merchant, error) {
	if id == 0 {
		return nil, nil
	}
	var merchant models.Merchant
	if err := r.db.Where("id = ?", id).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// GetByEmail 按邮箱获取商户
func (r *GormMerchantRepository) GetByEmail(email string) (*models.Merchant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var merchant models.Merchant
	if err := r.db.Where("email = ?", email).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// GetByName 按商户名获取商户
func (r *GormMerchantRepository) GetByName(name string) (*models.Merchant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var merchant models.Merchant
	if err := r.db.Where("name = ?", name).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// GetByAPIKey 按 API 密钥获取商户
func (r *GormMerchantRepository) GetByAPIKey(apiKey string) (*models.Merchant, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, nil
	}
	var merchant models.Merchant
	if err := r.db.Where("api_key = ?", apiKey).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// Update 更新商户
func (r *GormMerchantRepository) Update(merchant *models.Merchant) error {
	return r.db.Save(merchant).Error
}

// List 分页查询商户
func (r *GormMerchantRepository) List(filter MerchantListFilter) ([]models.Merchant, int64, error) {
	query := r.db.Model(&models.Merchant{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		condition, argCount := buildSearchCondition(r.db, []string{"name", "email"})
		if condition != "" {
			query = query.Where("("+condition+")", repeatLikeArgs(like, argCount)...)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var merchants []models.Merchant
	if err := query.Order("id desc").Find(&merchants).Error; err != nil {
		return nil, 0, err
	}
	return merchants, total, nil
}
