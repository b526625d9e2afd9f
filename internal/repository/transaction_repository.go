package repository

import (
	"errors"
	"strings"

	"github.com/shkeeper-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepository 链上交易数据访问接口
type TransactionRepository interface {
	Create(txn *models.Transaction) error
	GetByID(id uint) (*models.Transaction, error)
	GetByUniqueKey(crypto, txid, address string) (*models.Transaction, error)
	Update(txn *models.Transaction) error
	List(filter TransactionListFilter) ([]models.Transaction, int64, error)
	ListByInvoiceID(invoiceID uint) ([]models.Transaction, error)
	ListNeedMoreConfirmations(crypto string) ([]models.Transaction, error)
	ListCallbackPending() ([]models.Transaction, error)
	UpsertUnconfirmed(utx *models.UnconfirmedTransaction) error
	GetUnconfirmedByID(id uint) (*models.UnconfirmedTransaction, error)
	UpdateUnconfirmed(utx *models.UnconfirmedTransaction) error
	DeleteUnconfirmed(crypto, txid, address string) error
	ListUnconfirmedByAddress(crypto, address string) ([]models.UnconfirmedTransaction, error)
	ListUnconfirmedCallbackPending() ([]models.UnconfirmedTransaction, error)
	WithTx(tx *gorm.DB) *GormTransactionRepository
}

// GormTransactionRepository GORM 链上交易仓储实现
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建链上交易仓储
func NewTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTransactionRepository) WithTx(tx *gorm.DB) *GormTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormTransactionRepository{db: tx}
}

// Create 创建已确认交易
func (r *GormTransactionRepository) Create(txn *models.Transaction) error {
	return r.db.Create(txn).Error
}

// GetByID 按主键获取交易
func (r *GormTransactionRepository) GetByID(id uint) (*models.Transaction, error) {
	if id == 0 {
		return nil, nil
	}
	var txn models.Transaction
	if err := r.db.First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByUniqueKey 按币种+哈希+地址获取交易
func (r *GormTransactionRepository) GetByUniqueKey(crypto, txid, address string) (*models.Transaction, error) {
	txid = strings.TrimSpace(txid)
	if crypto == "" || txid == "" {
		return nil, nil
	}
	var txn models.Transaction
	if err := r.db.Where("crypto = ? AND tx_id = ? AND address = ?", crypto, txid, address).
		First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// Update 更新交易
func (r *GormTransactionRepository) Update(txn *models.Transaction) error {
	return r.db.Save(txn).Error
}

// List 分页查询交易
func (r *GormTransactionRepository) List(filter TransactionListFilter) ([]models.Transaction, int64, error) {
	query := r.db.Model(&models.Transaction{})
	if filter.InvoiceID != 0 {
		query = query.Where("invoice_id = ?", filter.InvoiceID)
	}
	if filter.Crypto != "" {
		query = query.Where("crypto = ?", filter.Crypto)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Address != "" {
		query = query.Where("address = ?", filter.Address)
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

	var txns []models.Transaction
	if err := query.Order("id desc").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListByInvoiceID 查询账单关联交易
func (r *GormTransactionRepository) ListByInvoiceID(invoiceID uint) ([]models.Transaction, error) {
	if invoiceID == 0 {
		return []models.Transaction{}, nil
	}
	var txns []models.Transaction
	if err := r.db.Where("invoice_id = ?", invoiceID).Order("id asc").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListNeedMoreConfirmations 查询仍在等待确认的交易
func (r *GormTransactionRepository) ListNeedMoreConfirmations(crypto string) ([]models.Transaction, error) {
	query := r.db.Where("need_more_confirmations = ?", true)
	if crypto != "" {
		query = query.Where("crypto = ?", crypto)
	}
	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListCallbackPending 查询已确认但商户回调尚未确认的交易
func (r *GormTransactionRepository) ListCallbackPending() ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.Where("callback_confirmed = ? AND need_more_confirmations = ?", false, false).
		Order("id asc").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// UpsertUnconfirmed 写入零确认交易（重复上报只更新金额）
func (r *GormTransactionRepository) UpsertUnconfirmed(utx *models.UnconfirmedTransaction) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "crypto"}, {Name: "tx_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(utx).Error
}

// GetUnconfirmedByID 按主键获取零确认交易
func (r *GormTransactionRepository) GetUnconfirmedByID(id uint) (*models.UnconfirmedTransaction, error) {
	if id == 0 {
		return nil, nil
	}
	var utx models.UnconfirmedTransaction
	if err := r.db.First(&utx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &utx, nil
}

// UpdateUnconfirmed 更新零确认记录
func (r *GormTransactionRepository) UpdateUnconfirmed(utx *models.UnconfirmedTransaction) error {
	return r.db.Save(utx).Error
}

// DeleteUnconfirmed 删除零确认记录
func (r *GormTransactionRepository) DeleteUnconfirmed(crypto, txid, address string) error {
	return r.db.Where("crypto = ? AND tx_id = ? AND address = ?", crypto, txid, address).
		Delete(&models.UnconfirmedTransaction{}).Error
}

// ListUnconfirmedByAddress 查询地址下的零确认交易
func (r *GormTransactionRepository) ListUnconfirmedByAddress(crypto, address string) ([]models.UnconfirmedTransaction, error) {
	if crypto == "" || address == "" {
		return []models.UnconfirmedTransaction{}, nil
	}
	var utxs []models.UnconfirmedTransaction
	if err := r.db.Where("crypto = ? AND address = ?", crypto, address).Find(&utxs).Error; err != nil {
		return nil, err
	}
	return utxs, nil
}

// ListUnconfirmedCallbackPending 查询尚未通知商户的零确认交易
func (r *GormTransactionRepository) ListUnconfirmedCallbackPending() ([]models.UnconfirmedTransaction, error) {
	var utxs []models.UnconfirmedTransaction
	if err := r.db.Where("callback_confirmed = ?", false).Order("id asc").Find(&utxs).Error; err != nil {
		return nil, err
	}
	return utxs, nil
}
