package repository

import "time"

// InvoiceListFilter 查询账单列表的过滤条件
type InvoiceListFilter struct {
	Page        int
	PageSize    int
	MerchantID  uint
	Crypto      string
	Status      string
	ExternalID  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// TransactionListFilter 查询链上交易列表的过滤条件
type TransactionListFilter struct {
	Page        int
	PageSize    int
	InvoiceID   uint
	Crypto      string
	Category    string
	Address     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// MerchantListFilter 查询商户列表的过滤条件
type MerchantListFilter struct {
	Page     int
	PageSize int
	Status   string
	Search   string
}

// PayoutListFilter 查询出金单列表的过滤条件
type PayoutListFilter struct {
	Page        int
	PageSize    int
	MerchantID  uint
	Crypto      string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CommissionListFilter 查询佣金流水的过滤条件
type CommissionListFilter struct {
	Page        int
	PageSize    int
	MerchantID  uint
	Crypto      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
