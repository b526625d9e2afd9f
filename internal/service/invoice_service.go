package service

import (
	"context"
	"strings"
	"time"

	"github.com/shkeeper-next/internal/chains"
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/metrics"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/rates"
	"github.com/shkeeper-next/internal/repository"

	"gorm.io/gorm"
)

// InvoiceService 账单服务
type InvoiceService struct {
	invoiceRepo repository.InvoiceRepository
	txRepo      repository.TransactionRepository
	walletRepo  repository.WalletRepository
	registry    *chains.Registry
	resolver    *rates.Resolver
	collector   *metrics.Collector
}

// CreateInvoiceInput 创建账单输入
type CreateInvoiceInput struct {
	Merchant    *models.Merchant
	ExternalID  string
	Crypto      string
	Fiat        string
	AmountFiat  models.Money
	CallbackURL string
}

// InvoiceDetail 账单详情（附收款地址与询价信息）
type InvoiceDetail struct {
	Invoice *models.Invoice `json:"invoice"`
	Address string          `json:"address"`
	Quote   *rates.Quote    `json:"quote,omitempty"`
}

// NewInvoiceService 创建账单服务
func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	txRepo repository.TransactionRepository,
	walletRepo repository.WalletRepository,
	registry *chains.Registry,
	resolver *rates.Resolver,
	collector *metrics.Collector,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		txRepo:      txRepo,
		walletRepo:  walletRepo,
		registry:    registry,
		resolver:    resolver,
		collector:   collector,
	}
}

// Create 创建账单；同商户同外部订单号重复请求返回已有账单
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput) (*InvoiceDetail, error) {
	if input.Merchant == nil {
		return nil, ErrMerchantNotFound
	}
	externalID := strings.TrimSpace(input.ExternalID)
	crypto := strings.ToUpper(strings.TrimSpace(input.Crypto))
	fiat := strings.ToUpper(strings.TrimSpace(input.Fiat))
	if fiat == "" {
		fiat = constants.FiatCurrencyDefault
	}
	if externalID == "" || crypto == "" {
		return nil, ErrAmountInvalid
	}
	if input.AmountFiat.Sign() <= 0 {
		return nil, ErrAmountInvalid
	}

	existing, err := s.invoiceRepo.GetByMerchantAndExternalID(input.Merchant.ID, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.detail(existing), nil
	}

	if !s.registry.Has(crypto) {
		return nil, ErrCryptoNotSupported
	}
	wallet, err := s.walletRepo.GetByCrypto(crypto)
	if err != nil {
		return nil, err
	}
	if wallet != nil && !wallet.Enabled {
		return nil, ErrCryptoDisabled
	}

	quote, err := s.resolver.Resolve(ctx, crypto, fiat)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Get(crypto)
	if err != nil {
		return nil, ErrCryptoNotSupported
	}
	address, err := adapter.GenerateAddress(ctx)
	if err != nil {
		return nil, err
	}

	callbackURL := strings.TrimSpace(input.CallbackURL)
	if callbackURL == "" {
		callbackURL = input.Merchant.CallbackURL
	}

	now := time.Now()
	invoice := &models.Invoice{
		ExternalID:   externalID,
		MerchantID:   &input.Merchant.ID,
		Crypto:       crypto,
		FiatCurrency: fiat,
		AmountFiat:   input.AmountFiat,
		ExchangeRate: models.NewCoinAmountFromDecimal(quote.Rate),
		AmountCrypto: models.NewCoinAmountFromDecimal(quote.FiatToCrypto(input.AmountFiat.Decimal)),
		Status:       constants.InvoiceStatusUnpaid,
		CallbackURL:  callbackURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.invoiceRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.invoiceRepo.WithTx(tx)
		if err := repo.Create(invoice); err != nil {
			return ErrInvoiceCreateFailed
		}
		addr := &models.InvoiceAddress{
			InvoiceID: invoice.ID,
			Crypto:    crypto,
			Address:   address,
			CreatedAt: now,
		}
		if err := repo.CreateAddress(addr); err != nil {
			return ErrInvoiceCreateFailed
		}
		invoice.Address = addr
		return nil
	}); err != nil {
		return nil, err
	}

	s.collector.InvoiceCreated(crypto)
	logger.Infow("invoice_created",
		"invoice_id", invoice.ID,
		"merchant_id", input.Merchant.ID,
		"external_id", externalID,
		"crypto", crypto,
		"amount_fiat", invoice.AmountFiat.String(),
		"amount_crypto", invoice.AmountCrypto.String(),
		"rate", quote.Rate.String(),
	)

	detail := s.detail(invoice)
	detail.Quote = quote
	return detail, nil
}

// Quote 询价：法币金额折算应收链上金额，不落库
func (s *InvoiceService) Quote(ctx context.Context, crypto, fiat string, amount models.Money) (*rates.Quote, models.CoinAmount, error) {
	crypto = strings.ToUpper(strings.TrimSpace(crypto))
	fiat = strings.ToUpper(strings.TrimSpace(fiat))
	if fiat == "" {
		fiat = constants.FiatCurrencyDefault
	}
	if amount.Sign() <= 0 {
		return nil, models.CoinAmount{}, ErrAmountInvalid
	}
	if !s.registry.Has(crypto) {
		return nil, models.CoinAmount{}, ErrCryptoNotSupported
	}
	quote, err := s.resolver.Resolve(ctx, crypto, fiat)
	if err != nil {
		return nil, models.CoinAmount{}, err
	}
	return quote, models.NewCoinAmountFromDecimal(quote.FiatToCrypto(amount.Decimal)), nil
}

// GetByExternalID 按商户与外部订单号查询账单
func (s *InvoiceService) GetByExternalID(merchantID uint, externalID string) (*InvoiceDetail, error) {
	invoice, err := s.invoiceRepo.GetByMerchantAndExternalID(merchantID, externalID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return s.detail(invoice), nil
}

// GetByID 按ID查询账单（带商户归属校验，merchantID 为 0 跳过）
func (s *InvoiceService) GetByID(id uint, merchantID uint) (*InvoiceDetail, error) {
	invoice, err := s.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	if merchantID != 0 && (invoice.MerchantID == nil || *invoice.MerchantID != merchantID) {
		return nil, ErrInvoiceNotFound
	}
	return s.detail(invoice), nil
}

// List 分页查询账单
func (s *InvoiceService) List(filter repository.InvoiceListFilter) ([]models.Invoice, int64, error) {
	return s.invoiceRepo.List(filter)
}

// ListTransactions 查询账单关联链上交易
func (s *InvoiceService) ListTransactions(invoiceID uint, merchantID uint) ([]models.Transaction, error) {
	invoice, err := s.invoiceRepo.GetByID(invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	if merchantID != 0 && (invoice.MerchantID == nil || *invoice.MerchantID != merchantID) {
		return nil, ErrInvoiceNotFound
	}
	return s.txRepo.ListByInvoiceID(invoiceID)
}

func (s *InvoiceService) detail(invoice *models.Invoice) *InvoiceDetail {
	address := ""
	if invoice.Address != nil {
		address = invoice.Address.Address
	}
	return &InvoiceDetail{Invoice: invoice, Address: address}
}
