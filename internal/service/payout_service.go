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
	"github.com/shkeeper-next/internal/queue"
	"github.com/shkeeper-next/internal/rates"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutService 商户出金服务
type PayoutService struct {
	payoutRepo   repository.PayoutRepository
	balanceRepo  repository.BalanceRepository
	merchantRepo repository.MerchantRepository
	walletRepo   repository.WalletRepository
	txRepo       repository.TransactionRepository
	merchantSvc  *MerchantService
	settingSvc   *SettingService
	registry     *chains.Registry
	resolver     *rates.Resolver
	queueClient  *queue.Client
	collector    *metrics.Collector
}

// NewPayoutService 创建出金服务
func NewPayoutService(
	payoutRepo repository.PayoutRepository,
	balanceRepo repository.BalanceRepository,
	merchantRepo repository.MerchantRepository,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	merchantSvc *MerchantService,
	settingSvc *SettingService,
	registry *chains.Registry,
	resolver *rates.Resolver,
	queueClient *queue.Client,
	collector *metrics.Collector,
) *PayoutService {
	return &PayoutService{
		payoutRepo:   payoutRepo,
		balanceRepo:  balanceRepo,
		merchantRepo: merchantRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		merchantSvc:  merchantSvc,
		settingSvc:   settingSvc,
		registry:     registry,
		resolver:     resolver,
		queueClient:  queueClient,
		collector:    collector,
	}
}

// RequestPayoutInput 出金申请参数
type RequestPayoutInput struct {
	Merchant       *models.Merchant
	Crypto         string
	FiatCurrency   string
	AmountFiat     decimal.Decimal
	SecurityPhrase string
}

// Request 发起出金申请，冻结可用余额并创建待审核出金单
func (s *PayoutService) Request(ctx context.Context, input RequestPayoutInput) (*models.MerchantPayout, error) {
	merchant := input.Merchant
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if merchant.Status != constants.MerchantStatusActive {
		return nil, ErrMerchantSuspended
	}
	if err := s.merchantSvc.VerifySecurityPhrase(merchant, input.SecurityPhrase); err != nil {
		return nil, err
	}

	crypto := strings.ToUpper(strings.TrimSpace(input.Crypto))
	if !s.registry.Has(crypto) {
		return nil, ErrCryptoNotSupported
	}
	destination := merchant.PayoutAddress(crypto)
	if destination == "" {
		return nil, ErrPayoutAddressMissing
	}

	minPayout, err := s.minPayoutFiat(merchant)
	if err != nil {
		return nil, err
	}

	var payout *models.MerchantPayout
	err = s.balanceRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.balanceRepo.WithTx(tx)
		var bucket *models.MerchantBalance
		var err error
		if input.FiatCurrency != "" {
			bucket, err = repo.GetBucketForUpdate(merchant.ID, crypto, input.FiatCurrency)
		} else {
			bucket, err = repo.GetRichestBucketForUpdate(merchant.ID, crypto)
		}
		if err != nil {
			return err
		}
		if bucket == nil {
			return ErrBalanceNotFound
		}

		amount := input.AmountFiat
		if amount.Sign() <= 0 {
			amount = bucket.AvailableBalance.Decimal
		}
		if amount.Sign() <= 0 || amount.GreaterThan(bucket.AvailableBalance.Decimal) {
			return ErrInsufficientBalance
		}
		if amount.LessThan(minPayout) {
			return ErrPayoutBelowMinimum
		}

		now := time.Now()
		bucket.AvailableBalance = models.NewMoneyFromDecimal(bucket.AvailableBalance.Decimal.Sub(amount))
		bucket.PendingBalance = models.NewMoneyFromDecimal(bucket.PendingBalance.Decimal.Add(amount))
		bucket.UpdatedAt = now
		if err := repo.Update(bucket); err != nil {
			return ErrBalanceUpdateFailed
		}

		payout = &models.MerchantPayout{
			MerchantID:   merchant.ID,
			Crypto:       crypto,
			FiatCurrency: bucket.FiatCurrency,
			AmountFiat:   models.NewMoneyFromDecimal(amount),
			Destination:  destination,
			Status:       constants.PayoutStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.payoutRepo.WithTx(tx).Create(payout)
	})
	if err != nil {
		return nil, err
	}

	s.collector.PayoutTransition(constants.PayoutStatusPending)
	logger.Infow("payout_requested",
		"payout_id", payout.ID, "merchant_id", merchant.ID, "crypto", crypto,
		"fiat", payout.FiatCurrency, "amount_fiat", payout.AmountFiat.String())
	return payout, nil
}

// Approve 审核通过待处理出金单
func (s *PayoutService) Approve(id uint) (*models.MerchantPayout, error) {
	payout, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrPayoutNotFound
	}
	if payout.Status != constants.PayoutStatusPending {
		return nil, ErrPayoutInvalidTransition
	}
	affected, err := s.payoutRepo.UpdateStatusCAS(id, constants.PayoutStatusPending, map[string]interface{}{
		"status":     constants.PayoutStatusApproved,
		"updated_at": time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrPayoutInvalidTransition
	}

	s.collector.PayoutTransition(constants.PayoutStatusApproved)
	logger.Infow("payout_approved", "payout_id", id, "merchant_id", payout.MerchantID)
	if err := s.queueClient.EnqueuePayoutProcessApproved(); err != nil {
		logger.Errorw("payout_process_enqueue_failed", "payout_id", id, "error", err)
	}
	return s.payoutRepo.GetByID(id)
}

// Reject 驳回出金单并解冻资金，仅限待处理或已审核状态
func (s *PayoutService) Reject(id uint, reason string) (*models.MerchantPayout, error) {
	var payout *models.MerchantPayout
	err := s.payoutRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.payoutRepo.WithTx(tx)
		locked, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrPayoutNotFound
		}
		if locked.Status != constants.PayoutStatusPending && locked.Status != constants.PayoutStatusApproved {
			return ErrPayoutInvalidTransition
		}

		now := time.Now()
		bucket, err := s.balanceRepo.WithTx(tx).GetBucketForUpdate(locked.MerchantID, locked.Crypto, locked.FiatCurrency)
		if err != nil {
			return err
		}
		if bucket == nil {
			return ErrBalanceNotFound
		}
		bucket.PendingBalance = models.NewMoneyFromDecimal(bucket.PendingBalance.Decimal.Sub(locked.AmountFiat.Decimal))
		bucket.AvailableBalance = models.NewMoneyFromDecimal(bucket.AvailableBalance.Decimal.Add(locked.AmountFiat.Decimal))
		bucket.UpdatedAt = now
		if err := s.balanceRepo.WithTx(tx).Update(bucket); err != nil {
			return ErrBalanceUpdateFailed
		}

		locked.Status = constants.PayoutStatusRejected
		locked.ErrorMessage = reason
		locked.ProcessedAt = &now
		locked.UpdatedAt = now
		payout = locked
		return repo.Update(locked)
	})
	if err != nil {
		return nil, err
	}

	s.collector.PayoutTransition(constants.PayoutStatusRejected)
	logger.Infow("payout_rejected", "payout_id", id, "merchant_id", payout.MerchantID, "reason", reason)
	return payout, nil
}

// Retry 将失败的出金单转回已审核状态等待重试
func (s *PayoutService) Retry(id uint) (*models.MerchantPayout, error) {
	payout, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrPayoutNotFound
	}
	if payout.Status != constants.PayoutStatusFailed {
		return nil, ErrPayoutInvalidTransition
	}
	affected, err := s.payoutRepo.UpdateStatusCAS(id, constants.PayoutStatusFailed, map[string]interface{}{
		"status":        constants.PayoutStatusApproved,
		"error_message": "",
		"updated_at":    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrPayoutInvalidTransition
	}

	s.collector.PayoutTransition(constants.PayoutStatusApproved)
	logger.Infow("payout_retry_scheduled", "payout_id", id)
	if err := s.queueClient.EnqueuePayoutProcessApproved(); err != nil {
		logger.Errorw("payout_process_enqueue_failed", "payout_id", id, "error", err)
	}
	return s.payoutRepo.GetByID(id)
}

// ProcessApproved 逐笔执行已审核出金单
func (s *PayoutService) ProcessApproved(ctx context.Context) error {
	approved, err := s.payoutRepo.ListByStatus(constants.PayoutStatusApproved)
	if err != nil {
		return err
	}
	for _, payout := range approved {
		if err := s.Process(ctx, payout.ID); err != nil {
			logger.Errorw("payout_process_failed", "payout_id", payout.ID, "error", err)
		}
	}
	return nil
}

// Process 执行单笔已审核出金：先落处理中状态，再发起链上转账
func (s *PayoutService) Process(ctx context.Context, id uint) error {
	payout, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return err
	}
	if payout == nil {
		return ErrPayoutNotFound
	}
	if payout.Status != constants.PayoutStatusApproved {
		return ErrPayoutInvalidTransition
	}

	payer, err := s.registry.Payer(payout.Crypto)
	if err != nil {
		return err
	}

	quote, err := s.resolver.Resolve(ctx, payout.Crypto, payout.FiatCurrency)
	if err != nil {
		return err
	}
	// 出金按裸汇率折算，不套收款侧的渠道加价
	amountCrypto := payout.AmountFiat.Decimal.DivRound(quote.Rate, constants.CryptoScale)

	fee := constants.PayoutFeeDefault
	wallet, err := s.walletRepo.GetByCrypto(payout.Crypto)
	if err != nil {
		return err
	}
	if wallet != nil && wallet.PayoutFee != "" {
		fee = wallet.PayoutFee
	}

	// 先提交处理中状态再请求链上，宕机时资金仍留在冻结额度内
	affected, err := s.payoutRepo.UpdateStatusCAS(id, constants.PayoutStatusApproved, map[string]interface{}{
		"status":        constants.PayoutStatusProcessing,
		"amount_crypto": models.NewCoinAmountFromDecimal(amountCrypto),
		"updated_at":    time.Now(),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPayoutInvalidTransition
	}
	s.collector.PayoutTransition(constants.PayoutStatusProcessing)

	result, err := payer.CreatePayout(ctx, payout.Destination, amountCrypto, fee)
	if err != nil {
		now := time.Now()
		if _, casErr := s.payoutRepo.UpdateStatusCAS(id, constants.PayoutStatusProcessing, map[string]interface{}{
			"status":        constants.PayoutStatusFailed,
			"error_message": err.Error(),
			"processed_at":  now,
			"updated_at":    now,
		}); casErr != nil {
			logger.Errorw("payout_fail_mark_failed", "payout_id", id, "error", casErr)
		}
		s.collector.PayoutTransition(constants.PayoutStatusFailed)
		logger.Errorw("payout_send_failed", "payout_id", id, "crypto", payout.Crypto, "error", err)
		return err
	}

	return s.complete(id, result.TxIDs)
}

// PayoutNotifyEntry 后端出账回执条目
type PayoutNotifyEntry struct {
	Dest   string
	Amount decimal.Decimal
	TxIDs  []string
	Status string
}

// CompleteFromBackend 处理链上守护进程的出账回执：每条先落回执记录，
// 成功且带哈希的条目再完结同地址下处理中的出金单
func (s *PayoutService) CompleteFromBackend(crypto string, entries []PayoutNotifyEntry) (*NotifyOutcome, error) {
	crypto = strings.ToUpper(strings.TrimSpace(crypto))
	outcome := &NotifyOutcome{}
	if !s.registry.Has(crypto) {
		outcome.UnknownCrypto = true
		outcome.Message = "crypto is not connected to this instance"
		return outcome, nil
	}

	for _, entry := range entries {
		now := time.Now()
		record := &models.PayoutRecord{
			Crypto:    crypto,
			Amount:    models.NewCoinAmountFromDecimal(entry.Amount),
			Dest:      entry.Dest,
			Status:    entry.Status,
			TxIDs:     models.StringArray(entry.TxIDs),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.payoutRepo.CreateRecord(record); err != nil {
			logger.Errorw("payoutnotify_record_failed",
				"crypto", crypto, "dest", entry.Dest, "error", err)
		}

		if entry.Status != "success" || entry.Dest == "" || len(entry.TxIDs) == 0 {
			outcome.Ignored++
			continue
		}

		processing, err := s.payoutRepo.ListProcessingByDestination(crypto, entry.Dest)
		if err != nil {
			return nil, err
		}
		if len(processing) == 0 {
			logger.Warnw("payoutnotify_no_processing_payout",
				"crypto", crypto, "destination", entry.Dest, "txids", entry.TxIDs)
			outcome.Unrelated++
			continue
		}

		for _, payout := range processing {
			txids := append([]string{}, payout.TxIDs...)
			txids = append(txids, entry.TxIDs...)
			if err := s.complete(payout.ID, txids); err != nil {
				logger.Errorw("payoutnotify_complete_failed", "payout_id", payout.ID, "error", err)
				continue
			}
			outcome.Processed++
		}
	}
	return outcome, nil
}

// complete 以 CAS 方式完结出金单并扣减冻结资金，重复完成只生效一次
func (s *PayoutService) complete(id uint, txids []string) error {
	payout, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return err
	}
	if payout == nil {
		return ErrPayoutNotFound
	}

	completed := false
	err = s.payoutRepo.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		affected, err := s.payoutRepo.WithTx(tx).UpdateStatusCAS(id, constants.PayoutStatusProcessing, map[string]interface{}{
			"status":       constants.PayoutStatusCompleted,
			"tx_ids":       models.StringArray(txids),
			"processed_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			// 已被其他路径完成，保持幂等
			return nil
		}
		completed = true

		bucket, err := s.balanceRepo.WithTx(tx).GetBucketForUpdate(payout.MerchantID, payout.Crypto, payout.FiatCurrency)
		if err != nil {
			return err
		}
		if bucket == nil {
			return ErrBalanceNotFound
		}
		bucket.PendingBalance = models.NewMoneyFromDecimal(bucket.PendingBalance.Decimal.Sub(payout.AmountFiat.Decimal))
		bucket.TotalPaidOut = models.NewMoneyFromDecimal(bucket.TotalPaidOut.Decimal.Add(payout.AmountFiat.Decimal))
		bucket.UpdatedAt = now
		return s.balanceRepo.WithTx(tx).Update(bucket)
	})
	if err != nil {
		return err
	}
	if !completed {
		logger.Infow("payout_already_completed", "payout_id", id)
		return nil
	}

	now := time.Now()
	for _, txid := range txids {
		txn := &models.Transaction{
			Crypto:    payout.Crypto,
			TxID:      txid,
			Address:   payout.Destination,
			Category:  constants.TxCategorySend,
			Amount:    payout.AmountCrypto,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.txRepo.Create(txn); err != nil {
			logger.Warnw("payout_outgoing_tx_record_failed",
				"payout_id", id, "txid", txid, "error", err)
		}
	}

	s.collector.PayoutTransition(constants.PayoutStatusCompleted)
	logger.Infow("payout_completed",
		"payout_id", id, "merchant_id", payout.MerchantID,
		"crypto", payout.Crypto, "amount_fiat", payout.AmountFiat.String(), "txids", txids)
	return nil
}

// GetByID 查询出金单，merchantID 非零时校验归属
func (s *PayoutService) GetByID(id, merchantID uint) (*models.MerchantPayout, error) {
	payout, err := s.payoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrPayoutNotFound
	}
	if merchantID != 0 && payout.MerchantID != merchantID {
		return nil, ErrPayoutNotFound
	}
	return payout, nil
}

// List 分页查询出金单
func (s *PayoutService) List(filter repository.PayoutListFilter) ([]models.MerchantPayout, int64, error) {
	return s.payoutRepo.List(filter)
}

// minPayoutFiat 取商户覆盖值与平台默认值中较大者
func (s *PayoutService) minPayoutFiat(merchant *models.Merchant) (decimal.Decimal, error) {
	settings, err := s.settingSvc.GetPlatformSettings()
	if err != nil {
		return decimal.Zero, err
	}
	min := settings.MinPayoutFiat.Decimal
	if merchant.MinPayoutFiat != nil {
		min = decimal.Max(min, merchant.MinPayoutFiat.Decimal)
	}
	return min, nil
}
