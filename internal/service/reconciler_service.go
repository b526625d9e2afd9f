package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shkeeper-next/internal/chains"
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/metrics"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/queue"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconcilerService 链上入账对账服务
type ReconcilerService struct {
	invoiceRepo       repository.InvoiceRepository
	txRepo            repository.TransactionRepository
	walletRepo        repository.WalletRepository
	merchantRepo      repository.MerchantRepository
	balanceRepo       repository.BalanceRepository
	commissionRepo    repository.CommissionRepository
	settingSvc        *SettingService
	registry          *chains.Registry
	queueClient       *queue.Client
	collector         *metrics.Collector
	unconfirmedNotify bool
	notifyDelay       time.Duration
	invoiceTTL        time.Duration
}

// NewReconcilerService 创建对账服务
func NewReconcilerService(
	invoiceRepo repository.InvoiceRepository,
	txRepo repository.TransactionRepository,
	walletRepo repository.WalletRepository,
	merchantRepo repository.MerchantRepository,
	balanceRepo repository.BalanceRepository,
	commissionRepo repository.CommissionRepository,
	settingSvc *SettingService,
	registry *chains.Registry,
	queueClient *queue.Client,
	collector *metrics.Collector,
	unconfirmedNotify bool,
	notifyDelay time.Duration,
	invoiceTTL time.Duration,
) *ReconcilerService {
	return &ReconcilerService{
		invoiceRepo:       invoiceRepo,
		txRepo:            txRepo,
		walletRepo:        walletRepo,
		merchantRepo:      merchantRepo,
		balanceRepo:       balanceRepo,
		commissionRepo:    commissionRepo,
		settingSvc:        settingSvc,
		registry:          registry,
		queueClient:       queueClient,
		collector:         collector,
		unconfirmedNotify: unconfirmedNotify,
		notifyDelay:       notifyDelay,
		invoiceTTL:        invoiceTTL,
	}
}

// NotifyOutcome 一次链上通知的处理结果
type NotifyOutcome struct {
	UnknownCrypto bool   `json:"-"`
	Processed     int    `json:"processed"`
	Unconfirmed   int    `json:"unconfirmed"`
	Duplicates    int    `json:"duplicates"`
	Unrelated     int    `json:"unrelated"`
	Ignored       int    `json:"ignored"`
	Message       string `json:"message,omitempty"`
}

// HandleWalletNotify 处理链上守护进程的交易通知
func (s *ReconcilerService) HandleWalletNotify(ctx context.Context, crypto, txid string) (*NotifyOutcome, error) {
	crypto = strings.ToUpper(strings.TrimSpace(crypto))
	txid = strings.TrimSpace(txid)
	outcome := &NotifyOutcome{}

	adapter, err := s.registry.Get(crypto)
	if err != nil {
		logger.Warnw("walletnotify_unknown_crypto", "crypto", crypto, "txid", txid)
		outcome.UnknownCrypto = true
		outcome.Message = "crypto is not connected to this instance"
		return outcome, nil
	}

	transfers, err := adapter.ResolveTx(ctx, txid)
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByCrypto(crypto)
	if err != nil {
		return nil, err
	}
	minConfirmations := uint(1)
	lower, upper := decimal.Zero, decimal.Zero
	if wallet != nil {
		if wallet.MinConfirmations > 0 {
			minConfirmations = wallet.MinConfirmations
		}
		lower = wallet.LowerTolerance.Decimal
		upper = wallet.UpperTolerance.Decimal
	}

	for _, transfer := range transfers {
		switch transfer.Category {
		case constants.TxCategoryReceive:
			s.processIncoming(ctx, crypto, txid, transfer, minConfirmations, lower, upper, outcome)
		case constants.TxCategorySend:
			s.recordOutgoing(crypto, txid, transfer, outcome)
		default:
			logger.Infow("walletnotify_category_skipped",
				"crypto", crypto, "txid", txid, "category", transfer.Category)
			outcome.Ignored++
		}
	}
	return outcome, nil
}

func (s *ReconcilerService) processIncoming(
	ctx context.Context,
	crypto, txid string,
	transfer chains.ResolvedTx,
	minConfirmations uint,
	lower, upper decimal.Decimal,
	outcome *NotifyOutcome,
) {
	invoice, err := s.invoiceRepo.GetByAddress(crypto, transfer.Address)
	if err != nil {
		logger.Errorw("walletnotify_invoice_lookup_failed",
			"crypto", crypto, "txid", txid, "address", transfer.Address, "error", err)
		s.collector.TxProcessed(crypto, "error")
		return
	}
	if invoice == nil {
		logger.Warnw("walletnotify_not_related_to_any_invoice",
			"crypto", crypto, "txid", txid, "address", transfer.Address)
		outcome.Unrelated++
		s.collector.TxProcessed(crypto, "unrelated")
		return
	}

	// 零确认交易只做登记，确认后正式入账
	if transfer.Confirmations == 0 {
		now := time.Now()
		utx := &models.UnconfirmedTransaction{
			Crypto:    crypto,
			TxID:      txid,
			Address:   transfer.Address,
			Amount:    models.NewCoinAmountFromDecimal(transfer.Amount),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.txRepo.UpsertUnconfirmed(utx); err != nil {
			logger.Errorw("unconfirmed_tx_upsert_failed",
				"crypto", crypto, "txid", txid, "error", err)
			s.collector.TxProcessed(crypto, "error")
			return
		}
		if s.unconfirmedNotify {
			if utxID := s.lookupUnconfirmedID(crypto, txid, transfer.Address); utxID != 0 {
				s.enqueueCallback(invoice.ID, utxID, constants.CallbackTriggerUnconfirmed, 0)
			}
		}
		outcome.Unconfirmed++
		s.collector.TxProcessed(crypto, "unconfirmed")
		return
	}

	duplicate := false
	var txnID uint
	var needMore bool
	err = s.invoiceRepo.Transaction(func(tx *gorm.DB) error {
		txRepo := s.txRepo.WithTx(tx)
		existing, err := txRepo.GetByUniqueKey(crypto, txid, transfer.Address)
		if err != nil {
			return err
		}
		if existing != nil {
			duplicate = true
			return nil
		}

		locked, err := s.invoiceRepo.WithTx(tx).GetByIDForUpdate(invoice.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrInvoiceNotFound
		}

		now := time.Now()
		txn := &models.Transaction{
			InvoiceID:             &locked.ID,
			Crypto:                crypto,
			TxID:                  txid,
			Address:               transfer.Address,
			Category:              constants.TxCategoryReceive,
			Amount:                models.NewCoinAmountFromDecimal(transfer.Amount),
			AmountFiat:            models.NewMoneyFromDecimal(transfer.Amount.Mul(locked.ExchangeRate.Decimal)),
			Confirmations:         transfer.Confirmations,
			NeedMoreConfirmations: transfer.Confirmations < minConfirmations,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := txRepo.Create(txn); err != nil {
			// 并发重复上报会撞唯一索引，按已处理回滚
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrTransactionExists
			}
			return ErrTransactionCreateFailed
		}
		txnID = txn.ID
		needMore = txn.NeedMoreConfirmations
		if err := txRepo.DeleteUnconfirmed(crypto, txid, transfer.Address); err != nil {
			return err
		}

		s.applyTransferLocked(locked, transfer.Amount, lower, upper, now)
		if err := s.trySettleLocked(tx, locked, now); err != nil {
			return err
		}
		return s.invoiceRepo.WithTx(tx).Update(locked)
	})
	if errors.Is(err, ErrTransactionExists) {
		duplicate = true
		err = nil
	}
	if err != nil {
		logger.Errorw("walletnotify_process_failed",
			"crypto", crypto, "txid", txid, "invoice_id", invoice.ID, "error", err)
		s.collector.TxProcessed(crypto, "error")
		return
	}

	if duplicate {
		logger.Infow("walletnotify_tx_already_exists",
			"crypto", crypto, "txid", txid, "address", transfer.Address)
		outcome.Duplicates++
		s.collector.TxProcessed(crypto, "duplicate")
		return
	}

	// 仍需确认的交易不投递，由确认数扫描达标后补投
	if !needMore {
		s.enqueueCallback(invoice.ID, txnID, constants.CallbackTriggerWalletNotify, s.notifyDelay)
	}
	outcome.Processed++
	s.collector.TxProcessed(crypto, "processed")
	logger.Infow("walletnotify_tx_recorded",
		"crypto", crypto, "txid", txid, "invoice_id", invoice.ID,
		"amount", transfer.Amount.String(), "confirmations", transfer.Confirmations)
}

func (s *ReconcilerService) lookupUnconfirmedID(crypto, txid, address string) uint {
	utxs, err := s.txRepo.ListUnconfirmedByAddress(crypto, address)
	if err != nil {
		logger.Errorw("unconfirmed_tx_lookup_failed", "crypto", crypto, "txid", txid, "error", err)
		return 0
	}
	for _, utx := range utxs {
		if utx.TxID == txid {
			return utx.ID
		}
	}
	return 0
}

// applyTransferLocked 在持锁账单上累计余额并重算状态
func (s *ReconcilerService) applyTransferLocked(invoice *models.Invoice, amount, lower, upper decimal.Decimal, now time.Time) {
	balance := invoice.BalanceCrypto.Decimal.Add(amount)
	invoice.BalanceCrypto = models.NewCoinAmountFromDecimal(balance)
	invoice.BalanceFiat = models.NewMoneyFromDecimal(balance.Mul(invoice.ExchangeRate.Decimal))

	previous := invoice.Status
	s.recomputeStatusLocked(invoice, lower, upper, now)
	invoice.UpdatedAt = now

	if previous != invoice.Status {
		logger.Infow("invoice_status_changed",
			"invoice_id", invoice.ID, "from", previous, "to", invoice.Status,
			"balance_fiat", invoice.BalanceFiat.String(), "amount_fiat", invoice.AmountFiat.String())
	}
}

// recomputeStatusLocked 重算账单状态；过期后才足额的账单记为 paid_expired（终态）
func (s *ReconcilerService) recomputeStatusLocked(invoice *models.Invoice, lower, upper decimal.Decimal, now time.Time) {
	if invoice.Status == constants.InvoiceStatusPaidExpired || invoice.Status == constants.InvoiceStatusOutgoing {
		return
	}
	invoice.Status = computeInvoiceStatus(invoice, lower, upper)
	if isSettledStatus(invoice.Status) {
		if s.invoiceTTL > 0 && now.After(invoice.CreatedAt.Add(s.invoiceTTL)) {
			invoice.Status = constants.InvoiceStatusPaidExpired
		}
		if invoice.PaidAt == nil {
			invoice.PaidAt = &now
		}
	}
}

// trySettleLocked 账单足额且全部交易确认后，一次性计提佣金并入账商户台账
func (s *ReconcilerService) trySettleLocked(tx *gorm.DB, invoice *models.Invoice, now time.Time) error {
	if !isSettledStatus(invoice.Status) || invoice.CommissionFiat != nil {
		return nil
	}

	pending, err := s.txRepo.WithTx(tx).ListByInvoiceID(invoice.ID)
	if err != nil {
		return err
	}
	for _, txn := range pending {
		if txn.NeedMoreConfirmations {
			return nil
		}
	}

	// 无商户的历史账单不计提佣金也不入台账，置零佣金标记结算完成
	if invoice.MerchantID == nil {
		zero := models.NewMoneyFromDecimal(decimal.Zero)
		invoice.CommissionFiat = &zero
		logger.Infow("invoice_settled_without_merchant",
			"invoice_id", invoice.ID, "gross_fiat", invoice.BalanceFiat.String())
		return nil
	}
	merchantID := *invoice.MerchantID

	merchant, err := s.merchantRepo.WithTx(tx).GetByID(merchantID)
	if err != nil {
		return err
	}
	if merchant == nil {
		return ErrMerchantNotFound
	}
	settings, err := s.settingSvc.GetPlatformSettings()
	if err != nil {
		return err
	}

	percent := settings.CommissionPercent.Decimal
	fixed := settings.CommissionFixed.Decimal
	if merchant.CommissionPercent != nil {
		percent = merchant.CommissionPercent.Decimal
	}
	if merchant.CommissionFixed != nil {
		fixed = merchant.CommissionFixed.Decimal
	}

	gross := invoice.BalanceFiat.Decimal
	commission, net := CalculateCommission(gross, percent, fixed)

	if err := creditMerchantBalance(tx, s.balanceRepo, merchantID, invoice.Crypto, invoice.FiatCurrency, gross, commission, net, now); err != nil {
		return err
	}

	record := &models.CommissionRecord{
		MerchantID:     merchantID,
		InvoiceID:      invoice.ID,
		Crypto:         invoice.Crypto,
		FiatCurrency:   invoice.FiatCurrency,
		GrossFiat:      models.NewMoneyFromDecimal(gross),
		CommissionFiat: models.NewMoneyFromDecimal(commission),
		NetFiat:        models.NewMoneyFromDecimal(net),
		PercentApplied: models.NewMoneyFromDecimal(percent),
		FixedApplied:   models.NewMoneyFromDecimal(fixed),
		CreatedAt:      now,
	}
	if err := s.commissionRepo.WithTx(tx).Create(record); err != nil {
		return err
	}

	commissionMoney := models.NewMoneyFromDecimal(commission)
	invoice.CommissionFiat = &commissionMoney

	commissionFloat, _ := commission.Float64()
	s.collector.CommissionCharged(invoice.FiatCurrency, commissionFloat)
	logger.Infow("invoice_settled",
		"invoice_id", invoice.ID, "merchant_id", merchantID,
		"gross_fiat", gross.String(), "commission_fiat", commission.String(), "net_fiat", net.String())
	return nil
}

// recordOutgoing 出账交易挂在 outgoing 状态的记账账单下，不触发商户回调
func (s *ReconcilerService) recordOutgoing(crypto, txid string, transfer chains.ResolvedTx, outcome *NotifyOutcome) {
	existing, err := s.txRepo.GetByUniqueKey(crypto, txid, transfer.Address)
	if err != nil {
		logger.Errorw("outgoing_tx_lookup_failed", "crypto", crypto, "txid", txid, "error", err)
		s.collector.TxProcessed(crypto, "error")
		return
	}
	if existing != nil {
		outcome.Duplicates++
		s.collector.TxProcessed(crypto, "duplicate")
		return
	}
	err = s.invoiceRepo.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		inv := &models.Invoice{
			ExternalID:   txid,
			Crypto:       crypto,
			FiatCurrency: constants.FiatCurrencyDefault,
			Status:       constants.InvoiceStatusOutgoing,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.invoiceRepo.WithTx(tx).Create(inv); err != nil {
			return err
		}
		txn := &models.Transaction{
			InvoiceID:     &inv.ID,
			Crypto:        crypto,
			TxID:          txid,
			Address:       transfer.Address,
			Category:      constants.TxCategorySend,
			Amount:        models.NewCoinAmountFromDecimal(transfer.Amount),
			Confirmations: transfer.Confirmations,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.txRepo.WithTx(tx).Create(txn); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrTransactionExists
			}
			return err
		}
		return nil
	})
	if errors.Is(err, ErrTransactionExists) {
		outcome.Duplicates++
		s.collector.TxProcessed(crypto, "duplicate")
		return
	}
	if err != nil {
		logger.Errorw("outgoing_tx_create_failed", "crypto", crypto, "txid", txid, "error", err)
		s.collector.TxProcessed(crypto, "error")
		return
	}
	outcome.Processed++
	s.collector.TxProcessed(crypto, "outgoing")
	logger.Infow("outgoing_tx_recorded", "crypto", crypto, "txid", txid, "amount", transfer.Amount.String())
}

// UpdateConfirmations 重新核对等待确认的交易，确认达标后结算并补投该笔交易的回调
func (s *ReconcilerService) UpdateConfirmations(ctx context.Context) error {
	pending, err := s.txRepo.ListNeedMoreConfirmations("")
	if err != nil {
		return err
	}
	for _, txn := range pending {
		adapter, err := s.registry.Get(txn.Crypto)
		if err != nil {
			continue
		}
		wallet, err := s.walletRepo.GetByCrypto(txn.Crypto)
		if err != nil {
			logger.Errorw("confirmation_sweep_wallet_lookup_failed", "crypto", txn.Crypto, "error", err)
			continue
		}
		minConfirmations := uint(1)
		lower, upper := decimal.Zero, decimal.Zero
		if wallet != nil {
			if wallet.MinConfirmations > 0 {
				minConfirmations = wallet.MinConfirmations
			}
			lower = wallet.LowerTolerance.Decimal
			upper = wallet.UpperTolerance.Decimal
		}

		transfers, err := adapter.ResolveTx(ctx, txn.TxID)
		if err != nil {
			logger.Warnw("confirmation_sweep_resolve_failed",
				"crypto", txn.Crypto, "txid", txn.TxID, "error", err)
			continue
		}
		var confirmations uint
		for _, transfer := range transfers {
			if transfer.Address == txn.Address && transfer.Category == constants.TxCategoryReceive {
				confirmations = transfer.Confirmations
				break
			}
		}
		if confirmations < minConfirmations {
			continue
		}

		deliverInvoiceID := uint(0)
		err = s.invoiceRepo.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			txn.Confirmations = confirmations
			txn.NeedMoreConfirmations = false
			txn.UpdatedAt = now
			if err := s.txRepo.WithTx(tx).Update(&txn); err != nil {
				return err
			}
			if txn.InvoiceID == nil {
				return nil
			}
			locked, err := s.invoiceRepo.WithTx(tx).GetByIDForUpdate(*txn.InvoiceID)
			if err != nil {
				return err
			}
			if locked == nil {
				return nil
			}
			// 余额在入账时已累计，这里只重算状态并尝试结算
			s.recomputeStatusLocked(locked, lower, upper, now)
			locked.UpdatedAt = now
			if err := s.trySettleLocked(tx, locked, now); err != nil {
				return err
			}
			if isSettledStatus(locked.Status) {
				deliverInvoiceID = locked.ID
			}
			return s.invoiceRepo.WithTx(tx).Update(locked)
		})
		if err != nil {
			logger.Errorw("confirmation_sweep_update_failed",
				"crypto", txn.Crypto, "txid", txn.TxID, "error", err)
			continue
		}
		if deliverInvoiceID != 0 && !txn.CallbackConfirmed {
			s.enqueueCallback(deliverInvoiceID, txn.ID, constants.CallbackTriggerTaskSweep, 0)
		}
	}
	return nil
}

func (s *ReconcilerService) enqueueCallback(invoiceID, transactionID uint, trigger string, delay time.Duration) {
	err := s.queueClient.EnqueueCallbackDeliver(queue.CallbackDeliverPayload{
		InvoiceID:     invoiceID,
		TransactionID: transactionID,
		Trigger:       trigger,
	}, delay)
	if err != nil {
		logger.Errorw("callback_enqueue_failed", "invoice_id", invoiceID, "trigger", trigger, "error", err)
	}
}

// computeInvoiceStatus 按容忍区间重算账单支付状态
func computeInvoiceStatus(invoice *models.Invoice, lower, upper decimal.Decimal) string {
	balance := invoice.BalanceFiat.Decimal
	target := invoice.AmountFiat.Decimal
	switch {
	case balance.Sign() <= 0:
		return constants.InvoiceStatusUnpaid
	case balance.LessThan(target.Sub(lower)):
		return constants.InvoiceStatusPartial
	case balance.LessThanOrEqual(target.Add(upper)):
		return constants.InvoiceStatusPaid
	default:
		return constants.InvoiceStatusOverpaid
	}
}

func isSettledStatus(status string) bool {
	return status == constants.InvoiceStatusPaid ||
		status == constants.InvoiceStatusOverpaid ||
		status == constants.InvoiceStatusPaidExpired
}
