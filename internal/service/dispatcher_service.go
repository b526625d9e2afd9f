package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/metrics"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/queue"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
)

// DispatcherService 商户回调投递服务
type DispatcherService struct {
	invoiceRepo       repository.InvoiceRepository
	txRepo            repository.TransactionRepository
	merchantRepo      repository.MerchantRepository
	settingSvc        *SettingService
	queueClient       *queue.Client
	collector         *metrics.Collector
	httpClient        *http.Client
	notifyDelay       time.Duration
	unconfirmedNotify bool
}

// NewDispatcherService 创建回调投递服务
func NewDispatcherService(
	invoiceRepo repository.InvoiceRepository,
	txRepo repository.TransactionRepository,
	merchantRepo repository.MerchantRepository,
	settingSvc *SettingService,
	queueClient *queue.Client,
	collector *metrics.Collector,
	timeout time.Duration,
	notifyDelay time.Duration,
	unconfirmedNotify bool,
) *DispatcherService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DispatcherService{
		invoiceRepo:       invoiceRepo,
		txRepo:            txRepo,
		merchantRepo:      merchantRepo,
		settingSvc:        settingSvc,
		queueClient:       queueClient,
		collector:         collector,
		httpClient:        &http.Client{Timeout: timeout},
		notifyDelay:       notifyDelay,
		unconfirmedNotify: unconfirmedNotify,
	}
}

// Deliver 按交易投递商户回调，仅 202 视为确认。
// trigger 为 unconfirmed 时 transactionID 指零确认记录，否则指已确认交易。
func (s *DispatcherService) Deliver(ctx context.Context, invoiceID, transactionID uint, trigger string) error {
	invoice, err := s.invoiceRepo.GetByID(invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return ErrInvoiceNotFound
	}

	var merchant *models.Merchant
	if invoice.MerchantID != nil {
		merchant, err = s.merchantRepo.GetByID(*invoice.MerchantID)
		if err != nil {
			return err
		}
	}

	if trigger == constants.CallbackTriggerUnconfirmed {
		return s.deliverUnconfirmed(ctx, invoice, merchant, transactionID)
	}

	txn, err := s.txRepo.GetByID(transactionID)
	if err != nil {
		return err
	}
	if txn == nil || txn.CallbackConfirmed {
		return nil
	}
	if txn.NeedMoreConfirmations {
		logger.Infow("callback_waiting_confirmations",
			"invoice_id", invoiceID, "txid", txn.TxID, "confirmations", txn.Confirmations)
		return nil
	}
	// 出账账单不向商户投递，直接视为已确认以终止重试
	if invoice.Status == constants.InvoiceStatusOutgoing {
		return s.markCallbackConfirmed(txn)
	}
	if invoice.CallbackURL == "" {
		logger.Warnw("callback_url_missing", "invoice_id", invoiceID)
		return nil
	}

	body, err := s.buildPayload(invoice, merchant, txn.ID, trigger)
	if err != nil {
		return err
	}
	if err := s.post(ctx, invoice, merchant, body, trigger); err != nil {
		return err
	}

	if err := s.markCallbackConfirmed(txn); err != nil {
		return err
	}
	// 仅终态账单的送达才写账单级确认时间
	if isSettledStatus(invoice.Status) && invoice.NotifiedAt == nil {
		now := time.Now()
		invoice.NotifiedAt = &now
		invoice.UpdatedAt = now
		if err := s.invoiceRepo.Update(invoice); err != nil {
			return err
		}
	}
	logger.Infow("callback_delivered", "invoice_id", invoiceID, "txid", txn.TxID, "trigger", trigger)
	return nil
}

// deliverUnconfirmed 推送零确认提醒，载荷只含交易概要
func (s *DispatcherService) deliverUnconfirmed(ctx context.Context, invoice *models.Invoice, merchant *models.Merchant, utxID uint) error {
	utx, err := s.txRepo.GetUnconfirmedByID(utxID)
	if err != nil {
		return err
	}
	if utx == nil || utx.CallbackConfirmed {
		return nil
	}
	if invoice.CallbackURL == "" {
		logger.Warnw("callback_url_missing", "invoice_id", invoice.ID)
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"status":      "unconfirmed",
		"external_id": invoice.ExternalID,
		"crypto":      utx.Crypto,
		"addr":        utx.Address,
		"txid":        utx.TxID,
		"amount":      utx.Amount.String(),
	})
	if err != nil {
		return err
	}
	if err := s.post(ctx, invoice, merchant, body, constants.CallbackTriggerUnconfirmed); err != nil {
		return err
	}

	utx.CallbackConfirmed = true
	utx.UpdatedAt = time.Now()
	if err := s.txRepo.UpdateUnconfirmed(utx); err != nil {
		return err
	}
	logger.Infow("unconfirmed_callback_delivered", "invoice_id", invoice.ID, "txid", utx.TxID)
	return nil
}

func (s *DispatcherService) markCallbackConfirmed(txn *models.Transaction) error {
	txn.CallbackConfirmed = true
	txn.UpdatedAt = time.Now()
	return s.txRepo.Update(txn)
}

// post 发送回调请求，签名头仅在商户配置了回调密钥时附加
func (s *DispatcherService) post(ctx context.Context, invoice *models.Invoice, merchant *models.Merchant, body []byte, trigger string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, invoice.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if merchant != nil {
		req.Header.Set(constants.HeaderAPIKey, merchant.APIKey)
		if merchant.WebhookSecret != "" {
			timestamp := strconv.FormatInt(time.Now().Unix(), 10)
			req.Header.Set(constants.HeaderSignature, signPayload(merchant.WebhookSecret, timestamp, body))
			req.Header.Set(constants.HeaderTimestamp, timestamp)
		}
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		s.collector.CallbackDelivered("error", elapsed)
		logger.Warnw("callback_request_failed",
			"invoice_id", invoice.ID, "url", invoice.CallbackURL, "trigger", trigger, "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		s.collector.CallbackDelivered("rejected", elapsed)
		logger.Warnw("callback_not_accepted",
			"invoice_id", invoice.ID, "url", invoice.CallbackURL,
			"trigger", trigger, "status_code", resp.StatusCode)
		return fmt.Errorf("callback returned status %d, want 202", resp.StatusCode)
	}
	s.collector.CallbackDelivered("accepted", elapsed)
	return nil
}

// SweepUnnotified 补投未确认的回调：零确认提醒立即重试，
// 已确认交易过了通知延迟后重试，出账账单直接终止重试。
func (s *DispatcherService) SweepUnnotified(ctx context.Context) error {
	enqueued := 0

	if s.unconfirmedNotify {
		utxs, err := s.txRepo.ListUnconfirmedCallbackPending()
		if err != nil {
			return err
		}
		for _, utx := range utxs {
			invoice, err := s.invoiceRepo.GetByAddress(utx.Crypto, utx.Address)
			if err != nil {
				logger.Errorw("callback_sweep_invoice_lookup_failed",
					"crypto", utx.Crypto, "txid", utx.TxID, "error", err)
				continue
			}
			if invoice == nil || invoice.CallbackURL == "" {
				continue
			}
			err = s.queueClient.EnqueueCallbackDeliver(queue.CallbackDeliverPayload{
				InvoiceID:     invoice.ID,
				TransactionID: utx.ID,
				Trigger:       constants.CallbackTriggerUnconfirmed,
			}, 0)
			if err != nil {
				logger.Errorw("callback_sweep_enqueue_failed", "invoice_id", invoice.ID, "error", err)
				continue
			}
			enqueued++
		}
	}

	txns, err := s.txRepo.ListCallbackPending()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, txn := range txns {
		if txn.InvoiceID == nil {
			continue
		}
		if now.Before(txn.CreatedAt.Add(s.notifyDelay)) {
			continue
		}
		invoice, err := s.invoiceRepo.GetByID(*txn.InvoiceID)
		if err != nil {
			logger.Errorw("callback_sweep_invoice_lookup_failed",
				"crypto", txn.Crypto, "txid", txn.TxID, "error", err)
			continue
		}
		if invoice == nil {
			continue
		}
		if invoice.Status == constants.InvoiceStatusOutgoing {
			if err := s.markCallbackConfirmed(&txn); err != nil {
				logger.Errorw("callback_sweep_confirm_failed",
					"crypto", txn.Crypto, "txid", txn.TxID, "error", err)
			}
			continue
		}
		if invoice.CallbackURL == "" {
			continue
		}
		err = s.queueClient.EnqueueCallbackDeliver(queue.CallbackDeliverPayload{
			InvoiceID:     invoice.ID,
			TransactionID: txn.ID,
			Trigger:       constants.CallbackTriggerTaskSweep,
		}, 0)
		if err != nil {
			logger.Errorw("callback_sweep_enqueue_failed", "invoice_id", invoice.ID, "error", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		logger.Infow("callback_sweep_enqueued", "count", enqueued)
	}
	return nil
}

// buildPayload 构造回调请求体，键排序且无多余空白以保证签名可复算
func (s *DispatcherService) buildPayload(invoice *models.Invoice, merchant *models.Merchant, triggerTxID uint, trigger string) ([]byte, error) {
	transactions, err := s.txRepo.ListByInvoiceID(invoice.ID)
	if err != nil {
		return nil, err
	}

	percent, fixed := s.effectiveCommission(merchant)

	items := make([]map[string]interface{}, 0, len(transactions))
	for _, txn := range transactions {
		fee := txn.AmountFiat.Decimal.Mul(percent).Div(oneHundred)
		items = append(items, map[string]interface{}{
			"txid":                    txn.TxID,
			"category":                txn.Category,
			"amount_crypto":           txn.Amount.String(),
			"amount_fiat":             txn.AmountFiat.String(),
			"fee_fiat":                fee.Round(constants.FiatScale).String(),
			"amount_fiat_without_fee": txn.AmountFiat.Decimal.Sub(fee).Round(constants.FiatScale).String(),
			"confirmations":           txn.Confirmations,
			"need_more_confirmations": txn.NeedMoreConfirmations,
			"trigger":                 txn.ID == triggerTxID,
		})
	}

	overpaid := invoice.BalanceFiat.Decimal.Sub(invoice.AmountFiat.Decimal)
	if overpaid.Sign() < 0 {
		overpaid = decimal.Zero
	}
	payload := map[string]interface{}{
		"external_id":    invoice.ExternalID,
		"crypto":         invoice.Crypto,
		"fiat":           invoice.FiatCurrency,
		"amount_fiat":    invoice.AmountFiat.String(),
		"balance_fiat":   invoice.BalanceFiat.String(),
		"balance_crypto": invoice.BalanceCrypto.String(),
		"exchange_rate":  invoice.ExchangeRate.String(),
		"status":         invoice.Status,
		"paid":           isSettledStatus(invoice.Status),
		"trigger":        trigger,
		"overpaid_fiat":  overpaid.Round(constants.FiatScale).String(),
		"fee_percent":    percent.String(),
		"fee_fixed":      fixed.String(),
		"transactions":   items,
	}
	if invoice.Address != nil {
		payload["address"] = invoice.Address.Address
	}
	return json.Marshal(payload)
}

// effectiveCommission 无商户的历史账单不计提佣金
func (s *DispatcherService) effectiveCommission(merchant *models.Merchant) (percent, fixed decimal.Decimal) {
	if merchant == nil {
		return decimal.Zero, decimal.Zero
	}
	settings, err := s.settingSvc.GetPlatformSettings()
	if err == nil {
		percent = settings.CommissionPercent.Decimal
		fixed = settings.CommissionFixed.Decimal
	}
	if merchant.CommissionPercent != nil {
		percent = merchant.CommissionPercent.Decimal
	}
	if merchant.CommissionFixed != nil {
		fixed = merchant.CommissionFixed.Decimal
	}
	return percent, fixed
}

// signPayload 计算 HMAC-SHA256 签名，消息为 "{时间戳}.{请求体}"
func signPayload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
