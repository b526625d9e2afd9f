package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/metrics"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/queue"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type capturedCallback struct {
	calls     int
	body      []byte
	apiKey    string
	signature string
	timestamp string
}

func setupDispatcherTest(t *testing.T, name string, callbackStatus int, notifyDelay time.Duration) (*gorm.DB, *DispatcherService, *models.Invoice, *models.Merchant, *capturedCallback, *httptest.Server) {
	t.Helper()
	db := openGatewayTestDB(t, name)

	captured := &capturedCallback{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured.calls++
		captured.body = body
		captured.apiKey = r.Header.Get(constants.HeaderAPIKey)
		captured.signature = r.Header.Get(constants.HeaderSignature)
		captured.timestamp = r.Header.Get(constants.HeaderTimestamp)
		w.WriteHeader(callbackStatus)
	}))
	t.Cleanup(server.Close)

	now := time.Now()
	merchant := &models.Merchant{
		Name:          "merchant-" + name,
		Email:         name + "@example.com",
		PasswordHash:  "hash",
		APIKey:        "apikey-" + name,
		WebhookSecret: "whsec-" + name,
		Status:        constants.MerchantStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}

	invoice := &models.Invoice{
		ExternalID:    "order-cb-1",
		MerchantID:    &merchant.ID,
		Crypto:        "BTC",
		FiatCurrency:  "USD",
		AmountFiat:    models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		ExchangeRate:  models.NewCoinAmountFromDecimal(decimal.NewFromInt(50000)),
		BalanceCrypto: models.NewCoinAmountFromDecimal(decimal.NewFromFloat(0.002)),
		BalanceFiat:   models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Status:        constants.InvoiceStatusPaid,
		CallbackURL:   server.URL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(invoice).Error; err != nil {
		t.Fatalf("create invoice failed: %v", err)
	}

	qc, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	svc := NewDispatcherService(
		repository.NewInvoiceRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewMerchantRepository(db),
		NewSettingService(repository.NewSettingRepository(db)),
		qc,
		(*metrics.Collector)(nil),
		5*time.Second,
		notifyDelay,
		true,
	)
	return db, svc, invoice, merchant, captured, server
}

func seedCallbackTransaction(t *testing.T, db *gorm.DB, invoiceID uint, txid string) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		InvoiceID:     &invoiceID,
		Crypto:        "BTC",
		TxID:          txid,
		Address:       "addr-cb-1",
		Category:      constants.TxCategoryReceive,
		Amount:        models.NewCoinAmountFromDecimal(decimal.NewFromFloat(0.002)),
		AmountFiat:    models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Confirmations: 2,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("create transaction failed: %v", err)
	}
	return txn
}

func TestDeliverSignsAndMarksNotified(t *testing.T) {
	db, svc, invoice, merchant, captured, _ := setupDispatcherTest(t, "dispatcher_accept", http.StatusAccepted, 0)
	txn := seedCallbackTransaction(t, db, invoice.ID, "tx-cb-1")

	if err := svc.Deliver(context.Background(), invoice.ID, txn.ID, constants.CallbackTriggerWalletNotify); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if captured.apiKey != merchant.APIKey {
		t.Fatalf("expected api key header %s, got %s", merchant.APIKey, captured.apiKey)
	}
	if captured.timestamp == "" || captured.signature == "" {
		t.Fatalf("expected signature headers, got %+v", captured)
	}
	want := signPayload(merchant.WebhookSecret, captured.timestamp, captured.body)
	if captured.signature != want {
		t.Fatalf("signature mismatch, want %s got %s", want, captured.signature)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(captured.body, &payload); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if payload["external_id"] != "order-cb-1" {
		t.Fatalf("unexpected external_id %v", payload["external_id"])
	}
	if payload["status"] != constants.InvoiceStatusPaid {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if payload["paid"] != true {
		t.Fatalf("expected paid true, got %v", payload["paid"])
	}
	if payload["trigger"] != constants.CallbackTriggerWalletNotify {
		t.Fatalf("unexpected trigger %v", payload["trigger"])
	}
	if payload["amount_fiat"] != "100.00" {
		t.Fatalf("unexpected amount_fiat %v", payload["amount_fiat"])
	}

	var reloadedTxn models.Transaction
	if err := db.First(&reloadedTxn, txn.ID).Error; err != nil {
		t.Fatalf("reload transaction failed: %v", err)
	}
	if !reloadedTxn.CallbackConfirmed {
		t.Fatalf("expected transaction callback confirmed after 202")
	}
	var reloaded models.Invoice
	if err := db.First(&reloaded, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice failed: %v", err)
	}
	if reloaded.NotifiedAt == nil {
		t.Fatalf("expected notified_at set after 202")
	}
}

func TestDeliverRejectedKeepsUnnotified(t *testing.T) {
	db, svc, invoice, _, _, _ := setupDispatcherTest(t, "dispatcher_reject", http.StatusOK, 0)
	txn := seedCallbackTransaction(t, db, invoice.ID, "tx-cb-reject")

	if err := svc.Deliver(context.Background(), invoice.ID, txn.ID, constants.CallbackTriggerWalletNotify); err == nil {
		t.Fatalf("expected error for non-202 response")
	}

	var reloadedTxn models.Transaction
	if err := db.First(&reloadedTxn, txn.ID).Error; err != nil {
		t.Fatalf("reload transaction failed: %v", err)
	}
	if reloadedTxn.CallbackConfirmed {
		t.Fatalf("non-202 response must not confirm transaction callback")
	}
	var reloaded models.Invoice
	if err := db.First(&reloaded, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice failed: %v", err)
	}
	if reloaded.NotifiedAt != nil {
		t.Fatalf("non-202 response must not mark invoice notified")
	}
}

func TestDeliverSkipsTransactionAwaitingConfirmations(t *testing.T) {
	db, svc, invoice, _, captured, _ := setupDispatcherTest(t, "dispatcher_needmore", http.StatusAccepted, 0)
	txn := seedCallbackTransaction(t, db, invoice.ID, "tx-cb-pending")
	txn.NeedMoreConfirmations = true
	if err := db.Save(txn).Error; err != nil {
		t.Fatalf("save transaction failed: %v", err)
	}

	if err := svc.Deliver(context.Background(), invoice.ID, txn.ID, constants.CallbackTriggerWalletNotify); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if captured.calls != 0 {
		t.Fatalf("transaction awaiting confirmations must not be delivered, got %d calls", captured.calls)
	}
	var reloadedTxn models.Transaction
	if err := db.First(&reloadedTxn, txn.ID).Error; err != nil {
		t.Fatalf("reload transaction failed: %v", err)
	}
	if reloadedTxn.CallbackConfirmed {
		t.Fatalf("transaction awaiting confirmations must stay unconfirmed")
	}
}

func TestDeliverNonSettledKeepsInvoiceUnnotified(t *testing.T) {
	db, svc, invoice, _, _, _ := setupDispatcherTest(t, "dispatcher_partial", http.StatusAccepted, 0)
	invoice.Status = constants.InvoiceStatusPartial
	if err := db.Save(invoice).Error; err != nil {
		t.Fatalf("save invoice failed: %v", err)
	}
	txn := seedCallbackTransaction(t, db, invoice.ID, "tx-cb-partial")

	if err := svc.Deliver(context.Background(), invoice.ID, txn.ID, constants.CallbackTriggerWalletNotify); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	// 交易级确认成功，账单级确认时间留给终态投递
	var reloadedTxn models.Transaction
	if err := db.First(&reloadedTxn, txn.ID).Error; err != nil {
		t.Fatalf("reload transaction failed: %v", err)
	}
	if !reloadedTxn.CallbackConfirmed {
		t.Fatalf("expected transaction callback confirmed")
	}
	var reloaded models.Invoice
	if err := db.First(&reloaded, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice failed: %v", err)
	}
	if reloaded.NotifiedAt != nil {
		t.Fatalf("partial invoice must not be marked notified")
	}
}

func TestDeliverUnconfirmedSendsSlimPayload(t *testing.T) {
	db, svc, invoice, _, captured, _ := setupDispatcherTest(t, "dispatcher_unconfirmed", http.StatusAccepted, 0)
	utx := &models.UnconfirmedTransaction{
		Crypto:  "BTC",
		TxID:    "tx-mempool-1",
		Address: "addr-cb-1",
		Amount:  models.NewCoinAmountFromDecimal(decimal.NewFromFloat(0.002)),
	}
	if err := db.Create(utx).Error; err != nil {
		t.Fatalf("create unconfirmed failed: %v", err)
	}

	if err := svc.Deliver(context.Background(), invoice.ID, utx.ID, constants.CallbackTriggerUnconfirmed); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(captured.body, &payload); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if payload["status"] != "unconfirmed" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if payload["external_id"] != "order-cb-1" || payload["txid"] != "tx-mempool-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload["addr"] != "addr-cb-1" || payload["crypto"] != "BTC" {
		t.Fatalf("unexpected payload %v", payload)
	}
	// 零确认提醒只带交易概要
	if _, ok := payload["transactions"]; ok {
		t.Fatalf("unconfirmed payload must not include transactions")
	}
	if len(payload) != 6 {
		t.Fatalf("expected slim payload with 6 keys, got %v", payload)
	}

	var reloadedUtx models.UnconfirmedTransaction
	if err := db.First(&reloadedUtx, utx.ID).Error; err != nil {
		t.Fatalf("reload unconfirmed failed: %v", err)
	}
	if !reloadedUtx.CallbackConfirmed {
		t.Fatalf("expected unconfirmed callback confirmed after 202")
	}
	var reloaded models.Invoice
	if err := db.First(&reloaded, invoice.ID).Error; err != nil {
		t.Fatalf("reload invoice failed: %v", err)
	}
	if reloaded.NotifiedAt != nil {
		t.Fatalf("unconfirmed trigger must not mark invoice notified")
	}
}

func TestDeliverWithoutWebhookSecretOmitsSignature(t *testing.T) {
	db, svc, invoice, merchant, captured, _ := setupDispatcherTest(t, "dispatcher_nosecret", http.StatusAccepted, 0)
	merchant.WebhookSecret = ""
	if err := db.Save(merchant).Error; err != nil {
		t.Fatalf("save merchant failed: %v", err)
	}
	txn := seedCallbackTransaction(t, db, invoice.ID, "tx-cb-nosecret")

	if err := svc.Deliver(context.Background(), invoice.ID, txn.ID, constants.CallbackTriggerWalletNotify); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if captured.apiKey != merchant.APIKey {
		t.Fatalf("expected api key header, got %s", captured.apiKey)
	}
	if captured.signature != "" || captured.timestamp != "" {
		t.Fatalf("signature headers must be omitted without webhook secret, got %+v", captured)
	}
}

func TestDeliverIncludesTransactions(t *testing.T) {
	db, svc, invoice, _, captured, _ := setupDispatcherTest(t, "dispatcher_txs", http.StatusAccepted, 0)
	other := seedCallbackTransaction(t, db, invoice.ID, "tx-cb-other")
	other.CallbackConfirmed = true
	if err := db.Save(other).Error; err != nil {
		t.Fatalf("save transaction failed: %v", err)
	}
	txn := seedCallbackTransaction(t, db, invoice.ID, "tx-cb-2")

	if err := svc.Deliver(context.Background(), invoice.ID, txn.ID, constants.CallbackTriggerTaskSweep); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	var payload struct {
		Transactions []struct {
			TxID          string `json:"txid"`
			Category      string `json:"category"`
			AmountCrypto  string `json:"amount_crypto"`
			AmountFiat    string `json:"amount_fiat"`
			Confirmations uint   `json:"confirmations"`
			Trigger       bool   `json:"trigger"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(captured.body, &payload); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if len(payload.Transactions) != 2 {
		t.Fatalf("expected 2 transactions in payload, got %d", len(payload.Transactions))
	}
	// 载荷带全部交易，trigger 标记本次触发的那笔
	for _, item := range payload.Transactions {
		switch item.TxID {
		case "tx-cb-2":
			if !item.Trigger {
				t.Fatalf("expected trigger true for %s", item.TxID)
			}
			if item.AmountFiat != "100.00" || item.Category != constants.TxCategoryReceive {
				t.Fatalf("unexpected transaction item %+v", item)
			}
		case "tx-cb-other":
			if item.Trigger {
				t.Fatalf("expected trigger false for %s", item.TxID)
			}
		default:
			t.Fatalf("unexpected txid %s", item.TxID)
		}
	}
}

func TestSweepConfirmsOutgoingWithoutDelivery(t *testing.T) {
	db, svc, _, _, captured, server := setupDispatcherTest(t, "dispatcher_sweep_outgoing", http.StatusAccepted, 0)

	now := time.Now()
	outgoing := &models.Invoice{
		ExternalID:   "tx-out-sweep",
		Crypto:       "BTC",
		FiatCurrency: "USD",
		Status:       constants.InvoiceStatusOutgoing,
		CallbackURL:  server.URL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(outgoing).Error; err != nil {
		t.Fatalf("create outgoing invoice failed: %v", err)
	}
	txn := &models.Transaction{
		InvoiceID: &outgoing.ID,
		Crypto:    "BTC",
		TxID:      "tx-out-sweep",
		Address:   "addr-external",
		Category:  constants.TxCategorySend,
		Amount:    models.NewCoinAmountFromDecimal(decimal.NewFromFloat(0.01)),
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("create outgoing tx failed: %v", err)
	}

	if err := svc.SweepUnnotified(context.Background()); err != nil {
		t.Fatalf("SweepUnnotified error: %v", err)
	}

	if captured.calls != 0 {
		t.Fatalf("outgoing tx must not be delivered, got %d calls", captured.calls)
	}
	var reloadedTxn models.Transaction
	if err := db.First(&reloadedTxn, txn.ID).Error; err != nil {
		t.Fatalf("reload transaction failed: %v", err)
	}
	if !reloadedTxn.CallbackConfirmed {
		t.Fatalf("sweep must confirm outgoing tx to stop retries")
	}
}

func TestSweepHonorsNotifyDelay(t *testing.T) {
	db, svc, _, _, _, server := setupDispatcherTest(t, "dispatcher_sweep_delay", http.StatusAccepted, time.Hour)

	now := time.Now()
	outgoing := &models.Invoice{
		ExternalID:   "tx-out-delayed",
		Crypto:       "BTC",
		FiatCurrency: "USD",
		Status:       constants.InvoiceStatusOutgoing,
		CallbackURL:  server.URL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(outgoing).Error; err != nil {
		t.Fatalf("create outgoing invoice failed: %v", err)
	}
	txn := &models.Transaction{
		InvoiceID: &outgoing.ID,
		Crypto:    "BTC",
		TxID:      "tx-out-delayed",
		Address:   "addr-external",
		Category:  constants.TxCategorySend,
		Amount:    models.NewCoinAmountFromDecimal(decimal.NewFromFloat(0.01)),
		CreatedAt: now,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("create outgoing tx failed: %v", err)
	}

	if err := svc.SweepUnnotified(context.Background()); err != nil {
		t.Fatalf("SweepUnnotified error: %v", err)
	}

	// 未过通知延迟的交易留给下一轮补投
	var reloadedTxn models.Transaction
	if err := db.First(&reloadedTxn, txn.ID).Error; err != nil {
		t.Fatalf("reload transaction failed: %v", err)
	}
	if reloadedTxn.CallbackConfirmed {
		t.Fatalf("tx inside notify delay must not be touched by sweep")
	}
}
