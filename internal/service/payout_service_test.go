package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shkeeper-next/internal/chains"
	"github.com/shkeeper-next/internal/config"
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/metrics"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/queue"
	"github.com/shkeeper-next/internal/rates"
	"github.com/shkeeper-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakePayerAdapter 支持出金的内存链上后端
type fakePayerAdapter struct {
	fakeChainAdapter
	payoutErr       error
	payoutCalls     int
	lastDestination string
	lastAmount      decimal.Decimal
	lastFee         string
}

func (f *fakePayerAdapter) CreatePayout(_ context.Context, destination string, amount decimal.Decimal, fee string) (*chains.PayoutResult, error) {
	f.payoutCalls++
	f.lastDestination = destination
	f.lastAmount = amount
	f.lastFee = fee
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	return &chains.PayoutResult{TxIDs: []string{"payout-tx-1"}}, nil
}

type payoutFixture struct {
	db       *gorm.DB
	svc      *PayoutService
	adapter  *fakePayerAdapter
	merchant *models.Merchant
	bucket   *models.MerchantBalance
}

func setupPayoutTest(t *testing.T, name string) *payoutFixture {
	t.Helper()
	db := openGatewayTestDB(t, name)

	now := time.Now()
	merchant := &models.Merchant{
		Name:            "merchant-" + name,
		Email:           name + "@example.com",
		PasswordHash:    "hash",
		APIKey:          "apikey-" + name,
		WebhookSecret:   "secret-" + name,
		Status:          constants.MerchantStatusActive,
		PayoutAddresses: models.JSON{"BTC": "dest-addr-1"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}

	bucket := &models.MerchantBalance{
		MerchantID:       merchant.ID,
		Crypto:           "BTC",
		FiatCurrency:     "USD",
		AvailableBalance: models.NewMoneyFromDecimal(decimal.NewFromInt(500)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Create(bucket).Error; err != nil {
		t.Fatalf("create balance bucket failed: %v", err)
	}

	wallet := models.Wallet{
		Crypto:    "BTC",
		Enabled:   true,
		PayoutFee: "2000",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&wallet).Error; err != nil {
		t.Fatalf("create wallet failed: %v", err)
	}

	rate := models.ExchangeRate{
		Crypto:       "BTC",
		FiatCurrency: "USD",
		Source:       constants.RateSourceManual,
		Rate:         models.NewCoinAmountFromDecimal(decimal.NewFromInt(50000)),
		FeePolicy:    constants.FeePolicyPercent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(&rate).Error; err != nil {
		t.Fatalf("create exchange rate failed: %v", err)
	}

	adapter := &fakePayerAdapter{fakeChainAdapter: fakeChainAdapter{crypto: "BTC"}}
	qc, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	merchantRepo := repository.NewMerchantRepository(db)
	svc := NewPayoutService(
		repository.NewPayoutRepository(db),
		repository.NewBalanceRepository(db),
		merchantRepo,
		repository.NewWalletRepository(db),
		repository.NewTransactionRepository(db),
		NewMerchantService(&config.Config{}, merchantRepo, NewSettingService(repository.NewSettingRepository(db))),
		NewSettingService(repository.NewSettingRepository(db)),
		chains.NewRegistry(adapter),
		rates.NewResolver(repository.NewRateRepository(db), time.Second),
		qc,
		(*metrics.Collector)(nil),
	)
	return &payoutFixture{db: db, svc: svc, adapter: adapter, merchant: merchant, bucket: bucket}
}

func (fx *payoutFixture) reloadBucket(t *testing.T) *models.MerchantBalance {
	t.Helper()
	var bucket models.MerchantBalance
	if err := fx.db.First(&bucket, fx.bucket.ID).Error; err != nil {
		t.Fatalf("reload bucket failed: %v", err)
	}
	return &bucket
}

func TestPayoutRequestFreezesBalance(t *testing.T) {
	fx := setupPayoutTest(t, "payout_request")
	payout, err := fx.svc.Request(context.Background(), RequestPayoutInput{
		Merchant:       fx.merchant,
		Crypto:         "btc",
		FiatCurrency:   "USD",
		AmountFiat:     decimal.NewFromInt(100),
		SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if payout.Status != constants.PayoutStatusPending {
		t.Fatalf("expected pending status, got %s", payout.Status)
	}
	if payout.Destination != "dest-addr-1" {
		t.Fatalf("unexpected destination %s", payout.Destination)
	}

	bucket := fx.reloadBucket(t)
	if !bucket.AvailableBalance.Decimal.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected available 400, got %s", bucket.AvailableBalance.String())
	}
	if !bucket.PendingBalance.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected pending 100, got %s", bucket.PendingBalance.String())
	}

	// 金额为 0 表示全额出金
	payout, err = fx.svc.Request(context.Background(), RequestPayoutInput{
		Merchant:       fx.merchant,
		Crypto:         "BTC",
		SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("full balance Request error: %v", err)
	}
	if !payout.AmountFiat.Decimal.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected full amount 400, got %s", payout.AmountFiat.String())
	}
	bucket = fx.reloadBucket(t)
	if !bucket.AvailableBalance.Decimal.Equal(decimal.Zero) {
		t.Fatalf("expected available 0, got %s", bucket.AvailableBalance.String())
	}
	if !bucket.PendingBalance.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected pending 500, got %s", bucket.PendingBalance.String())
	}
}

func TestPayoutRequestValidation(t *testing.T) {
	fx := setupPayoutTest(t, "payout_validation")
	ctx := context.Background()

	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", SecurityPhrase: "",
	}); !errors.Is(err, ErrSecurityPhraseMismatch) {
		t.Fatalf("expected security phrase mismatch, got %v", err)
	}

	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "DOGE", SecurityPhrase: "open-sesame",
	}); !errors.Is(err, ErrCryptoNotSupported) {
		t.Fatalf("expected crypto not supported, got %v", err)
	}

	noAddr := *fx.merchant
	noAddr.PayoutAddresses = nil
	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: &noAddr, Crypto: "BTC", SecurityPhrase: "open-sesame",
	}); !errors.Is(err, ErrPayoutAddressMissing) {
		t.Fatalf("expected address missing, got %v", err)
	}

	// 平台默认最小出金额 50
	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(10), SecurityPhrase: "open-sesame",
	}); !errors.Is(err, ErrPayoutBelowMinimum) {
		t.Fatalf("expected below minimum, got %v", err)
	}

	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(1000), SecurityPhrase: "open-sesame",
	}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	suspended := *fx.merchant
	suspended.Status = constants.MerchantStatusSuspended
	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: &suspended, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	}); !errors.Is(err, ErrMerchantSuspended) {
		t.Fatalf("expected merchant suspended, got %v", err)
	}

	bucket := fx.reloadBucket(t)
	if !bucket.AvailableBalance.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("rejected requests must not touch balance, got %s", bucket.AvailableBalance.String())
	}
}

func TestPayoutApproveRejectTransitions(t *testing.T) {
	fx := setupPayoutTest(t, "payout_transitions")
	ctx := context.Background()
	payout, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	approved, err := fx.svc.Approve(payout.ID)
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if approved.Status != constants.PayoutStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if _, err := fx.svc.Approve(payout.ID); !errors.Is(err, ErrPayoutInvalidTransition) {
		t.Fatalf("expected invalid transition on double approve, got %v", err)
	}

	rejected, err := fx.svc.Reject(payout.ID, "manual review declined")
	if err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	if rejected.Status != constants.PayoutStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.ErrorMessage != "manual review declined" {
		t.Fatalf("unexpected reject reason %q", rejected.ErrorMessage)
	}

	// 驳回后冻结资金解冻
	bucket := fx.reloadBucket(t)
	if !bucket.AvailableBalance.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected available restored to 500, got %s", bucket.AvailableBalance.String())
	}
	if !bucket.PendingBalance.Decimal.Equal(decimal.Zero) {
		t.Fatalf("expected pending 0, got %s", bucket.PendingBalance.String())
	}

	if _, err := fx.svc.Reject(payout.ID, "again"); !errors.Is(err, ErrPayoutInvalidTransition) {
		t.Fatalf("expected invalid transition on double reject, got %v", err)
	}
	if _, err := fx.svc.Retry(payout.ID); !errors.Is(err, ErrPayoutInvalidTransition) {
		t.Fatalf("expected invalid transition on retry of rejected payout, got %v", err)
	}
}

func TestPayoutProcessCompletes(t *testing.T) {
	fx := setupPayoutTest(t, "payout_process")
	ctx := context.Background()
	payout, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := fx.svc.Approve(payout.ID); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	if err := fx.svc.Process(ctx, payout.ID); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if fx.adapter.payoutCalls != 1 {
		t.Fatalf("expected 1 payout call, got %d", fx.adapter.payoutCalls)
	}
	if fx.adapter.lastDestination != "dest-addr-1" {
		t.Fatalf("unexpected destination %s", fx.adapter.lastDestination)
	}
	if fx.adapter.lastFee != "2000" {
		t.Fatalf("expected wallet payout fee, got %s", fx.adapter.lastFee)
	}
	// 100 USD / 50000 = 0.002 BTC
	if !fx.adapter.lastAmount.Equal(decimal.NewFromFloat(0.002)) {
		t.Fatalf("expected amount 0.002, got %s", fx.adapter.lastAmount.String())
	}

	done, err := fx.svc.GetByID(payout.ID, fx.merchant.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if done.Status != constants.PayoutStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if len(done.TxIDs) != 1 || done.TxIDs[0] != "payout-tx-1" {
		t.Fatalf("unexpected txids %v", done.TxIDs)
	}
	if done.ProcessedAt == nil {
		t.Fatalf("expected processed_at to be set")
	}

	bucket := fx.reloadBucket(t)
	if !bucket.PendingBalance.Decimal.Equal(decimal.Zero) {
		t.Fatalf("expected pending burned, got %s", bucket.PendingBalance.String())
	}
	if !bucket.TotalPaidOut.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total paid out 100, got %s", bucket.TotalPaidOut.String())
	}

	var outgoing models.Transaction
	if err := fx.db.Where("tx_id = ?", "payout-tx-1").First(&outgoing).Error; err != nil {
		t.Fatalf("load outgoing tx failed: %v", err)
	}
	if outgoing.Category != constants.TxCategorySend || outgoing.Address != "dest-addr-1" {
		t.Fatalf("unexpected outgoing tx %+v", outgoing)
	}

	// 重复完成只生效一次
	if err := fx.svc.complete(payout.ID, []string{"payout-tx-1"}); err != nil {
		t.Fatalf("second complete error: %v", err)
	}
	bucket = fx.reloadBucket(t)
	if !bucket.TotalPaidOut.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("double complete must not burn twice, got %s", bucket.TotalPaidOut.String())
	}
}

func TestPayoutProcessFailureAndRetry(t *testing.T) {
	fx := setupPayoutTest(t, "payout_failure")
	ctx := context.Background()
	payout, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := fx.svc.Approve(payout.ID); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	fx.adapter.payoutErr = errors.New("hot wallet empty")
	if err := fx.svc.Process(ctx, payout.ID); err == nil {
		t.Fatalf("expected process error")
	}

	failed, err := fx.svc.GetByID(payout.ID, 0)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if failed.Status != constants.PayoutStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.ErrorMessage != "hot wallet empty" {
		t.Fatalf("unexpected error message %q", failed.ErrorMessage)
	}

	// 失败不解冻，资金仍在在途余额中
	bucket := fx.reloadBucket(t)
	if !bucket.PendingBalance.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected pending kept at 100, got %s", bucket.PendingBalance.String())
	}

	retried, err := fx.svc.Retry(payout.ID)
	if err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if retried.Status != constants.PayoutStatusApproved {
		t.Fatalf("expected approved after retry, got %s", retried.Status)
	}

	fx.adapter.payoutErr = nil
	if err := fx.svc.Process(ctx, payout.ID); err != nil {
		t.Fatalf("Process after retry error: %v", err)
	}
	done, err := fx.svc.GetByID(payout.ID, 0)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if done.Status != constants.PayoutStatusCompleted {
		t.Fatalf("expected completed after retry, got %s", done.Status)
	}
}

func TestPayoutProcessUnsupportedChain(t *testing.T) {
	fx := setupPayoutTest(t, "payout_unsupported")
	ctx := context.Background()
	payout, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := fx.svc.Approve(payout.ID); err != nil {
		t.Fatalf("Approve error: %v", err)
	}

	// 换成只读后端，出金应被拒绝
	fx.svc.registry = chains.NewRegistry(&fakeChainAdapter{crypto: "BTC"})
	if err := fx.svc.Process(ctx, payout.ID); !errors.Is(err, chains.ErrPayoutUnsupported) {
		t.Fatalf("expected payout unsupported, got %v", err)
	}
}

func TestCompleteFromBackend(t *testing.T) {
	fx := setupPayoutTest(t, "payout_backend_notify")
	ctx := context.Background()
	payout, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := fx.svc.Approve(payout.ID); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	// 手工置为处理中，模拟链上请求已发出但完成通知走后端回调
	if _, err := fx.svc.payoutRepo.UpdateStatusCAS(payout.ID, constants.PayoutStatusApproved, map[string]interface{}{
		"status": constants.PayoutStatusProcessing,
	}); err != nil {
		t.Fatalf("mark processing failed: %v", err)
	}

	outcome, err := fx.svc.CompleteFromBackend("DOGE", []PayoutNotifyEntry{
		{Dest: "dest-addr-1", TxIDs: []string{"tx-1"}, Status: "success"},
	})
	if err != nil {
		t.Fatalf("CompleteFromBackend error: %v", err)
	}
	if !outcome.UnknownCrypto {
		t.Fatalf("expected unknown crypto outcome, got %+v", outcome)
	}

	outcome, err = fx.svc.CompleteFromBackend("BTC", []PayoutNotifyEntry{
		{Dest: "addr-nobody", TxIDs: []string{"tx-1"}, Status: "success"},
	})
	if err != nil {
		t.Fatalf("CompleteFromBackend error: %v", err)
	}
	if outcome.Unrelated != 1 {
		t.Fatalf("expected unrelated outcome, got %+v", outcome)
	}

	// 非 success 回执只落记录，不完结出金单
	outcome, err = fx.svc.CompleteFromBackend("BTC", []PayoutNotifyEntry{
		{Dest: "dest-addr-1", Amount: decimal.NewFromFloat(0.002), TxIDs: []string{"chain-tx-9"}, Status: "error"},
	})
	if err != nil {
		t.Fatalf("CompleteFromBackend error: %v", err)
	}
	if outcome.Ignored != 1 || outcome.Processed != 0 {
		t.Fatalf("expected ignored outcome, got %+v", outcome)
	}
	still, err := fx.svc.GetByID(payout.ID, 0)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if still.Status != constants.PayoutStatusProcessing {
		t.Fatalf("failed receipt must not complete payout, got %s", still.Status)
	}

	outcome, err = fx.svc.CompleteFromBackend("BTC", []PayoutNotifyEntry{
		{Dest: "dest-addr-1", Amount: decimal.NewFromFloat(0.002), TxIDs: []string{"chain-tx-9"}, Status: "success"},
	})
	if err != nil {
		t.Fatalf("CompleteFromBackend error: %v", err)
	}
	if outcome.Processed != 1 {
		t.Fatalf("expected 1 processed, got %+v", outcome)
	}

	done, err := fx.svc.GetByID(payout.ID, 0)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if done.Status != constants.PayoutStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if len(done.TxIDs) != 1 || done.TxIDs[0] != "chain-tx-9" {
		t.Fatalf("unexpected txids %v", done.TxIDs)
	}

	// 每条回执都留底
	var records int64
	if err := fx.db.Model(&models.PayoutRecord{}).Where("crypto = ?", "BTC").Count(&records).Error; err != nil {
		t.Fatalf("count payout records failed: %v", err)
	}
	if records != 3 {
		t.Fatalf("expected 3 payout records, got %d", records)
	}
}

func TestPayoutProcessUsesPlainRate(t *testing.T) {
	fx := setupPayoutTest(t, "payout_plain_rate")
	ctx := context.Background()
	// 收款侧渠道加价 1% 不影响出金折算
	if err := fx.db.Model(&models.ExchangeRate{}).
		Where("crypto = ? AND fiat_currency = ?", "BTC", "USD").
		Update("fee_percent", decimal.NewFromInt(1)).Error; err != nil {
		t.Fatalf("update rate fee failed: %v", err)
	}

	payout, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := fx.svc.Approve(payout.ID); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := fx.svc.Process(ctx, payout.ID); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	// 100 USD / 50000 = 0.002 BTC，而不是加价后的 0.00202
	if !fx.adapter.lastAmount.Equal(decimal.NewFromFloat(0.002)) {
		t.Fatalf("expected plain rate amount 0.002, got %s", fx.adapter.lastAmount.String())
	}
}

func TestPayoutMinimumTakesStricterLimit(t *testing.T) {
	fx := setupPayoutTest(t, "payout_min_limit")
	ctx := context.Background()

	// 商户覆盖值低于平台默认 50 时以平台为准
	low := models.NewMoneyFromDecimal(decimal.NewFromInt(10))
	fx.merchant.MinPayoutFiat = &low
	if err := fx.db.Save(fx.merchant).Error; err != nil {
		t.Fatalf("save merchant failed: %v", err)
	}
	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(20), SecurityPhrase: "open-sesame",
	}); !errors.Is(err, ErrPayoutBelowMinimum) {
		t.Fatalf("expected below minimum with platform floor, got %v", err)
	}

	// 商户覆盖值更严格时以商户为准
	high := models.NewMoneyFromDecimal(decimal.NewFromInt(200))
	fx.merchant.MinPayoutFiat = &high
	if err := fx.db.Save(fx.merchant).Error; err != nil {
		t.Fatalf("save merchant failed: %v", err)
	}
	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(100), SecurityPhrase: "open-sesame",
	}); !errors.Is(err, ErrPayoutBelowMinimum) {
		t.Fatalf("expected below merchant minimum, got %v", err)
	}
	if _, err := fx.svc.Request(ctx, RequestPayoutInput{
		Merchant: fx.merchant, Crypto: "BTC", AmountFiat: decimal.NewFromInt(200), SecurityPhrase: "open-sesame",
	}); err != nil {
		t.Fatalf("expected request at merchant minimum to pass, got %v", err)
	}
}
