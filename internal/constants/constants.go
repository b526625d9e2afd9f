package constants

// 账单状态常量
const (
	InvoiceStatusUnpaid      = "unpaid"
	InvoiceStatusPartial     = "partial"
	InvoiceStatusPaid        = "paid"
	InvoiceStatusOverpaid    = "overpaid"
	InvoiceStatusPaidExpired = "paid_expired"
	InvoiceStatusOutgoing    = "outgoing"
)

// 链上交易类别常量
const (
	TxCategoryReceive  = "receive"
	TxCategorySend     = "send"
	TxCategoryInternal = "internal"
)

// 回调触发原因常量
const (
	CallbackTriggerWalletNotify = "walletnotify"
	CallbackTriggerUnconfirmed  = "unconfirmed"
	CallbackTriggerTaskSweep    = "task"
)

// 商户状态常量
const (
	MerchantStatusActive    = "active"
	MerchantStatusPending   = "pending"
	MerchantStatusSuspended = "suspended"
)

// 出金状态常量
const (
	PayoutStatusPending    = "pending"
	PayoutStatusApproved   = "approved"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
	PayoutStatusRejected   = "rejected"
)

// 汇率来源常量
const (
	RateSourceManual   = "manual"
	RateSourceCoinbase = "coinbase"
	RateSourceBinance  = "binance"
)

// 汇率手续费策略常量
const (
	FeePolicyPercent         = "percent"
	FeePolicyFixed           = "fixed"
	FeePolicyPercentAndFixed = "percent_and_fixed"
)

// 网关请求头常量
const (
	HeaderAPIKey     = "X-Shkeeper-Api-Key"
	HeaderBackendKey = "X-Shkeeper-Backend-Key"
	HeaderSignature  = "X-Shkeeper-Signature"
	HeaderTimestamp  = "X-Shkeeper-Timestamp"
)

// 队列常量
const (
	QueueDefault              = "default"
	TaskCallbackDeliver       = "callback:deliver"
	TaskCallbackSweep         = "callback:sweep"
	TaskConfirmationSweep     = "confirmation:sweep"
	TaskPayoutProcessApproved = "payout:process_approved"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "sk"
)

// 平台设置键常量
const (
	SettingKeyCommissionPercent = "commission_percent"
	SettingKeyCommissionFixed   = "commission_fixed"
	SettingKeyMinPayoutFiat     = "min_payout_fiat"
	SettingKeyUnconfirmedNotify = "unconfirmed_notify"
	SettingKeyNotificationDelay = "notification_delay_seconds"
	SettingKeyAutoApprove       = "auto_approve_merchants"
)

// 金额精度常量
const (
	FiatScale   = 2
	CryptoScale = 8
)

// 默认法币常量
const (
	FiatCurrencyDefault = "USD"
)

// 出金默认常量
const (
	MinPayoutFiatDefault = "50"
	PayoutFeeDefault     = "10000"
)
