package service

import "errors"

// 认证与商户相关错误
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrMerchantNotFound       = errors.New("merchant not found")
	ErrMerchantExists         = errors.New("merchant already exists")
	ErrMerchantSuspended      = errors.New("merchant suspended")
	ErrMerchantPending        = errors.New("merchant pending approval")
	ErrSecurityPhraseMismatch = errors.New("security phrase mismatch")
	ErrBackendKeyInvalid      = errors.New("backend key invalid")
)

// 账单相关错误
var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInvoiceExists       = errors.New("invoice already exists")
	ErrInvoiceCreateFailed = errors.New("invoice create failed")
	ErrInvoiceUpdateFailed = errors.New("invoice update failed")
	ErrCryptoNotSupported  = errors.New("crypto not supported")
	ErrCryptoDisabled      = errors.New("crypto disabled")
	ErrAmountInvalid       = errors.New("amount invalid")
)

// 链上交易相关错误
var (
	ErrTransactionExists        = errors.New("transaction already exists")
	ErrTransactionCreateFailed  = errors.New("transaction create failed")
	ErrTxNotRelatedToAnyInvoice = errors.New("transaction not related to any invoice")
)

// 资金台账相关错误
var (
	ErrBalanceNotFound     = errors.New("balance bucket not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceUpdateFailed = errors.New("balance update failed")
)

// 出金相关错误
var (
	ErrPayoutNotFound          = errors.New("payout not found")
	ErrPayoutBelowMinimum      = errors.New("payout below minimum")
	ErrPayoutAddressMissing    = errors.New("payout address missing")
	ErrPayoutInvalidTransition = errors.New("payout invalid status transition")
	ErrPayoutAlreadyFinished   = errors.New("payout already finished")
)
