package public

import (
	"errors"

	handlershared "github.com/shkeeper-next/internal/http/handlers/shared"
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var invoiceErrorRules = []mappedHandlerError{
	{target: service.ErrCryptoNotSupported, code: response.CodeBadRequest, msg: "不支持的币种"},
	{target: service.ErrCryptoDisabled, code: response.CodeBadRequest, msg: "币种已停用"},
	{target: service.ErrAmountInvalid, code: response.CodeBadRequest, msg: "金额无效"},
	{target: service.ErrInvoiceNotFound, code: response.CodeNotFound, msg: "账单不存在"},
	{target: service.ErrInvoiceCreateFailed, code: response.CodeInternal, msg: "账单创建失败"},
}

var payoutErrorRules = []mappedHandlerError{
	{target: service.ErrMerchantSuspended, code: response.CodeForbidden, msg: "商户已被停用"},
	{target: service.ErrSecurityPhraseMismatch, code: response.CodeForbidden, msg: "安全口令不正确"},
	{target: service.ErrCryptoNotSupported, code: response.CodeBadRequest, msg: "不支持的币种"},
	{target: service.ErrPayoutAddressMissing, code: response.CodeBadRequest, msg: "未配置出金地址"},
	{target: service.ErrBalanceNotFound, code: response.CodeBadRequest, msg: "无可用资金"},
	{target: service.ErrInsufficientBalance, code: response.CodeBadRequest, msg: "可用余额不足"},
	{target: service.ErrPayoutBelowMinimum, code: response.CodeBadRequest, msg: "低于最小出金额"},
	{target: service.ErrPayoutNotFound, code: response.CodeNotFound, msg: "出金单不存在"},
}
