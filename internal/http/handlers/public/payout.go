package public

import (
	"strconv"

	handlershared "github.com/shkeeper-next/internal/http/handlers/shared"
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/repository"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type requestPayoutRequest struct {
	Crypto         string `json:"crypto" binding:"required"`
	Fiat           string `json:"fiat"`
	AmountFiat     string `json:"amount_fiat"`
	SecurityPhrase string `json:"security_phrase" binding:"required"`
}

// RequestPayout 发起出金申请
func (h *Handler) RequestPayout(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	var req requestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	amount := decimal.Zero
	if req.AmountFiat != "" {
		parsed, err := decimal.NewFromString(req.AmountFiat)
		if err != nil || parsed.Sign() < 0 {
			respondError(c, response.CodeBadRequest, "金额无效", nil)
			return
		}
		amount = parsed
	}

	payout, err := h.PayoutService.Request(c.Request.Context(), service.RequestPayoutInput{
		Merchant:       merchant,
		Crypto:         req.Crypto,
		FiatCurrency:   req.Fiat,
		AmountFiat:     amount,
		SecurityPhrase: req.SecurityPhrase,
	})
	if err != nil {
		respondWithMappedError(c, err, payoutErrorRules, response.CodeInternal, "出金申请失败")
		return
	}
	response.Success(c, payout)
}

// GetPayout 查询出金单
func (h *Handler) GetPayout(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "参数错误", nil)
		return
	}
	payout, err := h.PayoutService.GetByID(uint(id), merchant.ID)
	if err != nil {
		respondWithMappedError(c, err, payoutErrorRules, response.CodeInternal, "出金单查询失败")
		return
	}
	response.Success(c, payout)
}

// ListPayouts 分页查询出金单
func (h *Handler) ListPayouts(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	payouts, total, err := h.PayoutService.List(repository.PayoutListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: merchant.ID,
		Crypto:     c.Query("crypto"),
		Status:     c.Query("status"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "出金单查询失败", err)
		return
	}
	response.SuccessWithPage(c, payouts, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
