package admin

import (
	"errors"
	"strconv"

	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/repository"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAdminPayouts 获取出金单列表 (Admin)
func (h *Handler) GetAdminPayouts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	merchantID := uint(0)
	if raw := c.Query("merchant_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "参数错误", nil)
			return
		}
		merchantID = uint(parsed)
	}

	payouts, total, err := h.PayoutService.List(repository.PayoutListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: merchantID,
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

func payoutIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "参数错误", nil)
		return 0, false
	}
	return uint(id), true
}

func respondPayoutActionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrPayoutNotFound):
		respondError(c, response.CodeNotFound, "出金单不存在", nil)
	case errors.Is(err, service.ErrPayoutInvalidTransition):
		respondError(c, response.CodeBadRequest, "出金单状态不允许该操作", nil)
	case errors.Is(err, service.ErrBalanceNotFound):
		respondError(c, response.CodeInternal, "台账分桶缺失", err)
	default:
		respondError(c, response.CodeInternal, fallback, err)
	}
}

// ApproveAdminPayout 审核通过出金单 (Admin)
func (h *Handler) ApproveAdminPayout(c *gin.Context) {
	id, ok := payoutIDParam(c)
	if !ok {
		return
	}
	payout, err := h.PayoutService.Approve(id)
	if err != nil {
		respondPayoutActionError(c, err, "出金审核失败")
		return
	}
	requestLog(c).Infow("admin_payout_approved", "payout_id", id)
	response.Success(c, payout)
}

// RejectPayoutRequest 驳回出金请求
type RejectPayoutRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectAdminPayout 驳回出金单并解冻资金 (Admin)
func (h *Handler) RejectAdminPayout(c *gin.Context) {
	id, ok := payoutIDParam(c)
	if !ok {
		return
	}
	var req RejectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	payout, err := h.PayoutService.Reject(id, req.Reason)
	if err != nil {
		respondPayoutActionError(c, err, "出金驳回失败")
		return
	}
	requestLog(c).Infow("admin_payout_rejected", "payout_id", id, "reason", req.Reason)
	response.Success(c, payout)
}

// ProcessAdminPayout 手工触发出金执行 (Admin)
func (h *Handler) ProcessAdminPayout(c *gin.Context) {
	id, ok := payoutIDParam(c)
	if !ok {
		return
	}
	if err := h.PayoutService.Process(c.Request.Context(), id); err != nil {
		respondPayoutActionError(c, err, "出金执行失败")
		return
	}
	payout, err := h.PayoutService.GetByID(id, 0)
	if err != nil {
		respondPayoutActionError(c, err, "出金单查询失败")
		return
	}
	response.Success(c, payout)
}

// RetryAdminPayout 重试失败的出金单 (Admin)
func (h *Handler) RetryAdminPayout(c *gin.Context) {
	id, ok := payoutIDParam(c)
	if !ok {
		return
	}
	payout, err := h.PayoutService.Retry(id)
	if err != nil {
		respondPayoutActionError(c, err, "出金重试失败")
		return
	}
	requestLog(c).Infow("admin_payout_retry", "payout_id", id)
	response.Success(c, payout)
}
