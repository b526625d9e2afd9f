package admin

import (
	"errors"
	"strconv"

	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/repository"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetAdminMerchants 获取商户列表 (Admin)
func (h *Handler) GetAdminMerchants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	merchants, total, err := h.MerchantService.List(repository.MerchantListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
		Search:   c.Query("search"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "商户查询失败", err)
		return
	}

	response.SuccessWithPage(c, merchants, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetAdminMerchant 获取商户详情与资金台账 (Admin)
func (h *Handler) GetAdminMerchant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "参数错误", nil)
		return
	}

	merchant, err := h.MerchantService.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "商户查询失败", err)
		return
	}
	if merchant == nil {
		respondError(c, response.CodeNotFound, "商户不存在", nil)
		return
	}
	balances, err := h.BalanceRepo.ListByMerchant(merchant.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "台账查询失败", err)
		return
	}

	response.Success(c, gin.H{
		"merchant": merchant,
		"balances": balances,
	})
}

// UpdateMerchantRequest 商户调整请求
type UpdateMerchantRequest struct {
	Status            *string `json:"status"`
	CommissionPercent *string `json:"commission_percent"`
	CommissionFixed   *string `json:"commission_fixed"`
	MinPayoutFiat     *string `json:"min_payout_fiat"`
	CallbackURL       *string `json:"callback_url"`
}

// UpdateAdminMerchant 调整商户状态与结算参数 (Admin)
func (h *Handler) UpdateAdminMerchant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "参数错误", nil)
		return
	}
	var req UpdateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}

	input := service.MerchantAdminUpdateInput{
		Status:      req.Status,
		CallbackURL: req.CallbackURL,
	}
	if req.CommissionPercent != nil {
		value, parseErr := parseMoney(*req.CommissionPercent)
		if parseErr != nil {
			respondError(c, response.CodeBadRequest, "佣金比例无效", nil)
			return
		}
		input.CommissionPercent = value
	}
	if req.CommissionFixed != nil {
		value, parseErr := parseMoney(*req.CommissionFixed)
		if parseErr != nil {
			respondError(c, response.CodeBadRequest, "固定佣金无效", nil)
			return
		}
		input.CommissionFixed = value
	}
	if req.MinPayoutFiat != nil {
		value, parseErr := parseMoney(*req.MinPayoutFiat)
		if parseErr != nil {
			respondError(c, response.CodeBadRequest, "最小出金额无效", nil)
			return
		}
		input.MinPayoutFiat = value
	}

	merchant, err := h.MerchantService.AdminUpdate(uint(id), input)
	if err != nil {
		if errors.Is(err, service.ErrMerchantNotFound) {
			respondError(c, response.CodeNotFound, "商户不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "商户更新失败", err)
		return
	}

	requestLog(c).Infow("admin_merchant_updated", "merchant_id", merchant.ID)
	response.Success(c, merchant)
}

func parseMoney(raw string) (*models.Money, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil || value.Sign() < 0 {
		return nil, errors.New("invalid amount")
	}
	money := models.NewMoneyFromDecimal(value)
	return &money, nil
}
