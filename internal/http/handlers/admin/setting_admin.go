package admin

import (
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetAdminSettings 获取平台结算设置 (Admin)
func (h *Handler) GetAdminSettings(c *gin.Context) {
	settings, err := h.SettingService.GetPlatformSettings()
	if err != nil {
		respondError(c, response.CodeInternal, "设置查询失败", err)
		return
	}
	response.Success(c, settings)
}

// UpdateSettingsRequest 平台结算设置请求
type UpdateSettingsRequest struct {
	CommissionPercent    string `json:"commission_percent" binding:"required"`
	CommissionFixed      string `json:"commission_fixed" binding:"required"`
	MinPayoutFiat        string `json:"min_payout_fiat" binding:"required"`
	AutoApproveMerchants *bool  `json:"auto_approve_merchants"`
}

// UpdateAdminSettings 更新平台结算设置 (Admin)
func (h *Handler) UpdateAdminSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}

	percent, err := decimal.NewFromString(req.CommissionPercent)
	if err != nil || percent.Sign() < 0 {
		respondError(c, response.CodeBadRequest, "佣金比例无效", nil)
		return
	}
	fixed, err := decimal.NewFromString(req.CommissionFixed)
	if err != nil || fixed.Sign() < 0 {
		respondError(c, response.CodeBadRequest, "固定佣金无效", nil)
		return
	}
	minPayout, err := decimal.NewFromString(req.MinPayoutFiat)
	if err != nil || minPayout.Sign() < 0 {
		respondError(c, response.CodeBadRequest, "最小出金额无效", nil)
		return
	}

	autoApprove := true
	if req.AutoApproveMerchants != nil {
		autoApprove = *req.AutoApproveMerchants
	} else if current, err := h.SettingService.GetPlatformSettings(); err == nil {
		autoApprove = current.AutoApproveMerchants
	}

	settings, err := h.SettingService.UpdatePlatformSettings(service.PlatformSettings{
		CommissionPercent:    models.NewMoneyFromDecimal(percent),
		CommissionFixed:      models.NewMoneyFromDecimal(fixed),
		MinPayoutFiat:        models.NewMoneyFromDecimal(minPayout),
		AutoApproveMerchants: autoApprove,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "设置更新失败", err)
		return
	}
	requestLog(c).Infow("admin_settings_updated")
	response.Success(c, settings)
}
