package admin

import (
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetAdminRates 获取汇率配置列表 (Admin)
func (h *Handler) GetAdminRates(c *gin.Context) {
	rates, err := h.RateService.List()
	if err != nil {
		respondError(c, response.CodeInternal, "汇率查询失败", err)
		return
	}
	response.Success(c, gin.H{"rates": rates})
}

// UpsertRateRequest 汇率配置请求
type UpsertRateRequest struct {
	Crypto     string `json:"crypto" binding:"required"`
	Fiat       string `json:"fiat" binding:"required"`
	Source     string `json:"source"`
	Rate       string `json:"rate"`
	FeePolicy  string `json:"fee_policy"`
	FeePercent string `json:"fee_percent"`
	FixedFee   string `json:"fixed_fee"`
}

// UpsertAdminRate 写入币对汇率配置 (Admin)
func (h *Handler) UpsertAdminRate(c *gin.Context) {
	var req UpsertRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}

	input := service.UpsertRateInput{
		Crypto:    req.Crypto,
		Fiat:      req.Fiat,
		Source:    req.Source,
		FeePolicy: req.FeePolicy,
	}
	var parseErr error
	if input.Rate, parseErr = parseOptionalDecimal(req.Rate); parseErr != nil {
		respondError(c, response.CodeBadRequest, "汇率无效", nil)
		return
	}
	if input.FeePercent, parseErr = parseOptionalDecimal(req.FeePercent); parseErr != nil {
		respondError(c, response.CodeBadRequest, "手续费比例无效", nil)
		return
	}
	if input.FixedFee, parseErr = parseOptionalDecimal(req.FixedFee); parseErr != nil {
		respondError(c, response.CodeBadRequest, "固定手续费无效", nil)
		return
	}

	rate, err := h.RateService.Upsert(input)
	if err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	requestLog(c).Infow("admin_rate_saved", "crypto", rate.Crypto, "fiat", rate.FiatCurrency)
	response.Success(c, rate)
}

func parseOptionalDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
