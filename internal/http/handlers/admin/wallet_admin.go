package admin

import (
	"errors"

	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetAdminWallets 获取钱包策略列表 (Admin)
func (h *Handler) GetAdminWallets(c *gin.Context) {
	wallets, err := h.WalletService.List()
	if err != nil {
		respondError(c, response.CodeInternal, "钱包查询失败", err)
		return
	}
	response.Success(c, gin.H{
		"wallets": wallets,
		"cryptos": h.Registry.List(),
	})
}

// GetAdminWalletStatus 获取单币种钱包状态 (Admin)
func (h *Handler) GetAdminWalletStatus(c *gin.Context) {
	crypto := c.Param("crypto")
	status, err := h.WalletService.GetStatus(c.Request.Context(), crypto)
	if err != nil {
		if errors.Is(err, service.ErrCryptoNotSupported) {
			respondError(c, response.CodeNotFound, "不支持的币种", nil)
			return
		}
		respondError(c, response.CodeInternal, "钱包状态查询失败", err)
		return
	}
	response.Success(c, status)
}

// UpdateWalletRequest 钱包策略更新请求
type UpdateWalletRequest struct {
	Enabled          *bool   `json:"enabled"`
	MinConfirmations *uint   `json:"min_confirmations"`
	LowerTolerance   *string `json:"lower_tolerance"`
	UpperTolerance   *string `json:"upper_tolerance"`
	PayoutFee        *string `json:"payout_fee"`
}

// UpdateAdminWallet 更新钱包策略 (Admin)
func (h *Handler) UpdateAdminWallet(c *gin.Context) {
	crypto := c.Param("crypto")
	var req UpdateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}

	input := service.UpdateWalletInput{
		Crypto:           crypto,
		Enabled:          req.Enabled,
		MinConfirmations: req.MinConfirmations,
		PayoutFee:        req.PayoutFee,
	}
	if req.LowerTolerance != nil {
		value, err := decimal.NewFromString(*req.LowerTolerance)
		if err != nil || value.Sign() < 0 {
			respondError(c, response.CodeBadRequest, "容忍下限无效", nil)
			return
		}
		input.LowerTolerance = &value
	}
	if req.UpperTolerance != nil {
		value, err := decimal.NewFromString(*req.UpperTolerance)
		if err != nil || value.Sign() < 0 {
			respondError(c, response.CodeBadRequest, "容忍上限无效", nil)
			return
		}
		input.UpperTolerance = &value
	}

	wallet, err := h.WalletService.Update(input)
	if err != nil {
		if errors.Is(err, service.ErrCryptoNotSupported) {
			respondError(c, response.CodeNotFound, "不支持的币种", nil)
			return
		}
		respondError(c, response.CodeInternal, "钱包策略更新失败", err)
		return
	}
	response.Success(c, wallet)
}
