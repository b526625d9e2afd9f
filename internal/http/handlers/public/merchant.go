package public

import (
	"errors"

	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	CallbackURL string `json:"callback_url"`
}

// Register 商户注册
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}

	merchant, err := h.MerchantService.Register(service.MerchantRegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		if errors.Is(err, service.ErrMerchantExists) {
			respondError(c, response.CodeBadRequest, "商户名或邮箱已被注册", nil)
			return
		}
		respondError(c, response.CodeInternal, "注册失败", err)
		return
	}

	response.Success(c, gin.H{
		"merchant":       merchant,
		"api_key":        merchant.APIKey,
		"webhook_secret": merchant.WebhookSecret,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 商户登录
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}

	merchant, token, expiresAt, err := h.MerchantService.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeUnauthorized, "邮箱或密码错误", nil)
		case errors.Is(err, service.ErrMerchantPending):
			respondError(c, response.CodeForbidden, "商户待审核", nil)
		case errors.Is(err, service.ErrMerchantSuspended):
			respondError(c, response.CodeForbidden, "商户已被停用", nil)
		default:
			respondError(c, response.CodeInternal, "登录失败", err)
		}
		return
	}

	response.Success(c, gin.H{
		"merchant":   merchant,
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Me 当前商户信息
func (h *Handler) Me(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	response.Success(c, gin.H{
		"merchant": merchant,
		"api_key":  merchant.APIKey,
	})
}

// RotateAPIKey 重置 API 密钥
func (h *Handler) RotateAPIKey(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	updated, err := h.MerchantService.RotateAPIKey(merchant.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "密钥重置失败", err)
		return
	}
	response.Success(c, gin.H{"api_key": updated.APIKey})
}

// RotateWebhookSecret 重置回调签名密钥
func (h *Handler) RotateWebhookSecret(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	updated, err := h.MerchantService.RotateWebhookSecret(merchant.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "密钥重置失败", err)
		return
	}
	response.Success(c, gin.H{"webhook_secret": updated.WebhookSecret})
}

type payoutAddressRequest struct {
	Crypto  string `json:"crypto" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// SetPayoutAddress 配置币种出金地址
func (h *Handler) SetPayoutAddress(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	var req payoutAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	updated, err := h.MerchantService.SetPayoutAddress(merchant.ID, req.Crypto, req.Address)
	if err != nil {
		respondError(c, response.CodeInternal, "出金地址保存失败", err)
		return
	}
	response.Success(c, gin.H{"payout_addresses": updated.PayoutAddresses})
}

// Balances 商户资金台账
func (h *Handler) Balances(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	balances, err := h.BalanceRepo.ListByMerchant(merchant.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "台账查询失败", err)
		return
	}
	response.Success(c, gin.H{"balances": balances})
}
