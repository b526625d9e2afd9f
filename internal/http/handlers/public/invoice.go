package public

import (
	"errors"
	"strconv"

	handlershared "github.com/shkeeper-next/internal/http/handlers/shared"
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/models"
	"github.com/shkeeper-next/internal/rates"
	"github.com/shkeeper-next/internal/repository"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createInvoiceRequest struct {
	ExternalID  string `json:"external_id" binding:"required"`
	Crypto      string `json:"crypto" binding:"required"`
	Fiat        string `json:"fiat"`
	AmountFiat  string `json:"amount_fiat" binding:"required"`
	CallbackURL string `json:"callback_url"`
}

// CreateInvoice 创建收款账单，同外部订单号重复请求幂等返回
func (h *Handler) CreateInvoice(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	amount, err := decimal.NewFromString(req.AmountFiat)
	if err != nil || amount.Sign() <= 0 {
		respondError(c, response.CodeBadRequest, "金额无效", nil)
		return
	}

	detail, err := h.InvoiceService.Create(c.Request.Context(), service.CreateInvoiceInput{
		Merchant:    merchant,
		ExternalID:  req.ExternalID,
		Crypto:      req.Crypto,
		Fiat:        req.Fiat,
		AmountFiat:  models.NewMoneyFromDecimal(amount),
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		if errors.Is(err, rates.ErrPairNotConfigured) {
			respondError(c, response.CodeBadRequest, "币对未配置汇率", nil)
			return
		}
		respondWithMappedError(c, err, invoiceErrorRules, response.CodeInternal, "账单创建失败")
		return
	}
	response.Success(c, detail)
}

type quoteRequest struct {
	Crypto     string `json:"crypto" binding:"required"`
	Fiat       string `json:"fiat"`
	AmountFiat string `json:"amount_fiat" binding:"required"`
}

// QuoteInvoice 询价，不落库
func (h *Handler) QuoteInvoice(c *gin.Context) {
	if _, ok := merchantFromContext(c); !ok {
		return
	}
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	amount, err := decimal.NewFromString(req.AmountFiat)
	if err != nil || amount.Sign() <= 0 {
		respondError(c, response.CodeBadRequest, "金额无效", nil)
		return
	}

	quote, amountCrypto, err := h.InvoiceService.Quote(c.Request.Context(), req.Crypto, req.Fiat, models.NewMoneyFromDecimal(amount))
	if err != nil {
		if errors.Is(err, rates.ErrPairNotConfigured) {
			respondError(c, response.CodeBadRequest, "币对未配置汇率", nil)
			return
		}
		respondWithMappedError(c, err, invoiceErrorRules, response.CodeInternal, "询价失败")
		return
	}
	response.Success(c, gin.H{
		"quote":         quote,
		"amount_crypto": amountCrypto,
	})
}

// GetInvoice 按外部订单号查询账单
func (h *Handler) GetInvoice(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	externalID := c.Param("external_id")
	detail, err := h.InvoiceService.GetByExternalID(merchant.ID, externalID)
	if err != nil {
		respondWithMappedError(c, err, invoiceErrorRules, response.CodeInternal, "账单查询失败")
		return
	}
	response.Success(c, detail)
}

// ListInvoices 分页查询账单
func (h *Handler) ListInvoices(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	invoices, total, err := h.InvoiceService.List(repository.InvoiceListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: merchant.ID,
		Crypto:     c.Query("crypto"),
		Status:     c.Query("status"),
		ExternalID: c.Query("external_id"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "账单查询失败", err)
		return
	}
	response.SuccessWithPage(c, invoices, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// ListInvoiceTransactions 查询账单下的链上交易
func (h *Handler) ListInvoiceTransactions(c *gin.Context) {
	merchant, ok := merchantFromContext(c)
	if !ok {
		return
	}
	externalID := c.Param("external_id")
	detail, err := h.InvoiceService.GetByExternalID(merchant.ID, externalID)
	if err != nil {
		respondWithMappedError(c, err, invoiceErrorRules, response.CodeInternal, "账单查询失败")
		return
	}
	transactions, err := h.InvoiceService.ListTransactions(detail.Invoice.ID, merchant.ID)
	if err != nil {
		respondWithMappedError(c, err, invoiceErrorRules, response.CodeInternal, "交易查询失败")
		return
	}
	response.Success(c, gin.H{"transactions": transactions})
}
