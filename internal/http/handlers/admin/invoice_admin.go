package admin

import (
	"strconv"

	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetAdminInvoices 获取账单列表 (Admin)
func (h *Handler) GetAdminInvoices(c *gin.Context) {
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

	invoices, total, err := h.InvoiceService.List(repository.InvoiceListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: merchantID,
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

// GetAdminCommissions 获取佣金结算记录 (Admin)
func (h *Handler) GetAdminCommissions(c *gin.Context) {
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

	records, total, err := h.CommissionRepo.List(repository.CommissionListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: merchantID,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "佣金记录查询失败", err)
		return
	}

	response.SuccessWithPage(c, records, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
