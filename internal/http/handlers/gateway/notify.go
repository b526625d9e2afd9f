package gateway

import (
	handlershared "github.com/shkeeper-next/internal/http/handlers/shared"
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WalletNotify 链上交易通知入口
// 未接入的币种与无关地址按成功返回，避免守护进程反复重推。
func (h *Handler) WalletNotify(c *gin.Context) {
	crypto := c.Param("crypto")
	txid := c.Param("txid")
	if crypto == "" || txid == "" {
		handlershared.RespondError(c, response.CodeBadRequest, "参数错误", nil)
		return
	}

	outcome, err := h.ReconcilerService.HandleWalletNotify(c.Request.Context(), crypto, txid)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "交易处理失败", err)
		return
	}
	if outcome.Message != "" {
		response.SuccessWithMsg(c, outcome.Message, outcome)
		return
	}
	response.Success(c, outcome)
}

type payoutNotifyEntry struct {
	Dest   string          `json:"dest" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	TxIDs  []string        `json:"txids"`
	Status string          `json:"status"`
}

// PayoutNotify 出金完成通知入口，请求体为回执条目列表
func (h *Handler) PayoutNotify(c *gin.Context) {
	crypto := c.Param("crypto")
	if crypto == "" {
		handlershared.RespondError(c, response.CodeBadRequest, "参数错误", nil)
		return
	}
	var req []payoutNotifyEntry
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}

	entries := make([]service.PayoutNotifyEntry, 0, len(req))
	for _, entry := range req {
		entries = append(entries, service.PayoutNotifyEntry{
			Dest:   entry.Dest,
			Amount: entry.Amount,
			TxIDs:  entry.TxIDs,
			Status: entry.Status,
		})
	}

	outcome, err := h.PayoutService.CompleteFromBackend(crypto, entries)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "出金完成处理失败", err)
		return
	}
	if outcome.Message != "" {
		response.SuccessWithMsg(c, outcome.Message, outcome)
		return
	}
	response.Success(c, outcome)
}
