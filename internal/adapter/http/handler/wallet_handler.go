package handler

import (
	"strconv"

	"wallet-ledger-service/internal/adapter/http/dto"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves the JWT-authenticated read API.
type WalletHandler struct {
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{reportingSvc: reportingSvc}
}

// GetBalance handles GET /api/v1/wallets/:user_id.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := c.Param("user_id")

	balance, currency, err := h.reportingSvc.GetWalletBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		UserID:   userID,
		Balance:  balance,
		Currency: currency,
	})
}

// ListTransactions handles GET /api/v1/wallets/:user_id/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID := c.Param("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	txns, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.ToTransactionResponse(&txns[i]))
	}

	response.OK(c, dto.TransactionListResponse{
		Transactions: items,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	})
}

// GetStats handles GET /api/v1/wallets/:user_id/stats.
func (h *WalletHandler) GetStats(c *gin.Context) {
	userID := c.Param("user_id")

	stats, err := h.reportingSvc.GetDepositStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DepositStatsResponse{
		TotalDeposits:        stats.TotalDeposits,
		TotalAmountDeposited: stats.TotalAmountDeposited,
	})
}
