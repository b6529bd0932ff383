package dto

import (
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
)

// WebhookAckResponse is the acknowledgement body for a processed delivery.
type WebhookAckResponse struct {
	Received      bool   `json:"received"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// NewWebhookAck builds the acknowledgement from an apply result.
func NewWebhookAck(result *ports.ApplyResult) WebhookAckResponse {
	ack := WebhookAckResponse{
		Received: true,
		Status:   string(result.Status),
		Reason:   result.Reason,
	}
	if result.Transaction != nil {
		ack.TransactionID = result.Transaction.ID.String()
	}
	return ack
}

// WalletBalanceResponse is the response for balance query.
type WalletBalanceResponse struct {
	UserID   string `json:"user_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// TransactionResponse is one ledger entry in API responses.
type TransactionResponse struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PaymentReference string `json:"payment_reference"`
	EventID          string `json:"event_id"`
	CreatedAt        string `json:"created_at"`
}

// TransactionListResponse wraps a paginated ledger view.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
}

// DepositStatsResponse is the response for deposit statistics.
type DepositStatsResponse struct {
	TotalDeposits        int64 `json:"total_deposits"`
	TotalAmountDeposited int64 `json:"total_amount_deposited"`
}

// ToTransactionResponse converts a domain transaction for the API.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:               txn.ID.String(),
		Type:             string(txn.Type),
		Status:           string(txn.Status),
		Amount:           txn.AmountMinorUnits,
		Currency:         txn.Currency,
		PaymentReference: txn.PaymentReference,
		EventID:          txn.EventID,
		CreatedAt:        txn.CreatedAt.Format(time.RFC3339),
	}
}
