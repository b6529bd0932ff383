package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateReference is returned by TransactionRepository.Create when a
// completed deposit with the same payment reference already exists. This is
// the storage-level idempotency anchor.
var ErrDuplicateReference = errors.New("payment reference already recorded")

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// TransactionStatus represents the final state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an immutable, append-only ledger entry tied to a wallet and
// an external payment reference.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	WalletID         uuid.UUID         `json:"wallet_id"`
	Type             TransactionType   `json:"type"`
	Status           TransactionStatus `json:"status"`
	AmountMinorUnits int64             `json:"amount_minor_units"`
	Currency         string            `json:"currency"`
	PaymentReference string            `json:"payment_reference"`
	EventID          string            `json:"event_id"`
	CreatedAt        time.Time         `json:"created_at"`
}

// IsCompletedDeposit returns true if this entry counts toward the
// payment-reference uniqueness invariant.
func (t *Transaction) IsCompletedDeposit() bool {
	return t.Type == TransactionTypeDeposit && t.Status == TransactionStatusCompleted
}

// NewDeposit builds the ledger entry for a successfully applied payment event.
func NewDeposit(walletID uuid.UUID, event *PaymentEvent) *Transaction {
	return &Transaction{
		ID:               uuid.New(),
		WalletID:         walletID,
		Type:             TransactionTypeDeposit,
		Status:           TransactionStatusCompleted,
		AmountMinorUnits: event.AmountMinorUnits,
		Currency:         event.Currency,
		PaymentReference: event.PaymentReference,
		EventID:          event.EventID,
		CreatedAt:        time.Now().UTC(),
	}
}
