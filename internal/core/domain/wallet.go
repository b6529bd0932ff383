package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrWalletExists is returned by WalletRepository.Create when a wallet for the
// user already exists. Callers racing on lazy creation should re-read.
var ErrWalletExists = errors.New("wallet already exists for user")

// ErrBalanceConflict is returned by WalletRepository.UpdateBalance when the
// expected previous balance no longer holds. Callers must re-read and retry.
var ErrBalanceConflict = errors.New("wallet balance changed since read")

// Wallet is a per-user stored balance. At most one wallet exists per UserID
// (unique constraint at the storage layer). Balance is in integer minor units
// and never goes negative: the only mutation path in this service is a deposit.
type Wallet struct {
	ID                uuid.UUID `json:"id"`
	UserID            string    `json:"user_id"`
	BalanceMinorUnits int64     `json:"balance_minor_units"`
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewWallet creates an empty wallet for a user, as done lazily on the first
// successful wallet-purpose payment.
func NewWallet(userID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:                uuid.New(),
		UserID:            userID,
		BalanceMinorUnits: 0,
		Currency:          currency,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
