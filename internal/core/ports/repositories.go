package ports

import (
	"context"
	"time"

	"wallet-ledger-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx participate in the workflow's atomic
// append-and-update block.
type WalletRepository interface {
	// Create inserts a wallet. Returns domain.ErrWalletExists if a wallet
	// for the same user was created concurrently.
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	// UpdateBalance writes newBalance only if the stored balance still equals
	// expectedPrevious. Returns domain.ErrBalanceConflict when it does not,
	// in which case the caller must re-read and recompute.
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance, expectedPrevious int64) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	// Create appends a ledger entry. Returns domain.ErrDuplicateReference if
	// a completed deposit with the same payment reference already exists.
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	// GetByReference fetches the completed deposit for a payment reference,
	// or nil if none exists. This is the authoritative idempotency check.
	GetByReference(ctx context.Context, paymentReference string) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context, walletID uuid.UUID) (*DepositStats, error)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	WalletID uuid.UUID
	Page     int
	PageSize int
}

// DepositStats holds aggregated deposit figures for one wallet.
type DepositStats struct {
	TotalDeposits        int64
	TotalAmountDeposited int64
}

// EventLogRepository records received processor deliveries for audit.
type EventLogRepository interface {
	Create(ctx context.Context, log *domain.EventLog) error
}

// ProcessedReferenceCache is the fast-path idempotency check. Best-effort
// only: the ledger's uniqueness constraint remains the source of truth.
type ProcessedReferenceCache interface {
	// Seen reports whether the payment reference was recently applied.
	Seen(ctx context.Context, paymentReference string) (bool, error)
	// MarkProcessed records a reference as applied, with TTL.
	MarkProcessed(ctx context.Context, paymentReference string, ttl time.Duration) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
