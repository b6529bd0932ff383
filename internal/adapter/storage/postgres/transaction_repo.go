package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
//
// Schema note: the idempotency anchor is a partial unique index on
// payment_reference restricted to completed deposits:
//
//	CREATE UNIQUE INDEX ux_transactions_completed_deposit_reference
//	ON transactions (payment_reference)
//	WHERE type = 'DEPOSIT' AND status = 'COMPLETED';
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction. A concurrent
// delivery of the same payment reference loses here, regardless of whether
// the application-level guard saw it in time.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, type, status, amount_minor_units,
		currency, payment_reference, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Type, t.Status, t.AmountMinorUnits,
		t.Currency, t.PaymentReference, t.EventID, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByReference fetches the completed deposit for a payment reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, paymentReference string) (*domain.Transaction, error) {
	query := `SELECT id, wallet_id, type, status, amount_minor_units,
		currency, payment_reference, event_id, created_at
		FROM transactions
		WHERE payment_reference = $1 AND type = 'DEPOSIT' AND status = 'COMPLETED'`

	return r.scanTransaction(r.pool.QueryRow(ctx, query, paymentReference))
}

// List fetches a wallet's ledger entries, newest first, with pagination.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	countQuery := `SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, params.WalletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := `SELECT id, wallet_id, type, status, amount_minor_units,
		currency, payment_reference, event_id, created_at
		FROM transactions WHERE wallet_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, dataQuery, params.WalletID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.WalletID, &t.Type, &t.Status, &t.AmountMinorUnits,
			&t.Currency, &t.PaymentReference, &t.EventID, &t.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// GetStats retrieves aggregated deposit statistics for one wallet.
func (r *TransactionRepo) GetStats(ctx context.Context, walletID uuid.UUID) (*ports.DepositStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE type = 'DEPOSIT' AND status = 'COMPLETED') AS deposits,
		COALESCE(SUM(amount_minor_units) FILTER (WHERE type = 'DEPOSIT' AND status = 'COMPLETED'), 0) AS deposited
		FROM transactions WHERE wallet_id = $1`

	stats := &ports.DepositStats{}
	err := r.pool.QueryRow(ctx, query, walletID).Scan(
		&stats.TotalDeposits, &stats.TotalAmountDeposited,
	)
	if err != nil {
		return nil, fmt.Errorf("get deposit stats: %w", err)
	}
	return stats, nil
}

// scanTransaction is a helper to scan a single row into a Transaction.
func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Type, &t.Status, &t.AmountMinorUnits,
		&t.Currency, &t.PaymentReference, &t.EventID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
