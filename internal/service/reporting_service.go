package service

import (
	"context"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(txRepo ports.TransactionRepository, walletRepo ports.WalletRepository) ports.ReportingService {
	return &reportingService{
		txRepo:     txRepo,
		walletRepo: walletRepo,
	}
}

// GetWalletBalance returns the current balance for the user's wallet.
func (s *reportingService) GetWalletBalance(ctx context.Context, userID string) (int64, string, error) {
	wallet, err := s.lookupWallet(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return wallet.BalanceMinorUnits, wallet.Currency, nil
}

// ListTransactions returns a paginated view of the user's ledger.
func (s *reportingService) ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]domain.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	wallet, err := s.lookupWallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	txns, total, err := s.txRepo.List(ctx, ports.TransactionListParams{
		WalletID: wallet.ID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}

// GetDepositStats returns aggregated deposit figures for the user's wallet.
func (s *reportingService) GetDepositStats(ctx context.Context, userID string) (*ports.DepositStats, error) {
	wallet, err := s.lookupWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.txRepo.GetStats(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

func (s *reportingService) lookupWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, apperror.Validation("user_id is required")
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}
