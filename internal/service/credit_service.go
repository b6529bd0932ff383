package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"

	"github.com/rs/zerolog"
)

// maxBalanceAttempts bounds the optimistic-concurrency retry loop. Losing the
// balance race this many times in a row means the wallet is under heavy
// contention; the delivery is failed as retryable and the processor redelivers.
const maxBalanceAttempts = 3

// CreditServiceImpl implements ports.CreditService.
//
// Idempotency is layered: a Redis fast path, the authoritative ledger query,
// and finally the storage-level unique constraint on payment_reference, which
// is what actually wins when two deliveries of the same reference race past
// the checks. The ledger append and the conditional balance update share one
// database transaction, so a lost balance race rolls the append back too and
// the retry starts clean.
type CreditServiceImpl struct {
	txRepo       ports.TransactionRepository
	walletRepo   ports.WalletRepository
	refCache     ports.ProcessedReferenceCache
	transactor   ports.DBTransactor
	processedTTL time.Duration
	log          zerolog.Logger
}

// NewCreditService creates a new CreditServiceImpl.
func NewCreditService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	refCache ports.ProcessedReferenceCache,
	transactor ports.DBTransactor,
	processedTTL time.Duration,
	log zerolog.Logger,
) *CreditServiceImpl {
	return &CreditServiceImpl{
		txRepo:       txRepo,
		walletRepo:   walletRepo,
		refCache:     refCache,
		transactor:   transactor,
		processedTTL: processedTTL,
		log:          log,
	}
}

// Credit applies one successful wallet-purpose payment event to the user's
// wallet, exactly once.
func (s *CreditServiceImpl) Credit(ctx context.Context, event *domain.PaymentEvent) (*ports.ApplyResult, error) {
	if event.SubjectUserID == "" {
		s.log.Warn().Str("event_id", event.EventID).Msg("wallet event without subject user, rejecting")
		return &ports.ApplyResult{Status: ports.ApplyStatusRejected, Reason: ports.RejectReasonMissingUser}, nil
	}
	if event.AmountMinorUnits <= 0 {
		s.log.Warn().
			Str("event_id", event.EventID).
			Int64("amount", event.AmountMinorUnits).
			Msg("wallet event with non-positive amount, rejecting")
		return &ports.ApplyResult{Status: ports.ApplyStatusRejected, Reason: ports.RejectReasonNonPositiveAmount}, nil
	}

	// Layer 1: Redis fast path.
	seen, err := s.refCache.Seen(ctx, event.PaymentReference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", event.PaymentReference).Msg("reference cache check failed, falling through to ledger")
	}
	if seen {
		return &ports.ApplyResult{Status: ports.ApplyStatusAlreadyApplied}, nil
	}

	// Layer 2: authoritative ledger check.
	existing, err := s.txRepo.GetByReference(ctx, event.PaymentReference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("idempotency check: %w", err))
	}
	if existing != nil {
		return &ports.ApplyResult{Status: ports.ApplyStatusAlreadyApplied, Transaction: existing}, nil
	}

	// Past the guard the event must be applied even if the inbound request is
	// cancelled: abandoning work between ledger-append and balance-update
	// would break exactly-once application.
	ctx = context.WithoutCancel(ctx)

	for attempt := 1; attempt <= maxBalanceAttempts; attempt++ {
		result, retry, err := s.applyOnce(ctx, event)
		if err != nil {
			return nil, err
		}
		if retry {
			s.log.Info().
				Str("reference", event.PaymentReference).
				Int("attempt", attempt).
				Msg("balance conflict, re-reading wallet")
			continue
		}
		return result, nil
	}

	return nil, apperror.ErrBalanceContention(
		fmt.Errorf("reference %s: %d attempts exhausted", event.PaymentReference, maxBalanceAttempts))
}

// applyOnce runs one optimistic attempt: read (or lazily create) the wallet,
// then atomically append the deposit and write the recomputed balance.
// retry=true signals a lost balance race.
func (s *CreditServiceImpl) applyOnce(ctx context.Context, event *domain.PaymentEvent) (*ports.ApplyResult, bool, error) {
	wallet, err := s.ensureWallet(ctx, event)
	if err != nil {
		return nil, false, err
	}

	txn := domain.NewDeposit(wallet.ID, event)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			// A concurrent delivery of the same reference committed first.
			return &ports.ApplyResult{Status: ports.ApplyStatusAlreadyApplied, Transaction: s.lookupWinner(ctx, event)}, false, nil
		}
		return nil, false, apperror.ErrDatabaseError(fmt.Errorf("append transaction: %w", err))
	}

	newBalance := wallet.BalanceMinorUnits + event.AmountMinorUnits
	err = s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance, wallet.BalanceMinorUnits)
	if errors.Is(err, domain.ErrBalanceConflict) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: mark the reference in the fast path (best-effort).
	if err := s.refCache.MarkProcessed(ctx, event.PaymentReference, s.processedTTL); err != nil {
		s.log.Warn().Err(err).Str("reference", event.PaymentReference).Msg("failed to cache processed reference")
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", event.SubjectUserID).
		Str("reference", event.PaymentReference).
		Int64("amount", event.AmountMinorUnits).
		Int64("balance", newBalance).
		Msg("payment event applied to wallet")

	return &ports.ApplyResult{Status: ports.ApplyStatusApplied, Transaction: txn}, false, nil
}

// ensureWallet looks up the user's wallet, creating it lazily on the first
// successful wallet-purpose payment. A racing creator is resolved by
// re-reading after domain.ErrWalletExists.
func (s *CreditServiceImpl) ensureWallet(ctx context.Context, event *domain.PaymentEvent) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, event.SubjectUserID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = domain.NewWallet(event.SubjectUserID, event.Currency)
	err = s.walletRepo.Create(ctx, wallet)
	if err == nil {
		s.log.Info().
			Str("wallet_id", wallet.ID.String()).
			Str("user_id", event.SubjectUserID).
			Msg("wallet created")
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrWalletExists) {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}

	wallet, err = s.walletRepo.GetByUserID(ctx, event.SubjectUserID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("re-read wallet after create race: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("wallet for user %s vanished after create race", event.SubjectUserID))
	}
	return wallet, nil
}

// lookupWinner fetches the transaction written by the delivery that won the
// duplicate-reference race. Best-effort: the result is informational.
func (s *CreditServiceImpl) lookupWinner(ctx context.Context, event *domain.PaymentEvent) *domain.Transaction {
	winner, err := s.txRepo.GetByReference(ctx, event.PaymentReference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", event.PaymentReference).Msg("failed to read winning transaction")
		return nil
	}
	return winner
}
