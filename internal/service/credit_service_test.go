package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stubTx satisfies pgx.Tx for the methods the workflow touches; everything
// else panics via the embedded nil interface.
type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type creditTestDeps struct {
	txRepo     *mocks.MockTransactionRepository
	walletRepo *mocks.MockWalletRepository
	refCache   *mocks.MockProcessedReferenceCache
	transactor *mocks.MockDBTransactor
}

func setupCreditService(t *testing.T) (*CreditServiceImpl, creditTestDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := creditTestDeps{
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		refCache:   mocks.NewMockProcessedReferenceCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	svc := NewCreditService(deps.txRepo, deps.walletRepo, deps.refCache, deps.transactor, 24*time.Hour, zerolog.Nop())
	return svc, deps
}

func walletEvent(reference, userID string, amount int64) *domain.PaymentEvent {
	return &domain.PaymentEvent{
		EventID:          "evt_" + reference,
		Type:             domain.EventTypePaymentSucceeded,
		PaymentReference: reference,
		AmountMinorUnits: amount,
		Currency:         "usd",
		Purpose:          domain.PurposeWallet,
		SubjectUserID:    userID,
		Outcome:          domain.OutcomeSucceeded,
	}
}

func TestCredit_RejectsMissingUser(t *testing.T) {
	svc, _ := setupCreditService(t)

	result, err := svc.Credit(context.Background(), walletEvent("pr_1", "", 500))
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusRejected, result.Status)
	assert.Equal(t, ports.RejectReasonMissingUser, result.Reason)
}

func TestCredit_RejectsNonPositiveAmount(t *testing.T) {
	svc, _ := setupCreditService(t)

	for _, amount := range []int64{0, -500} {
		result, err := svc.Credit(context.Background(), walletEvent("pr_1", "u1", amount))
		require.NoError(t, err)
		assert.Equal(t, ports.ApplyStatusRejected, result.Status)
		assert.Equal(t, ports.RejectReasonNonPositiveAmount, result.Reason)
	}
}

func TestCredit_AlreadyApplied_CacheHit(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(true, nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusAlreadyApplied, result.Status)
}

func TestCredit_AlreadyApplied_LedgerHit(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	existing := domain.NewDeposit(uuid.New(), event)

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(existing, nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusAlreadyApplied, result.Status)
	assert.Equal(t, existing, result.Transaction)
}

func TestCredit_Applied_ExistingWallet(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	wallet := domain.NewWallet("u1", "usd")
	wallet.BalanceMinorUnits = 1000
	tx := &stubTx{}

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(nil, nil)
	deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(wallet, nil)
	deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	deps.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(1500), int64(1000)).Return(nil)
	deps.refCache.EXPECT().MarkProcessed(gomock.Any(), "pr_1", 24*time.Hour).Return(nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusApplied, result.Status)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, wallet.ID, result.Transaction.WalletID)
	assert.Equal(t, int64(500), result.Transaction.AmountMinorUnits)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestCredit_Applied_CreatesWalletLazily(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u_new", 500)
	tx := &stubTx{}

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(nil, nil)
	deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u_new").Return(nil, nil)
	deps.walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.Wallet) error {
			assert.Equal(t, "u_new", w.UserID)
			assert.Zero(t, w.BalanceMinorUnits)
			return nil
		})
	deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	deps.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, gomock.Any(), int64(500), int64(0)).Return(nil)
	deps.refCache.EXPECT().MarkProcessed(gomock.Any(), "pr_1", gomock.Any()).Return(nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusApplied, result.Status)
}

func TestCredit_WalletCreateRace_RereadsWinner(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	winner := domain.NewWallet("u1", "usd")
	tx := &stubTx{}

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(nil, nil)
	gomock.InOrder(
		deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(nil, nil),
		deps.walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domain.ErrWalletExists),
		deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(winner, nil),
	)
	deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	deps.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, winner.ID, int64(500), int64(0)).Return(nil)
	deps.refCache.EXPECT().MarkProcessed(gomock.Any(), "pr_1", gomock.Any()).Return(nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusApplied, result.Status)
}

func TestCredit_DuplicateReferenceRace(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	wallet := domain.NewWallet("u1", "usd")
	winner := domain.NewDeposit(wallet.ID, event)
	tx := &stubTx{}

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	gomock.InOrder(
		deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(nil, nil),
		deps.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(domain.ErrDuplicateReference),
		deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(winner, nil),
	)
	deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(wallet, nil)
	deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusAlreadyApplied, result.Status)
	assert.Equal(t, winner, result.Transaction)
	assert.True(t, tx.rolledBack)
}

func TestCredit_BalanceConflict_RetriesWithFreshRead(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)

	stale := domain.NewWallet("u1", "usd")
	stale.BalanceMinorUnits = 1000
	fresh := &domain.Wallet{ID: stale.ID, UserID: "u1", BalanceMinorUnits: 1200, Currency: "usd"}
	tx1, tx2 := &stubTx{}, &stubTx{}

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(nil, nil)
	gomock.InOrder(
		deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(stale, nil),
		deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx1, stale.ID, int64(1500), int64(1000)).Return(domain.ErrBalanceConflict),
		deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(fresh, nil),
		deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx2, fresh.ID, int64(1700), int64(1200)).Return(nil),
	)
	gomock.InOrder(
		deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx1, nil),
		deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx2, nil),
	)
	deps.txRepo.EXPECT().Create(gomock.Any(), tx1, gomock.Any()).Return(nil)
	deps.txRepo.EXPECT().Create(gomock.Any(), tx2, gomock.Any()).Return(nil)
	deps.refCache.EXPECT().MarkProcessed(gomock.Any(), "pr_1", gomock.Any()).Return(nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusApplied, result.Status)
	assert.True(t, tx1.rolledBack, "losing attempt must roll back its ledger append")
	assert.True(t, tx2.committed)
}

func TestCredit_BalanceContention_Exhausted(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	wallet := domain.NewWallet("u1", "usd")

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(nil, nil)
	deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(wallet, nil).Times(maxBalanceAttempts)
	deps.transactor.EXPECT().Begin(gomock.Any()).Return(&stubTx{}, nil).Times(maxBalanceAttempts)
	deps.txRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(maxBalanceAttempts)
	deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), gomock.Any(), wallet.ID, gomock.Any(), gomock.Any()).
		Return(domain.ErrBalanceConflict).Times(maxBalanceAttempts)

	_, err := svc.Credit(context.Background(), event)
	assertAppError(t, err, "SYS_002")
}

func TestCredit_CacheDownFallsThroughToLedger(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	existing := domain.NewDeposit(uuid.New(), event)

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, errors.New("redis down"))
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(existing, nil)

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusAlreadyApplied, result.Status)
}

func TestCredit_MarkProcessedFailureDoesNotFailApply(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	wallet := domain.NewWallet("u1", "usd")
	tx := &stubTx{}

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").Return(nil, nil)
	deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(wallet, nil)
	deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	deps.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(500), int64(0)).Return(nil)
	deps.refCache.EXPECT().MarkProcessed(gomock.Any(), "pr_1", gomock.Any()).Return(errors.New("redis down"))

	result, err := svc.Credit(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusApplied, result.Status)
}

func TestCredit_SurvivesCallerCancellation(t *testing.T) {
	svc, deps := setupCreditService(t)
	event := walletEvent("pr_1", "u1", 500)
	wallet := domain.NewWallet("u1", "usd")
	tx := &stubTx{}

	ctx, cancel := context.WithCancel(context.Background())

	deps.refCache.EXPECT().Seen(gomock.Any(), "pr_1").Return(false, nil)
	deps.txRepo.EXPECT().GetByReference(gomock.Any(), "pr_1").DoAndReturn(
		func(context.Context, string) (*domain.Transaction, error) {
			// Caller disconnects right after the idempotency guard.
			cancel()
			return nil, nil
		})
	deps.walletRepo.EXPECT().GetByUserID(gomock.Any(), "u1").DoAndReturn(
		func(c context.Context, _ string) (*domain.Wallet, error) {
			assert.NoError(t, c.Err(), "work past the guard must run on an uncancellable context")
			return wallet, nil
		})
	deps.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	deps.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	deps.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(500), int64(0)).Return(nil)
	deps.refCache.EXPECT().MarkProcessed(gomock.Any(), "pr_1", gomock.Any()).Return(nil)

	result, err := svc.Credit(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, ports.ApplyStatusApplied, result.Status)
	assert.True(t, tx.committed)
}
