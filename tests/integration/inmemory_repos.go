package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memoryStore is a transactional in-memory stand-in for PostgreSQL. It
// reproduces the two constraints the services depend on: the unique index on
// completed-deposit payment references and the conditional balance update.
// Transactions are serialized by txMu, so a commit is atomic and a rollback
// undoes every write the transaction made.
type memoryStore struct {
	mu   sync.Mutex // guards the maps below
	txMu sync.Mutex // serializes open transactions

	wallets       map[uuid.UUID]domain.Wallet
	walletsByUser map[string]uuid.UUID
	transactions  map[uuid.UUID]domain.Transaction
	byReference   map[string]uuid.UUID // completed deposits only
	eventLogs     []domain.EventLog
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		wallets:       make(map[uuid.UUID]domain.Wallet),
		walletsByUser: make(map[string]uuid.UUID),
		transactions:  make(map[uuid.UUID]domain.Transaction),
		byReference:   make(map[string]uuid.UUID),
	}
}

// memoryTx implements the pgx.Tx methods the services call. Unused methods
// panic via the embedded nil interface.
type memoryTx struct {
	pgx.Tx
	store *memoryStore
	undo  []func()
	done  bool
}

func (t *memoryTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memoryTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

func asMemoryTx(tx pgx.Tx) (*memoryTx, error) {
	mt, ok := tx.(*memoryTx)
	if !ok {
		return nil, fmt.Errorf("expected *memoryTx, got %T", tx)
	}
	return mt, nil
}

// --- Transactor ---

type memoryTransactor struct {
	store *memoryStore
}

func newMemoryTransactor(store *memoryStore) *memoryTransactor {
	return &memoryTransactor{store: store}
}

func (t *memoryTransactor) Begin(context.Context) (pgx.Tx, error) {
	t.store.txMu.Lock()
	return &memoryTx{store: t.store}, nil
}

// --- Wallet repo ---

type memoryWalletRepo struct {
	store *memoryStore
}

func newMemoryWalletRepo(store *memoryStore) *memoryWalletRepo {
	return &memoryWalletRepo{store: store}
}

func (r *memoryWalletRepo) Create(_ context.Context, w *domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.walletsByUser[w.UserID]; ok {
		return domain.ErrWalletExists
	}
	r.store.wallets[w.ID] = *w
	r.store.walletsByUser[w.UserID] = w.ID
	return nil
}

func (r *memoryWalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *memoryWalletRepo) GetByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.walletsByUser[userID]
	if !ok {
		return nil, nil
	}
	w := r.store.wallets[id]
	return &w, nil
}

func (r *memoryWalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance, expectedPrevious int64) error {
	mt, err := asMemoryTx(tx)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	w, ok := r.store.wallets[walletID]
	if !ok || w.BalanceMinorUnits != expectedPrevious {
		return domain.ErrBalanceConflict
	}
	previous := w.BalanceMinorUnits
	w.BalanceMinorUnits = newBalance
	r.store.wallets[walletID] = w

	mt.undo = append(mt.undo, func() {
		restored := r.store.wallets[walletID]
		restored.BalanceMinorUnits = previous
		r.store.wallets[walletID] = restored
	})
	return nil
}

// --- Transaction repo ---

type memoryTransactionRepo struct {
	store *memoryStore
}

func newMemoryTransactionRepo(store *memoryStore) *memoryTransactionRepo {
	return &memoryTransactionRepo{store: store}
}

func (r *memoryTransactionRepo) Create(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asMemoryTx(tx)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if t.IsCompletedDeposit() {
		if _, ok := r.store.byReference[t.PaymentReference]; ok {
			return domain.ErrDuplicateReference
		}
		r.store.byReference[t.PaymentReference] = t.ID
		ref := t.PaymentReference
		mt.undo = append(mt.undo, func() { delete(r.store.byReference, ref) })
	}

	r.store.transactions[t.ID] = *t
	id := t.ID
	mt.undo = append(mt.undo, func() { delete(r.store.transactions, id) })
	return nil
}

func (r *memoryTransactionRepo) GetByReference(_ context.Context, paymentReference string) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.byReference[paymentReference]
	if !ok {
		return nil, nil
	}
	t := r.store.transactions[id]
	return &t, nil
}

func (r *memoryTransactionRepo) List(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []domain.Transaction
	for _, t := range r.store.transactions {
		if t.WalletID == params.WalletID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *memoryTransactionRepo) GetStats(_ context.Context, walletID uuid.UUID) (*ports.DepositStats, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stats := &ports.DepositStats{}
	for _, t := range r.store.transactions {
		if t.WalletID == walletID && t.IsCompletedDeposit() {
			stats.TotalDeposits++
			stats.TotalAmountDeposited += t.AmountMinorUnits
		}
	}
	return stats, nil
}

// --- Event log repo ---

type memoryEventLogRepo struct {
	store *memoryStore
}

func newMemoryEventLogRepo(store *memoryStore) *memoryEventLogRepo {
	return &memoryEventLogRepo{store: store}
}

func (r *memoryEventLogRepo) Create(_ context.Context, log *domain.EventLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.eventLogs = append(r.store.eventLogs, *log)
	return nil
}
