package ledger

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var errNegativeBalance = errors.New("balance constraint violated")

type inMemoryStore struct {
	mu            sync.RWMutex
	accounts      map[int64]Account
	transactions  map[int64][]Transaction
	rowLocks      map[int64]chan struct{}
	nextAccountID int64
	nextTxID      int64
	now           func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and local development.
func NewInMemory() Store {
	return &inMemoryStore{
		accounts:     make(map[int64]Account),
		transactions: make(map[int64][]Transaction),
		rowLocks:     make(map[int64]chan struct{}),
		now:          time.Now,
	}
}

func (s *inMemoryStore) GetAccount(_ context.Context, id int64) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc.clone(), nil
}

func (s *inMemoryStore) ListAccountsByOwner(_ context.Context, userID int64) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0)
	for _, acc := range s.accounts {
		if acc.OwnedBy(userID) {
			out = append(out, acc.clone())
		}
	}
	slices.SortFunc(out, func(a, b Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *inMemoryStore) ListTransactionsByAccount(_ context.Context, accountID int64) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.transactions[accountID])
	if out == nil {
		out = make([]Transaction, 0)
	}
	slices.SortFunc(out, func(a, b Transaction) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *inMemoryStore) SaveAccount(ctx context.Context, account Account) (Account, error) {
	return saveAccount(ctx, s, account)
}

func (s *inMemoryStore) AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	return appendTransaction(ctx, s, txn)
}

func (s *inMemoryStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unit := &memTx{
		store:    s,
		held:     make(map[int64]chan struct{}),
		created:  make(map[int64]bool),
		accounts: make(map[int64]Account),
	}
	defer unit.release()

	if err := fn(ctx, unit); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(unit)
	return nil
}

func (s *inMemoryStore) commit(unit *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acc := range unit.accounts {
		s.accounts[id] = acc
	}
	for _, txn := range unit.txns {
		s.transactions[txn.AccountID] = append(s.transactions[txn.AccountID], txn)
	}
}

func (s *inMemoryStore) rowLock(id int64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.rowLocks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		s.rowLocks[id] = lock
	}
	return lock
}

func (s *inMemoryStore) allocateAccountID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	return s.nextAccountID
}

func (s *inMemoryStore) allocateTxID() (int64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxID++
	return s.nextTxID, s.now().UTC()
}

// memTx stages writes until the owning unit commits. Row locks are
// buffered channels so a blocked acquisition honours context cancellation.
type memTx struct {
	store    *inMemoryStore
	held     map[int64]chan struct{}
	maxHeld  int64
	created  map[int64]bool
	accounts map[int64]Account
	txns     []Transaction
}

func (t *memTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]Account, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	for _, id := range ordered {
		if _, ok := t.held[id]; ok || t.created[id] {
			continue
		}
		if len(t.held) > 0 && id < t.maxHeld {
			return nil, ErrLockOrder
		}
		lock := t.store.rowLock(id)
		select {
		case lock <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		t.held[id] = lock
		t.maxHeld = id
	}

	out := make(map[int64]Account, len(ordered))
	for _, id := range ordered {
		if acc, ok := t.lookup(id); ok {
			out[id] = acc.clone()
		}
	}
	return out, nil
}

func (t *memTx) lookup(id int64) (Account, bool) {
	if acc, ok := t.accounts[id]; ok {
		return acc, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	acc, ok := t.store.accounts[id]
	return acc, ok
}

func (t *memTx) SaveAccount(_ context.Context, account Account) (Account, error) {
	if account.Balance < 0 {
		return Account{}, errNegativeBalance
	}
	if account.ID == 0 {
		account.ID = t.store.allocateAccountID()
		t.created[account.ID] = true
		t.accounts[account.ID] = account.clone()
		return account, nil
	}
	if !t.owns(account.ID) {
		return Account{}, ErrNotLocked
	}
	if _, ok := t.lookup(account.ID); !ok {
		return Account{}, ErrNotFound
	}
	t.accounts[account.ID] = account.clone()
	return account, nil
}

func (t *memTx) AppendTransaction(_ context.Context, txn Transaction) (Transaction, error) {
	if txn.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if !txn.Type.Valid() {
		return Transaction{}, ErrUnknownTransactionType
	}
	if !t.owns(txn.AccountID) {
		return Transaction{}, ErrNotLocked
	}
	if _, ok := t.lookup(txn.AccountID); !ok {
		return Transaction{}, ErrNotFound
	}
	txn.ID, txn.CreatedAt = t.store.allocateTxID()
	t.txns = append(t.txns, txn)
	return txn, nil
}

func (t *memTx) owns(id int64) bool {
	_, locked := t.held[id]
	return locked || t.created[id]
}

func (t *memTx) release() {
	for id, lock := range t.held {
		<-lock
		delete(t.held, id)
	}
}
