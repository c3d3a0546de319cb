package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists accounts and their transaction log in PostgreSQL.
// Row locks are taken with SELECT ... FOR UPDATE inside one database
// transaction per atomic unit.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const accountColumns = `id, owner_name, balance, user_id`

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.OwnerName, &acc.Balance, &acc.OwnerUserID); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// GetAccount loads a committed account by id.
func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return acc, nil
}

// ListAccountsByOwner returns the accounts assigned to userID in id order.
func (s *PostgresStore) ListAccountsByOwner(ctx context.Context, userID int64) ([]Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make([]Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// ListTransactionsByAccount returns the transaction log of one account in id order.
func (s *PostgresStore) ListTransactionsByAccount(ctx context.Context, accountID int64) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT id, account_id, type, amount, created_at
        FROM transactions WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		var txn Transaction
		var kind string
		if err := rows.Scan(&txn.ID, &txn.AccountID, &kind, &txn.Amount, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.Type = TransactionType(kind)
		txn.CreatedAt = txn.CreatedAt.UTC()
		out = append(out, txn)
	}
	return out, rows.Err()
}

// SaveAccount inserts or updates an account in its own atomic unit.
func (s *PostgresStore) SaveAccount(ctx context.Context, account Account) (Account, error) {
	return saveAccount(ctx, s, account)
}

// AppendTransaction records a transaction in its own atomic unit.
func (s *PostgresStore) AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	return appendTransaction(ctx, s, txn)
}

// RunAtomic runs fn inside a database transaction, committing only when fn
// succeeds.
func (s *PostgresStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	unit := &pgTx{tx: tx, now: s.now, held: make(map[int64]bool)}
	if err := fn(ctx, unit); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx      pgx.Tx
	now     func() time.Time
	held    map[int64]bool
	maxHeld int64
}

func (t *pgTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]Account, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	for _, id := range ordered {
		if !t.held[id] && len(t.held) > 0 && id < t.maxHeld {
			return nil, ErrLockOrder
		}
	}

	rows, err := t.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts
        WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ordered)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Account, len(ordered))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out[acc.ID] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	for _, id := range ordered {
		t.held[id] = true
		if id > t.maxHeld {
			t.maxHeld = id
		}
	}
	return out, nil
}

func (t *pgTx) SaveAccount(ctx context.Context, account Account) (Account, error) {
	if account.ID == 0 {
		err := t.tx.QueryRow(ctx, `INSERT INTO accounts (owner_name, balance, user_id)
            VALUES ($1, $2, $3) RETURNING id`, account.OwnerName, account.Balance, account.OwnerUserID).Scan(&account.ID)
		if err != nil {
			return Account{}, fmt.Errorf("insert account: %w", err)
		}
		t.held[account.ID] = true
		return account, nil
	}
	if !t.held[account.ID] {
		return Account{}, ErrNotLocked
	}
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET owner_name = $2, balance = $3, user_id = $4 WHERE id = $1`,
		account.ID, account.OwnerName, account.Balance, account.OwnerUserID)
	if err != nil {
		return Account{}, fmt.Errorf("update account %d: %w", account.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	if txn.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if !txn.Type.Valid() {
		return Transaction{}, ErrUnknownTransactionType
	}
	if !t.held[txn.AccountID] {
		return Transaction{}, ErrNotLocked
	}
	txn.CreatedAt = t.now().UTC()
	err := t.tx.QueryRow(ctx, `INSERT INTO transactions (account_id, type, amount, created_at)
        VALUES ($1, $2, $3, $4) RETURNING id`, txn.AccountID, string(txn.Type), txn.Amount, txn.CreatedAt).Scan(&txn.ID)
	if err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return txn, nil
}
