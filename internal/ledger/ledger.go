package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInvalidAmount is returned when a money movement is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested withdrawal or transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceOverflow is returned when a credit would push a balance past
	// the largest representable amount.
	ErrBalanceOverflow = errors.New("balance limit exceeded")

	// ErrSameAccount rejects transfers whose source and destination coincide.
	ErrSameAccount = errors.New("cannot transfer to the same account")

	// ErrNotFound indicates the referenced account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrForbidden indicates the caller does not own the referenced account.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidOwnerName is returned when an account is opened without a label.
	ErrInvalidOwnerName = errors.New("ownerName is required")

	// ErrStoreUnavailable wraps any failure of the backing store. The atomic
	// unit that produced it has been rolled back.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrLockOrder is returned when a unit tries to lock an account with a
	// lower id than one it already holds.
	ErrLockOrder = errors.New("accounts must be locked in ascending id order")

	// ErrUnknownTransactionType is returned when appending a movement whose
	// type is not one of the known kinds.
	ErrUnknownTransactionType = errors.New("unknown transaction type")

	// ErrNotLocked is returned when a unit writes an account it has not locked.
	ErrNotLocked = errors.New("account is not locked by this unit")
)

// IsDomainError reports whether err is a business-rule rejection rather than
// an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrInvalidAmount, ErrInsufficientFunds, ErrBalanceOverflow, ErrSameAccount, ErrNotFound, ErrForbidden, ErrInvalidOwnerName} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Tx is the view of the store available inside an atomic unit. Writes are
// only visible to other units once the unit commits.
type Tx interface {
	// LockAccounts acquires exclusive access to the given accounts in ascending
	// id order and returns the ones that exist, keyed by id. Locks are held
	// until the unit ends.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]Account, error)
	// SaveAccount inserts the account when its id is zero and updates it otherwise.
	SaveAccount(ctx context.Context, account Account) (Account, error)
	// AppendTransaction records a money movement and assigns its id and timestamp.
	AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error)
}

// Store defines the contract implemented by ledger backends (in-memory, Postgres).
type Store interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccountsByOwner(ctx context.Context, userID int64) ([]Account, error)
	SaveAccount(ctx context.Context, account Account) (Account, error)
	AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountID int64) ([]Transaction, error)
	// RunAtomic executes fn as one unit: every write performed through the Tx
	// commits together, or none does when fn returns an error.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// saveAccount is the single-operation unit shared by store implementations.
func saveAccount(ctx context.Context, s Store, account Account) (Account, error) {
	var saved Account
	err := s.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		if account.ID != 0 {
			locked, err := tx.LockAccounts(ctx, account.ID)
			if err != nil {
				return err
			}
			if _, ok := locked[account.ID]; !ok {
				return ErrNotFound
			}
		}
		var err error
		saved, err = tx.SaveAccount(ctx, account)
		return err
	})
	return saved, err
}

func appendTransaction(ctx context.Context, s Store, txn Transaction) (Transaction, error) {
	var appended Transaction
	err := s.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockAccounts(ctx, txn.AccountID)
		if err != nil {
			return err
		}
		if _, ok := locked[txn.AccountID]; !ok {
			return ErrNotFound
		}
		appended, err = tx.AppendTransaction(ctx, txn)
		return err
	})
	return appended, err
}
