package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mankatbank/mankatbank/internal/ledger"
	"github.com/mankatbank/mankatbank/internal/metrics"
	"github.com/mankatbank/mankatbank/internal/notification"
)

const defaultAccountName = "Main account"

// Service performs balance mutations and reads on behalf of an
// authenticated user. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds an account service. notifier and collector may be nil.
func NewService(store ledger.Store, notifier notification.Notifier, collector *metrics.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notifier: notifier, metrics: collector, logger: logger, now: time.Now}
}

// TransferInput captures the data needed to move funds between accounts.
type TransferInput struct {
	FromID int64
	ToID   int64
	UserID int64
	Amount int64
}

// TransferResult describes the committed outcome of a transfer.
type TransferResult struct {
	From        ledger.Account
	To          ledger.Account
	Out         ledger.Transaction
	In          ledger.Transaction
	CompletedAt time.Time
}

// requireOwned rejects access to accounts that are unassigned or assigned
// to someone other than userID.
func requireOwned(account ledger.Account, userID int64) error {
	if !account.OwnedBy(userID) {
		return ledger.ErrForbidden
	}
	return nil
}

// Deposit credits amount to an account owned by userID.
func (s *Service) Deposit(ctx context.Context, accountID, userID, amount int64) (ledger.Account, error) {
	return s.mutate(ctx, "deposit", accountID, userID, amount, ledger.TypeDeposit, func(acc *ledger.Account) error {
		return acc.Deposit(amount)
	})
}

// Withdraw debits amount from an account owned by userID.
func (s *Service) Withdraw(ctx context.Context, accountID, userID, amount int64) (ledger.Account, error) {
	return s.mutate(ctx, "withdraw", accountID, userID, amount, ledger.TypeWithdraw, func(acc *ledger.Account) error {
		return acc.Withdraw(amount)
	})
}

func (s *Service) mutate(ctx context.Context, op string, accountID, userID, amount int64, kind ledger.TransactionType, apply func(*ledger.Account) error) (ledger.Account, error) {
	start := s.now()
	var saved ledger.Account
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		acc, ok := locked[accountID]
		if !ok {
			return ledger.ErrNotFound
		}
		if err := requireOwned(acc, userID); err != nil {
			return err
		}
		if err := apply(&acc); err != nil {
			return err
		}
		if saved, err = tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		_, err = tx.AppendTransaction(ctx, ledger.Transaction{AccountID: acc.ID, Type: kind, Amount: amount})
		return err
	})
	if err = s.finish(ctx, op, amount, start, err); err != nil {
		return ledger.Account{}, err
	}
	return saved, nil
}

// Transfer moves amount from one account to another in a single atomic
// unit. Only the source account must belong to the caller.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	start := s.now()
	if input.Amount <= 0 {
		return TransferResult{}, s.finish(ctx, "transfer", input.Amount, start, ledger.ErrInvalidAmount)
	}
	if input.FromID == input.ToID {
		return TransferResult{}, s.finish(ctx, "transfer", input.Amount, start, ledger.ErrSameAccount)
	}

	var res TransferResult
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, err := tx.LockAccounts(ctx, input.FromID, input.ToID)
		if err != nil {
			return err
		}
		from, ok := locked[input.FromID]
		if !ok {
			return ledger.ErrNotFound
		}
		if err := requireOwned(from, input.UserID); err != nil {
			return err
		}
		to, ok := locked[input.ToID]
		if !ok {
			return ledger.ErrNotFound
		}

		if err := from.Withdraw(input.Amount); err != nil {
			return err
		}
		if err := to.Deposit(input.Amount); err != nil {
			return err
		}
		if res.From, err = tx.SaveAccount(ctx, from); err != nil {
			return err
		}
		if res.To, err = tx.SaveAccount(ctx, to); err != nil {
			return err
		}
		if res.Out, err = tx.AppendTransaction(ctx, ledger.Transaction{AccountID: from.ID, Type: ledger.TypeTransferOut, Amount: input.Amount}); err != nil {
			return err
		}
		res.In, err = tx.AppendTransaction(ctx, ledger.Transaction{AccountID: to.ID, Type: ledger.TypeTransferIn, Amount: input.Amount})
		return err
	})
	if err = s.finish(ctx, "transfer", input.Amount, start, err); err != nil {
		return TransferResult{}, err
	}
	res.CompletedAt = s.now().UTC()

	if s.notifier != nil && res.To.OwnerUserID != nil {
		msg := notification.Message{
			Kind:      notification.KindTransferReceived,
			UserID:    *res.To.OwnerUserID,
			AccountID: res.To.ID,
			Amount:    input.Amount,
			Body:      fmt.Sprintf("You received %d from account %d", input.Amount, input.FromID),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "transfer notification failed", slog.Int64("account_id", res.To.ID), slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// ListAccounts returns every account owned by userID in id order.
func (s *Service) ListAccounts(ctx context.Context, userID int64) ([]ledger.Account, error) {
	accounts, err := s.store.ListAccountsByOwner(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return accounts, nil
}

// GetAccount returns a single account owned by userID.
func (s *Service) GetAccount(ctx context.Context, accountID, userID int64) (ledger.Account, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return ledger.Account{}, classify(err)
	}
	if err := requireOwned(acc, userID); err != nil {
		return ledger.Account{}, err
	}
	return acc, nil
}

// ListTransactions returns the transaction log of an account owned by userID.
func (s *Service) ListTransactions(ctx context.Context, accountID, userID int64) ([]ledger.Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID, userID); err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, classify(err)
	}
	return txns, nil
}

// CreateAccount opens a zero-balance account owned by userID.
func (s *Service) CreateAccount(ctx context.Context, userID int64, ownerName string) (ledger.Account, error) {
	name := strings.TrimSpace(ownerName)
	if name == "" {
		return ledger.Account{}, ledger.ErrInvalidOwnerName
	}
	owner := userID
	acc, err := s.store.SaveAccount(ctx, ledger.Account{OwnerName: name, OwnerUserID: &owner})
	if err != nil {
		return ledger.Account{}, classify(err)
	}
	s.logger.InfoContext(ctx, "account opened", slog.Int64("account_id", acc.ID), slog.Int64("user_id", userID))
	return acc, nil
}

// OpenDefaultAccount opens the account every user receives at registration,
// labelled with their full name.
func (s *Service) OpenDefaultAccount(ctx context.Context, userID int64, fullName string) (ledger.Account, error) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = defaultAccountName
	}
	return s.CreateAccount(ctx, userID, name)
}

// AssignOwner attaches an account to targetUserID. Callers may only assign
// accounts to themselves, and only accounts that are unowned or already theirs.
func (s *Service) AssignOwner(ctx context.Context, accountID, callerID, targetUserID int64) (ledger.Account, error) {
	if callerID != targetUserID {
		return ledger.Account{}, ledger.ErrForbidden
	}
	var saved ledger.Account
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		acc, ok := locked[accountID]
		if !ok {
			return ledger.ErrNotFound
		}
		if acc.OwnerUserID != nil && *acc.OwnerUserID != callerID {
			return ledger.ErrForbidden
		}
		owner := targetUserID
		acc.OwnerUserID = &owner
		saved, err = tx.SaveAccount(ctx, acc)
		return err
	})
	if err != nil {
		return ledger.Account{}, classify(err)
	}
	return saved, nil
}

// finish classifies err and records the operation's outcome.
func (s *Service) finish(ctx context.Context, op string, amount int64, start time.Time, err error) error {
	err = classify(err)
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case ledger.IsDomainError(err):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
		s.logger.ErrorContext(ctx, "ledger operation failed", slog.String("operation", op), slog.String("error", err.Error()))
	}
	s.metrics.RecordOperation(op, outcome, amount, s.now().Sub(start))
	return err
}

// classify passes business-rule errors through and reports everything else
// as a store failure.
func classify(err error) error {
	if err == nil || ledger.IsDomainError(err) || errors.Is(err, ledger.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ledger.ErrStoreUnavailable, err)
}
