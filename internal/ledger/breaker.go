package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker placed in front of a store.
type BreakerSettings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings trips after five consecutive store failures and
// probes again after thirty seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "ledger-store",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

type breakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps store so that repeated infrastructure failures open a
// circuit and fail fast with ErrStoreUnavailable. Business-rule rejections
// never count as failures.
func WithBreaker(store Store, settings BreakerSettings, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsDomainError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &breakerStore{next: store, cb: cb}
}

func (b *breakerStore) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func (b *breakerStore) GetAccount(ctx context.Context, id int64) (acc Account, err error) {
	err = b.execute(func() error {
		acc, err = b.next.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

func (b *breakerStore) ListAccountsByOwner(ctx context.Context, userID int64) (out []Account, err error) {
	err = b.execute(func() error {
		out, err = b.next.ListAccountsByOwner(ctx, userID)
		return err
	})
	return out, err
}

func (b *breakerStore) SaveAccount(ctx context.Context, account Account) (saved Account, err error) {
	err = b.execute(func() error {
		saved, err = b.next.SaveAccount(ctx, account)
		return err
	})
	return saved, err
}

func (b *breakerStore) AppendTransaction(ctx context.Context, txn Transaction) (appended Transaction, err error) {
	err = b.execute(func() error {
		appended, err = b.next.AppendTransaction(ctx, txn)
		return err
	})
	return appended, err
}

func (b *breakerStore) ListTransactionsByAccount(ctx context.Context, accountID int64) (out []Transaction, err error) {
	err = b.execute(func() error {
		out, err = b.next.ListTransactionsByAccount(ctx, accountID)
		return err
	})
	return out, err
}

func (b *breakerStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return b.execute(func() error {
		return b.next.RunAtomic(ctx, fn)
	})
}
