package ledger

import "math"

// Account is a single monetary account. Balance is kept in the smallest
// currency unit and never drops below zero.
type Account struct {
	ID          int64
	OwnerName   string
	Balance     int64
	OwnerUserID *int64
}

// Deposit increases the balance by amount. The balance is left untouched
// when the deposit is rejected.
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > math.MaxInt64-a.Balance {
		return ErrBalanceOverflow
	}
	a.Balance += amount
	return nil
}

// Withdraw decreases the balance by amount. The balance is left untouched
// when the withdrawal is rejected.
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > a.Balance {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	return nil
}

// OwnedBy reports whether the account has been assigned to userID.
func (a Account) OwnedBy(userID int64) bool {
	return a.OwnerUserID != nil && *a.OwnerUserID == userID
}

func (a Account) clone() Account {
	if a.OwnerUserID != nil {
		owner := *a.OwnerUserID
		a.OwnerUserID = &owner
	}
	return a
}
