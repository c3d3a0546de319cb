package ledger

import "time"

// TransactionType classifies a recorded money movement.
type TransactionType string

const (
	TypeDeposit     TransactionType = "DEPOSIT"
	TypeWithdraw    TransactionType = "WITHDRAW"
	TypeTransferOut TransactionType = "TRANSFER_OUT"
	TypeTransferIn  TransactionType = "TRANSFER_IN"
)

// Valid reports whether t is one of the known movement types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdraw, TypeTransferOut, TypeTransferIn:
		return true
	default:
		return false
	}
}

// Transaction is an immutable record of one balance change on one account.
type Transaction struct {
	ID        int64
	AccountID int64
	Type      TransactionType
	Amount    int64
	CreatedAt time.Time
}
