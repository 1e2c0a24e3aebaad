package accounts

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a cash or bank account whose balance moves only inside treasury
// transactions.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryDirection tags an account-history row.
type HistoryDirection string

const (
	// HistoryDebit records money entering the account.
	HistoryDebit HistoryDirection = "DEBIT"
	// HistoryCredit records money leaving the account.
	HistoryCredit HistoryDirection = "CREDIT"
)

// HistoryEntry captures one balance movement with the balance after it, so a
// statement can be rebuilt without replaying every row.
type HistoryEntry struct {
	ID           int64            `json:"id"`
	AccountID    int64            `json:"account_id"`
	Direction    HistoryDirection `json:"direction"`
	Amount       decimal.Decimal  `json:"amount"`
	BalanceAfter decimal.Decimal  `json:"balance_after"`
	RefKind      string           `json:"ref_kind"`
	RefID        int64            `json:"ref_id"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// Reference kinds stored in account_history.
const (
	RefKindReceipt = "RECEIPT"
	RefKindPayment = "PAYMENT"
)

// CreateAccountInput describes a new account.
type CreateAccountInput struct {
	Name           string          `json:"name" validate:"required,max=255"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// ErrAccountNotFound indicates a missing account.
var ErrAccountNotFound = errors.New("accounts: not found")
