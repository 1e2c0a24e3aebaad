package treasury

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a missing receipt or payment.
var ErrNotFound = errors.New("treasury: not found")

// Receipt is incoming money from a customer, cascaded across their open
// invoices newest-first.
type Receipt struct {
	ID          int64           `json:"id"`
	ReceiptNo   string          `json:"receipt_no"`
	CustomerID  int64           `json:"customer_id"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	ReceiptDate time.Time       `json:"receipt_date"`
	Note        string          `json:"note,omitempty"`
	Actor       string          `json:"actor,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Allocations []Allocation    `json:"allocations,omitempty"`
}

// Allocation records how much of a receipt was applied to one invoice. Stored
// so that deleting the receipt can restore each invoice exactly.
type Allocation struct {
	ID        int64           `json:"id"`
	ReceiptID int64           `json:"receipt_id"`
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ReceiptResult is the outcome of a receipt cascade. UnappliedAmount is the
// surplus left after every open invoice reached zero; it is reported to the
// caller but not persisted anywhere.
type ReceiptResult struct {
	Receipt         Receipt         `json:"receipt"`
	AppliedAmount   decimal.Decimal `json:"applied_amount"`
	UnappliedAmount decimal.Decimal `json:"unapplied_amount"`
}

// Payment is outgoing money to a supplier. There is no purchase-side cascade.
type Payment struct {
	ID          int64           `json:"id"`
	PaymentNo   string          `json:"payment_no"`
	SupplierID  int64           `json:"supplier_id"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Note        string          `json:"note,omitempty"`
	Actor       string          `json:"actor,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ApplyReceiptInput is the validated payload for an incoming receipt.
type ApplyReceiptInput struct {
	ReceiptNo   string          `json:"receipt_no" validate:"max=64"`
	CustomerID  int64           `json:"customer_id" validate:"required,gt=0"`
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	ReceiptDate time.Time       `json:"receipt_date"`
	Note        string          `json:"note" validate:"max=512"`
	Actor       string          `json:"actor" validate:"max=64"`
}

// ApplyPaymentInput is the validated payload for an outgoing payment.
type ApplyPaymentInput struct {
	PaymentNo   string          `json:"payment_no" validate:"max=64"`
	SupplierID  int64           `json:"supplier_id" validate:"required,gt=0"`
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Note        string          `json:"note" validate:"max=512"`
	Actor       string          `json:"actor" validate:"max=64"`
}

// OpenInvoice is the slice of an invoice the cascade needs: its identity and
// the unpaid balance, locked for the duration of the transaction.
type OpenInvoice struct {
	ID              int64
	Number          string
	RemainingAmount decimal.Decimal
}
