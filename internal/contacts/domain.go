package contacts

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes customers from suppliers.
type Kind string

const (
	KindCustomer Kind = "CUSTOMER"
	KindSupplier Kind = "SUPPLIER"
)

// Contact is a customer or supplier master record.
type Contact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerDetails carries the customer's denormalized running totals. They are
// caches of ledger activity, not sources of truth, and are mutated only inside
// engine transactions.
type CustomerDetails struct {
	ContactID   int64           `json:"contact_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	No1         int64           `json:"no_1"`
	No2         int64           `json:"no_2"`
}

// SupplierDetails mirrors CustomerDetails for the purchase side.
type SupplierDetails struct {
	ContactID   int64           `json:"contact_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CreateContactInput describes a new contact.
type CreateContactInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Kind    Kind   `json:"kind" validate:"required,oneof=CUSTOMER SUPPLIER"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=512"`
}

// ErrContactNotFound indicates a missing contact.
var ErrContactNotFound = errors.New("contacts: not found")
