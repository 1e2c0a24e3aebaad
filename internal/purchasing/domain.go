package purchasing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a missing purchase invoice.
var ErrNotFound = errors.New("purchasing: not found")

// Invoice is a purchase invoice header.
type Invoice struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	SupplierID  int64           `json:"supplier_id"`
	InvoiceDate time.Time       `json:"invoice_date"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	Note        string          `json:"note,omitempty"`
	Actor       string          `json:"actor,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []InvoiceItem   `json:"items,omitempty"`
}

// InvoiceItem is one received line. Matched reports whether the item code was
// found in the master catalog; unmatched lines are stored but move no stock.
type InvoiceItem struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	ItemCode  string          `json:"item_code"`
	TotalPcs  int64           `json:"total_pcs"`
	NetKg     decimal.Decimal `json:"net_kg"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	Matched   bool            `json:"matched"`
}

// ReceiveInvoiceInput is the validated payload for a goods receipt.
type ReceiveInvoiceInput struct {
	Number      string             `json:"number" validate:"max=64"`
	SupplierID  int64              `json:"supplier_id" validate:"required,gt=0"`
	InvoiceDate time.Time          `json:"invoice_date"`
	GrandTotal  decimal.Decimal    `json:"grand_total"`
	Note        string             `json:"note" validate:"max=512"`
	Actor       string             `json:"actor" validate:"max=64"`
	Items       []InvoiceItemInput `json:"items" validate:"required,min=1,dive"`
}

// InvoiceItemInput is one requested receipt line.
type InvoiceItemInput struct {
	ItemCode string          `json:"item_code" validate:"required,max=64"`
	TotalPcs int64           `json:"total_pcs" validate:"gte=0"`
	NetKg    decimal.Decimal `json:"net_kg"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

// UnknownItemError is raised in strict matching mode when a receipt line names
// an item code missing from the master catalog.
type UnknownItemError struct {
	ItemCode string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("purchasing: unknown item code %q", e.ItemCode)
}
