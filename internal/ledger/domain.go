package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tags a stock movement as stock-in or stock-out.
type Direction string

const (
	// DirectionCredit represents stock entering the warehouse.
	DirectionCredit Direction = "CREDIT"
	// DirectionDebit represents stock leaving the warehouse.
	DirectionDebit Direction = "DEBIT"
)

// Source identifies the document family that produced a movement.
type Source string

const (
	// SourcePurchase marks movements created by purchase invoices.
	SourcePurchase Source = "PURCHASE"
	// SourceSales marks movements created by sales invoices.
	SourceSales Source = "SALES"
)

// Movement is an immutable stock ledger entry. Rows are only ever inserted,
// and removed solely as a cascade of deleting the parent invoice.
type Movement struct {
	ID            int64           `json:"id"`
	ItemCode      string          `json:"item_code"`
	Direction     Direction       `json:"direction"`
	Source        Source          `json:"source"`
	InvoiceNumber string          `json:"invoice_number"`
	QtyPcs        int64           `json:"qty_pcs"`
	QtyKg         decimal.Decimal `json:"qty_kg"`
	MovedAt       time.Time       `json:"moved_at"`
	Note          string          `json:"note,omitempty"`
	Actor         string          `json:"actor,omitempty"`
}

// ItemBalance is the master-stock view the reconciliation check compares
// ledger totals against.
type ItemBalance struct {
	ItemCode   string
	StockPcs   int64
	StockKg    decimal.Decimal
	OpeningPcs int64
	OpeningKg  decimal.Decimal
}

// ReconciliationRow reports, for one item, the signed ledger total next to the
// net stock delta applied since the ledger was empty.
type ReconciliationRow struct {
	ItemCode     string          `json:"item_code"`
	LedgerPcs    int64           `json:"ledger_pcs"`
	LedgerKg     decimal.Decimal `json:"ledger_kg"`
	StockDeltaP  int64           `json:"stock_delta_pcs"`
	StockDeltaKg decimal.Decimal `json:"stock_delta_kg"`
	DriftPcs     int64           `json:"drift_pcs"`
	DriftKg      decimal.Decimal `json:"drift_kg"`
}

// InDrift reports whether the ledger and master stock disagree.
func (r ReconciliationRow) InDrift() bool {
	return r.DriftPcs != 0 || !r.DriftKg.IsZero()
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	ItemCode      string
	InvoiceNumber string
	Direction     Direction
	From          time.Time
	To            time.Time
	Limit         int
}
