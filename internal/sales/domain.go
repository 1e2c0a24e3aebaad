package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a sales invoice header. RemainingAmount starts at GrandTotal and
// is only ever reduced by the treasury receipt cascade.
type Invoice struct {
	ID              int64             `json:"id"`
	Number          string            `json:"number"`
	CustomerID      int64             `json:"customer_id"`
	InvoiceDate     time.Time         `json:"invoice_date"`
	GrandTotal      decimal.Decimal   `json:"grand_total"`
	RemainingAmount decimal.Decimal   `json:"remaining_amount"`
	ReferenceNo1    int64             `json:"reference_no_1"`
	ReferenceNo2    int64             `json:"reference_no_2"`
	Note            string            `json:"note,omitempty"`
	Actor           string            `json:"actor,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []InvoiceItem     `json:"items,omitempty"`
	Cartons         []ShippingCarton  `json:"cartons,omitempty"`
}

// InvoiceItem is one invoiced line in dual units.
type InvoiceItem struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	ItemCode  string          `json:"item_code"`
	Finish    string          `json:"finish"`
	TotalPcs  int64           `json:"total_pcs"`
	NetKg     decimal.Decimal `json:"net_kg"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
}

// ShippingCarton records packaging consumed by an invoice.
type ShippingCarton struct {
	ID         int64  `json:"id"`
	InvoiceID  int64  `json:"invoice_id"`
	CartonName string `json:"carton_name"`
	Quantity   int64  `json:"quantity"`
}

// OrderStatus tracks how much of a sales order has been invoiced.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "OPEN"
	OrderStatusPartial  OrderStatus = "PARTIAL"
	OrderStatusInvoiced OrderStatus = "INVOICED"
)

// Order is a sales order line; QtyPcs is the remaining open quantity, consumed
// oldest-first by invoice fulfillment.
type Order struct {
	ID            int64       `json:"id"`
	OrderNo       string      `json:"order_no"`
	CustomerID    int64       `json:"customer_id"`
	ItemCode      string      `json:"item_code"`
	Finish        string      `json:"finish"`
	QtyPcs        int64       `json:"qty_pcs"`
	InvoiceStatus OrderStatus `json:"invoice_status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CreateInvoiceInput is the validated payload for invoice fulfillment.
type CreateInvoiceInput struct {
	Number       string               `json:"number" validate:"max=64"`
	CustomerID   int64                `json:"customer_id" validate:"required,gt=0"`
	InvoiceDate  time.Time            `json:"invoice_date"`
	GrandTotal   decimal.Decimal      `json:"grand_total"`
	ReferenceNo1 int64                `json:"reference_no_1" validate:"gte=0"`
	ReferenceNo2 int64                `json:"reference_no_2" validate:"gte=0"`
	Note         string               `json:"note" validate:"max=512"`
	Actor        string               `json:"actor" validate:"max=64"`
	Items        []InvoiceItemInput   `json:"items" validate:"required,min=1,dive"`
	Cartons      []CartonUsageInput   `json:"cartons" validate:"dive"`
}

// InvoiceItemInput is one requested line.
type InvoiceItemInput struct {
	ItemCode string          `json:"item_code" validate:"required,max=64"`
	Finish   string          `json:"finish" validate:"max=64"`
	TotalPcs int64           `json:"total_pcs" validate:"gte=0"`
	NetKg    decimal.Decimal `json:"net_kg"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

// CartonUsageInput is one carton consumption request.
type CartonUsageInput struct {
	CartonName string `json:"carton_name" validate:"required,max=64"`
	Quantity   int64  `json:"quantity" validate:"gt=0"`
}

// CreateOrderInput describes a new sales order line.
type CreateOrderInput struct {
	OrderNo    string `json:"order_no" validate:"max=64"`
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	ItemCode   string `json:"item_code" validate:"required,max=64"`
	Finish     string `json:"finish" validate:"max=64"`
	QtyPcs     int64  `json:"qty_pcs" validate:"required,gt=0"`
}

// InsufficientCartonStockError is raised by the pre-check before any mutation.
type InsufficientCartonStockError struct {
	Carton    string
	Required  int64
	Available int64
}

func (e *InsufficientCartonStockError) Error() string {
	return fmt.Sprintf("sales: insufficient carton stock for %q: required %d, available %d", e.Carton, e.Required, e.Available)
}

// InsufficientOrderQuantityError is raised mid-transaction when open order
// quantity cannot absorb the invoiced quantity; the whole transaction rolls
// back, including stock decrements already staged.
type InsufficientOrderQuantityError struct {
	ItemCode  string
	Finish    string
	Shortfall int64
}

func (e *InsufficientOrderQuantityError) Error() string {
	return fmt.Sprintf("sales: open order quantity for %s/%s short by %d pcs", e.ItemCode, e.Finish, e.Shortfall)
}
