package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a master-item record with dual-unit stock. Stock in pieces is
// deliberately signed: the sales flow may drive it negative (backorder).
type Item struct {
	ID         int64           `json:"id"`
	ItemCode   string          `json:"item_code"`
	Name       string          `json:"name"`
	StockPcs   int64           `json:"stock_pcs"`
	StockKg    decimal.Decimal `json:"stock_kg"`
	OpeningPcs int64           `json:"opening_pcs"`
	OpeningKg  decimal.Decimal `json:"opening_kg"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Carton is a physical packaging stock record. Unlike item stock it is never
// allowed to go negative; the sales flow pre-checks before consuming.
type Carton struct {
	ID         int64  `json:"id"`
	CartonName string `json:"carton_name"`
	Quantity   int64  `json:"quantity"`
}

// CreateItemInput describes a new master item.
type CreateItemInput struct {
	ItemCode   string          `json:"item_code" validate:"required,max=64"`
	Name       string          `json:"name" validate:"required,max=255"`
	OpeningPcs int64           `json:"opening_pcs" validate:"gte=0"`
	OpeningKg  decimal.Decimal `json:"opening_kg"`
}

// CreateCartonInput describes a new carton stock record.
type CreateCartonInput struct {
	CartonName string `json:"carton_name" validate:"required,max=64"`
	Quantity   int64  `json:"quantity" validate:"gte=0"`
}

// ErrItemNotFound indicates a missing master item.
var ErrItemNotFound = errors.New("catalog: item not found")

// ErrCartonNotFound indicates a missing carton record.
var ErrCartonNotFound = errors.New("catalog: carton not found")
