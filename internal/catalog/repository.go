package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyager-erp/voyager-erp/internal/ledger"
	"github.com/voyager-erp/voyager-erp/internal/platform/db"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// Repository persists master items and carton inventory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateItem inserts a master item; opening stock becomes current stock.
func (r *Repository) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `
		INSERT INTO master_items (item_code, name, stock_pcs, stock_kg, opening_pcs, opening_kg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		input.ItemCode, input.Name, input.OpeningPcs, shared.DecimalToNumeric(input.OpeningKg),
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Item{}, shared.ErrConflict
		}
		return Item{}, err
	}
	item.ItemCode = input.ItemCode
	item.Name = input.Name
	item.StockPcs = input.OpeningPcs
	item.StockKg = input.OpeningKg
	item.OpeningPcs = input.OpeningPcs
	item.OpeningKg = input.OpeningKg
	return item, nil
}

// GetItemByCode fetches one item by its unique code.
func (r *Repository) GetItemByCode(ctx context.Context, itemCode string) (Item, error) {
	return getItem(ctx, r.pool, itemCode, false)
}

// ListItems returns all master items ordered by code.
func (r *Repository) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_code, name, stock_pcs, stock_kg, opening_pcs, opening_kg, created_at, updated_at
		FROM master_items ORDER BY item_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItemBalances satisfies the ledger reconciliation port.
func (r *Repository) ListItemBalances(ctx context.Context) ([]ledger.ItemBalance, error) {
	items, err := r.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	balances := make([]ledger.ItemBalance, 0, len(items))
	for _, item := range items {
		balances = append(balances, ledger.ItemBalance{
			ItemCode:   item.ItemCode,
			StockPcs:   item.StockPcs,
			StockKg:    item.StockKg,
			OpeningPcs: item.OpeningPcs,
			OpeningKg:  item.OpeningKg,
		})
	}
	return balances, nil
}

// CreateCarton inserts a carton stock record.
func (r *Repository) CreateCarton(ctx context.Context, input CreateCartonInput) (Carton, error) {
	var carton Carton
	err := r.pool.QueryRow(ctx, `
		INSERT INTO carton_inventory (carton_name, quantity) VALUES ($1, $2) RETURNING id`,
		input.CartonName, input.Quantity,
	).Scan(&carton.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Carton{}, shared.ErrConflict
		}
		return Carton{}, err
	}
	carton.CartonName = input.CartonName
	carton.Quantity = input.Quantity
	return carton, nil
}

// ListCartons returns all carton records ordered by name.
func (r *Repository) ListCartons(ctx context.Context) ([]Carton, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, carton_name, quantity FROM carton_inventory ORDER BY carton_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cartons []Carton
	for rows.Next() {
		var c Carton
		if err := rows.Scan(&c.ID, &c.CartonName, &c.Quantity); err != nil {
			return nil, err
		}
		cartons = append(cartons, c)
	}
	return cartons, rows.Err()
}

// --- Transaction-scoped operations ---
//
// The engine flows own the transaction; these functions run on whatever
// Querier the caller provides so every stock mutation commits or rolls back
// with the rest of the flow.

// GetItemForUpdate locks and returns an item row inside the caller's transaction.
func GetItemForUpdate(ctx context.Context, q db.Querier, itemCode string) (Item, error) {
	return getItem(ctx, q, itemCode, true)
}

// AdjustStock applies a signed stock delta in both units. No floor is applied:
// oversell drives stock_pcs negative and that is recorded as-is.
func AdjustStock(ctx context.Context, q db.Querier, itemCode string, deltaPcs int64, deltaKg decimal.Decimal) error {
	tag, err := q.Exec(ctx, `
		UPDATE master_items
		SET stock_pcs = stock_pcs + $2, stock_kg = stock_kg + $3, updated_at = NOW()
		WHERE item_code = $1`,
		itemCode, deltaPcs, shared.DecimalToNumeric(deltaKg))
	if err != nil {
		return fmt.Errorf("catalog: adjust stock %s: %w", itemCode, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// CartonQuantities returns current quantities for the requested carton names.
// Missing names are simply absent from the map.
func CartonQuantities(ctx context.Context, q db.Querier, names []string) (map[string]int64, error) {
	quantities := make(map[string]int64, len(names))
	if len(names) == 0 {
		return quantities, nil
	}
	rows, err := q.Query(ctx, `SELECT carton_name, quantity FROM carton_inventory WHERE carton_name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var qty int64
		if err := rows.Scan(&name, &qty); err != nil {
			return nil, err
		}
		quantities[name] = qty
	}
	return quantities, rows.Err()
}

// ConsumeCarton decrements carton stock by the consumed count.
func ConsumeCarton(ctx context.Context, q db.Querier, cartonName string, count int64) error {
	tag, err := q.Exec(ctx, `UPDATE carton_inventory SET quantity = quantity - $2 WHERE carton_name = $1`, cartonName, count)
	if err != nil {
		return fmt.Errorf("catalog: consume carton %s: %w", cartonName, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartonNotFound
	}
	return nil
}

func getItem(ctx context.Context, q db.Querier, itemCode string, forUpdate bool) (Item, error) {
	query := `
		SELECT id, item_code, name, stock_pcs, stock_kg, opening_pcs, opening_kg, created_at, updated_at
		FROM master_items WHERE item_code = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := q.QueryRow(ctx, query, itemCode)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var stockKg, openingKg pgtype.Numeric
	err := row.Scan(&item.ID, &item.ItemCode, &item.Name, &item.StockPcs, &stockKg, &item.OpeningPcs, &openingKg, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.StockKg = shared.NumericToDecimal(stockKg)
	item.OpeningKg = shared.NumericToDecimal(openingKg)
	return item, nil
}
