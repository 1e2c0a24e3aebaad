package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyager-erp/voyager-erp/internal/catalog"
	"github.com/voyager-erp/voyager-erp/internal/contacts"
	"github.com/voyager-erp/voyager-erp/internal/ledger"
	"github.com/voyager-erp/voyager-erp/internal/platform/db"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// ErrNotFound indicates a missing invoice or order.
var ErrNotFound = errors.New("sales: not found")

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the fulfillment flow
// performs. All methods run on one transaction owned by WithTx.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error)
	InsertShippingCarton(ctx context.Context, sc ShippingCarton) (int64, error)
	CartonQuantities(ctx context.Context, names []string) (map[string]int64, error)
	ConsumeCarton(ctx context.Context, cartonName string, count int64) error
	AdjustItemStock(ctx context.Context, itemCode string, deltaPcs int64, deltaKg decimal.Decimal) error
	RecordMovement(ctx context.Context, m ledger.Movement) error
	OpenOrdersForUpdate(ctx context.Context, itemCode, finish string) ([]Order, error)
	TakeFromOrder(ctx context.Context, orderID, qtyPcs int64, status OrderStatus) error
	AddCustomerActivity(ctx context.Context, customerID int64, amount decimal.Decimal, no1, no2 int64) (bool, error)
	DeleteInvoice(ctx context.Context, id int64) (string, error)
	DeleteMovementsByInvoice(ctx context.Context, invoiceNumber string) error
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices (number, customer_id, invoice_date, grand_total, remaining_amount, reference_no_1, reference_no_2, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id`,
		inv.Number, inv.CustomerID, inv.InvoiceDate,
		shared.DecimalToNumeric(inv.GrandTotal), shared.DecimalToNumeric(inv.RemainingAmount),
		inv.ReferenceNo1, inv.ReferenceNo2, inv.Note, inv.Actor,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.ErrConflict
		}
		return 0, fmt.Errorf("sales: insert invoice: %w", err)
	}
	return id, nil
}

func (t *txRepo) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoice_items (invoice_id, item_code, finish, total_pcs, net_kg, rate, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		item.InvoiceID, item.ItemCode, item.Finish, item.TotalPcs,
		shared.DecimalToNumeric(item.NetKg), shared.DecimalToNumeric(item.Rate), shared.DecimalToNumeric(item.Amount),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert invoice item: %w", err)
	}
	return id, nil
}

func (t *txRepo) InsertShippingCarton(ctx context.Context, sc ShippingCarton) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO shipping_cartons (invoice_id, carton_name, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`,
		sc.InvoiceID, sc.CartonName, sc.Quantity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert shipping carton: %w", err)
	}
	return id, nil
}

func (t *txRepo) CartonQuantities(ctx context.Context, names []string) (map[string]int64, error) {
	return catalog.CartonQuantities(ctx, t.tx, names)
}

func (t *txRepo) ConsumeCarton(ctx context.Context, cartonName string, count int64) error {
	return catalog.ConsumeCarton(ctx, t.tx, cartonName, count)
}

func (t *txRepo) AdjustItemStock(ctx context.Context, itemCode string, deltaPcs int64, deltaKg decimal.Decimal) error {
	return catalog.AdjustStock(ctx, t.tx, itemCode, deltaPcs, deltaKg)
}

func (t *txRepo) RecordMovement(ctx context.Context, m ledger.Movement) error {
	_, err := ledger.Record(ctx, t.tx, m)
	return err
}

// OpenOrdersForUpdate loads still-open order lines for one item and finish,
// oldest first, locked so concurrent invoices cannot over-allocate them.
func (t *txRepo) OpenOrdersForUpdate(ctx context.Context, itemCode, finish string) ([]Order, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_no, customer_id, item_code, finish, qty_pcs, invoice_status, created_at
		FROM sales_orders
		WHERE item_code = $1 AND finish = $2 AND qty_pcs > 0
		ORDER BY id ASC
		FOR UPDATE`, itemCode, finish)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.CustomerID, &o.ItemCode, &o.Finish, &o.QtyPcs, &o.InvoiceStatus, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (t *txRepo) TakeFromOrder(ctx context.Context, orderID, qtyPcs int64, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE sales_orders SET qty_pcs = qty_pcs - $2, invoice_status = $3 WHERE id = $1`,
		orderID, qtyPcs, string(status))
	if err != nil {
		return fmt.Errorf("sales: take from order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AddCustomerActivity(ctx context.Context, customerID int64, amount decimal.Decimal, no1, no2 int64) (bool, error) {
	return contacts.AddCustomerActivity(ctx, t.tx, customerID, amount, no1, no2)
}

// DeleteInvoice removes the header and returns its number; items and cartons
// cascade at the schema level.
func (t *txRepo) DeleteInvoice(ctx context.Context, id int64) (string, error) {
	var number string
	err := t.tx.QueryRow(ctx, `DELETE FROM invoices WHERE id = $1 RETURNING number`, id).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return number, err
}

func (t *txRepo) DeleteMovementsByInvoice(ctx context.Context, invoiceNumber string) error {
	return ledger.DeleteByInvoice(ctx, t.tx, invoiceNumber)
}

// --- Pool-backed reads ---

// GetInvoice returns an invoice with its items and cartons.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	var grandTotal, remaining pgtype.Numeric
	err := r.pool.QueryRow(ctx, `
		SELECT id, number, customer_id, invoice_date, grand_total, remaining_amount, reference_no_1, reference_no_2, note, actor, created_at
		FROM invoices WHERE id=$1`, id).
		Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.InvoiceDate, &grandTotal, &remaining,
			&inv.ReferenceNo1, &inv.ReferenceNo2, &inv.Note, &inv.Actor, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.GrandTotal = shared.NumericToDecimal(grandTotal)
	inv.RemainingAmount = shared.NumericToDecimal(remaining)

	items, err := r.listInvoiceItems(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items

	cartons, err := r.listShippingCartons(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Cartons = cartons
	return inv, nil
}

// ListInvoices returns invoice headers, newest first, optionally by customer.
func (r *Repository) ListInvoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, number, customer_id, invoice_date, grand_total, remaining_amount, reference_no_1, reference_no_2, note, actor, created_at
		FROM invoices`
	args := []any{}
	if customerID > 0 {
		query += ` WHERE customer_id=$1 ORDER BY id DESC LIMIT $2`
		args = append(args, customerID, limit)
	} else {
		query += ` ORDER BY id DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		var grandTotal, remaining pgtype.Numeric
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.InvoiceDate, &grandTotal, &remaining,
			&inv.ReferenceNo1, &inv.ReferenceNo2, &inv.Note, &inv.Actor, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.GrandTotal = shared.NumericToDecimal(grandTotal)
		inv.RemainingAmount = shared.NumericToDecimal(remaining)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// CreateOrder inserts a sales order line.
func (r *Repository) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	var order Order
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sales_orders (order_no, customer_id, item_code, finish, qty_pcs, invoice_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`,
		input.OrderNo, input.CustomerID, input.ItemCode, input.Finish, input.QtyPcs, string(OrderStatusOpen),
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	order.OrderNo = input.OrderNo
	order.CustomerID = input.CustomerID
	order.ItemCode = input.ItemCode
	order.Finish = input.Finish
	order.QtyPcs = input.QtyPcs
	order.InvoiceStatus = OrderStatusOpen
	return order, nil
}

// ListOpenOrders returns open order lines, oldest first.
func (r *Repository) ListOpenOrders(ctx context.Context, itemCode string) ([]Order, error) {
	query := `
		SELECT id, order_no, customer_id, item_code, finish, qty_pcs, invoice_status, created_at
		FROM sales_orders WHERE qty_pcs > 0`
	args := []any{}
	if itemCode != "" {
		query += ` AND item_code=$1`
		args = append(args, itemCode)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.CustomerID, &o.ItemCode, &o.Finish, &o.QtyPcs, &o.InvoiceStatus, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repository) listInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, item_code, finish, total_pcs, net_kg, rate, amount
		FROM invoice_items WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var item InvoiceItem
		var netKg, rate, amount pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ItemCode, &item.Finish, &item.TotalPcs, &netKg, &rate, &amount); err != nil {
			return nil, err
		}
		item.NetKg = shared.NumericToDecimal(netKg)
		item.Rate = shared.NumericToDecimal(rate)
		item.Amount = shared.NumericToDecimal(amount)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) listShippingCartons(ctx context.Context, invoiceID int64) ([]ShippingCarton, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, carton_name, quantity
		FROM shipping_cartons WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cartons []ShippingCarton
	for rows.Next() {
		var sc ShippingCarton
		if err := rows.Scan(&sc.ID, &sc.InvoiceID, &sc.CartonName, &sc.Quantity); err != nil {
			return nil, err
		}
		cartons = append(cartons, sc)
	}
	return cartons, rows.Err()
}
