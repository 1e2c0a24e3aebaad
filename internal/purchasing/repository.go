package purchasing

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

// Repository provides PostgreSQL backed persistence for purchasing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations of the receipt flow.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error)
	ItemExists(ctx context.Context, itemCode string) (bool, error)
	AdjustItemStock(ctx context.Context, itemCode string, deltaPcs int64, deltaKg decimal.Decimal) error
	RecordMovement(ctx context.Context, m ledger.Movement) error
	AddSupplierActivity(ctx context.Context, supplierID int64, amount decimal.Decimal) (bool, error)
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
		INSERT INTO purchase_invoices (number, supplier_id, invoice_date, grand_total, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`,
		inv.Number, inv.SupplierID, inv.InvoiceDate,
		shared.DecimalToNumeric(inv.GrandTotal), inv.Note, inv.Actor,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.ErrConflict
		}
		return 0, fmt.Errorf("purchasing: insert invoice: %w", err)
	}
	return id, nil
}

func (t *txRepo) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO purchase_invoice_items (invoice_id, item_code, total_pcs, net_kg, rate, amount, matched)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		item.InvoiceID, item.ItemCode, item.TotalPcs,
		shared.DecimalToNumeric(item.NetKg), shared.DecimalToNumeric(item.Rate), shared.DecimalToNumeric(item.Amount),
		item.Matched,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("purchasing: insert invoice item: %w", err)
	}
	return id, nil
}

func (t *txRepo) ItemExists(ctx context.Context, itemCode string) (bool, error) {
	_, err := catalog.GetItemForUpdate(ctx, t.tx, itemCode)
	if errors.Is(err, catalog.ErrItemNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *txRepo) AdjustItemStock(ctx context.Context, itemCode string, deltaPcs int64, deltaKg decimal.Decimal) error {
	return catalog.AdjustStock(ctx, t.tx, itemCode, deltaPcs, deltaKg)
}

func (t *txRepo) RecordMovement(ctx context.Context, m ledger.Movement) error {
	_, err := ledger.Record(ctx, t.tx, m)
	return err
}

func (t *txRepo) AddSupplierActivity(ctx context.Context, supplierID int64, amount decimal.Decimal) (bool, error) {
	return contacts.AddSupplierActivity(ctx, t.tx, supplierID, amount)
}

// DeleteInvoice removes the header and returns its number; items cascade.
func (t *txRepo) DeleteInvoice(ctx context.Context, id int64) (string, error) {
	var number string
	err := t.tx.QueryRow(ctx, `DELETE FROM purchase_invoices WHERE id = $1 RETURNING number`, id).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return number, err
}

func (t *txRepo) DeleteMovementsByInvoice(ctx context.Context, invoiceNumber string) error {
	return ledger.DeleteByInvoice(ctx, t.tx, invoiceNumber)
}

// --- Pool-backed reads ---

// GetInvoice returns a purchase invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	var grandTotal pgtype.Numeric
	err := r.pool.QueryRow(ctx, `
		SELECT id, number, supplier_id, invoice_date, grand_total, note, actor, created_at
		FROM purchase_invoices WHERE id=$1`, id).
		Scan(&inv.ID, &inv.Number, &inv.SupplierID, &inv.InvoiceDate, &grandTotal, &inv.Note, &inv.Actor, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.GrandTotal = shared.NumericToDecimal(grandTotal)

	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, item_code, total_pcs, net_kg, rate, amount, matched
		FROM purchase_invoice_items WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var item InvoiceItem
		var netKg, rate, amount pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ItemCode, &item.TotalPcs, &netKg, &rate, &amount, &item.Matched); err != nil {
			return Invoice{}, err
		}
		item.NetKg = shared.NumericToDecimal(netKg)
		item.Rate = shared.NumericToDecimal(rate)
		item.Amount = shared.NumericToDecimal(amount)
		inv.Items = append(inv.Items, item)
	}
	return inv, rows.Err()
}

// ListInvoices returns purchase invoice headers, newest first.
func (r *Repository) ListInvoices(ctx context.Context, supplierID int64, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, number, supplier_id, invoice_date, grand_total, note, actor, created_at
		FROM purchase_invoices`
	args := []any{}
	if supplierID > 0 {
		query += ` WHERE supplier_id=$1 ORDER BY id DESC LIMIT $2`
		args = append(args, supplierID, limit)
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
		var grandTotal pgtype.Numeric
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.SupplierID, &inv.InvoiceDate, &grandTotal, &inv.Note, &inv.Actor, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.GrandTotal = shared.NumericToDecimal(grandTotal)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
