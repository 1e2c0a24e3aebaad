package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyager-erp/voyager-erp/internal/accounts"
	"github.com/voyager-erp/voyager-erp/internal/contacts"
	"github.com/voyager-erp/voyager-erp/internal/platform/db"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for treasury.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations of the allocation flows.
type TxRepository interface {
	InsertReceipt(ctx context.Context, rec Receipt) (int64, error)
	InsertAllocation(ctx context.Context, a Allocation) (int64, error)
	OpenInvoicesForUpdate(ctx context.Context, customerID int64) ([]OpenInvoice, error)
	ReduceInvoiceRemaining(ctx context.Context, invoiceID int64, amount decimal.Decimal) error
	RestoreInvoiceRemaining(ctx context.Context, invoiceID int64, amount decimal.Decimal) error
	GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error)
	DeleteReceipt(ctx context.Context, id int64) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	AdjustAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error)
	RecordAccountHistory(ctx context.Context, e accounts.HistoryEntry) (int64, error)
	DeleteAccountHistoryByRef(ctx context.Context, refKind string, refID int64) error
	AddCustomerActivity(ctx context.Context, customerID int64, amount decimal.Decimal, no1, no2 int64) (bool, error)
	AddSupplierActivity(ctx context.Context, supplierID int64, amount decimal.Decimal) (bool, error)
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

func (t *txRepo) InsertReceipt(ctx context.Context, rec Receipt) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO receipts (receipt_no, customer_id, account_id, amount, receipt_date, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`,
		rec.ReceiptNo, rec.CustomerID, rec.AccountID, shared.DecimalToNumeric(rec.Amount),
		rec.ReceiptDate, rec.Note, rec.Actor,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.ErrConflict
		}
		return 0, fmt.Errorf("treasury: insert receipt: %w", err)
	}
	return id, nil
}

func (t *txRepo) InsertAllocation(ctx context.Context, a Allocation) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO receipt_allocations (receipt_id, invoice_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id`,
		a.ReceiptID, a.InvoiceID, shared.DecimalToNumeric(a.Amount),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("treasury: insert allocation: %w", err)
	}
	return id, nil
}

// OpenInvoicesForUpdate loads the customer's unpaid invoices newest-first,
// locked for the cascade.
func (t *txRepo) OpenInvoicesForUpdate(ctx context.Context, customerID int64) ([]OpenInvoice, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, number, remaining_amount
		FROM invoices
		WHERE customer_id = $1 AND remaining_amount > 0
		ORDER BY id DESC
		FOR UPDATE`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []OpenInvoice
	for rows.Next() {
		var inv OpenInvoice
		var remaining pgtype.Numeric
		if err := rows.Scan(&inv.ID, &inv.Number, &remaining); err != nil {
			return nil, err
		}
		inv.RemainingAmount = shared.NumericToDecimal(remaining)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (t *txRepo) ReduceInvoiceRemaining(ctx context.Context, invoiceID int64, amount decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices SET remaining_amount = remaining_amount - $2 WHERE id = $1`,
		invoiceID, shared.DecimalToNumeric(amount))
	if err != nil {
		return fmt.Errorf("treasury: reduce invoice %d: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) RestoreInvoiceRemaining(ctx context.Context, invoiceID int64, amount decimal.Decimal) error {
	// Deliberately tolerant of the invoice being gone: receipts may outlive
	// deleted invoices.
	_, err := t.tx.Exec(ctx, `
		UPDATE invoices SET remaining_amount = remaining_amount + $2 WHERE id = $1`,
		invoiceID, shared.DecimalToNumeric(amount))
	return err
}

func (t *txRepo) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	var rec Receipt
	var amount pgtype.Numeric
	err := t.tx.QueryRow(ctx, `
		SELECT id, receipt_no, customer_id, account_id, amount, receipt_date, note, actor, created_at
		FROM receipts WHERE id = $1 FOR UPDATE`, id).
		Scan(&rec.ID, &rec.ReceiptNo, &rec.CustomerID, &rec.AccountID, &amount,
			&rec.ReceiptDate, &rec.Note, &rec.Actor, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	if err != nil {
		return Receipt{}, err
	}
	rec.Amount = shared.NumericToDecimal(amount)

	rows, err := t.tx.Query(ctx, `
		SELECT id, receipt_id, invoice_id, amount
		FROM receipt_allocations WHERE receipt_id = $1 ORDER BY id`, id)
	if err != nil {
		return Receipt{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var a Allocation
		var allocAmount pgtype.Numeric
		if err := rows.Scan(&a.ID, &a.ReceiptID, &a.InvoiceID, &allocAmount); err != nil {
			return Receipt{}, err
		}
		a.Amount = shared.NumericToDecimal(allocAmount)
		rec.Allocations = append(rec.Allocations, a)
	}
	return rec, rows.Err()
}

// DeleteReceipt removes the receipt row; allocations cascade.
func (t *txRepo) DeleteReceipt(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM receipts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments (payment_no, supplier_id, account_id, amount, payment_date, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`,
		p.PaymentNo, p.SupplierID, p.AccountID, shared.DecimalToNumeric(p.Amount),
		p.PaymentDate, p.Note, p.Actor,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.ErrConflict
		}
		return 0, fmt.Errorf("treasury: insert payment: %w", err)
	}
	return id, nil
}

func (t *txRepo) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	var amount pgtype.Numeric
	err := t.tx.QueryRow(ctx, `
		SELECT id, payment_no, supplier_id, account_id, amount, payment_date, note, actor, created_at
		FROM payments WHERE id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.PaymentNo, &p.SupplierID, &p.AccountID, &amount,
			&p.PaymentDate, &p.Note, &p.Actor, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Amount = shared.NumericToDecimal(amount)
	return p, nil
}

func (t *txRepo) DeletePayment(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AdjustAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	return accounts.AdjustBalance(ctx, t.tx, accountID, delta)
}

func (t *txRepo) RecordAccountHistory(ctx context.Context, e accounts.HistoryEntry) (int64, error) {
	return accounts.RecordHistory(ctx, t.tx, e)
}

func (t *txRepo) DeleteAccountHistoryByRef(ctx context.Context, refKind string, refID int64) error {
	return accounts.DeleteHistoryByRef(ctx, t.tx, refKind, refID)
}

func (t *txRepo) AddCustomerActivity(ctx context.Context, customerID int64, amount decimal.Decimal, no1, no2 int64) (bool, error) {
	return contacts.AddCustomerActivity(ctx, t.tx, customerID, amount, no1, no2)
}

func (t *txRepo) AddSupplierActivity(ctx context.Context, supplierID int64, amount decimal.Decimal) (bool, error) {
	return contacts.AddSupplierActivity(ctx, t.tx, supplierID, amount)
}

// --- Pool-backed reads ---

// GetReceipt returns a receipt with its allocations.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	var rec Receipt
	var amount pgtype.Numeric
	err := r.pool.QueryRow(ctx, `
		SELECT id, receipt_no, customer_id, account_id, amount, receipt_date, note, actor, created_at
		FROM receipts WHERE id = $1`, id).
		Scan(&rec.ID, &rec.ReceiptNo, &rec.CustomerID, &rec.AccountID, &amount,
			&rec.ReceiptDate, &rec.Note, &rec.Actor, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	if err != nil {
		return Receipt{}, err
	}
	rec.Amount = shared.NumericToDecimal(amount)

	rows, err := r.pool.Query(ctx, `
		SELECT id, receipt_id, invoice_id, amount
		FROM receipt_allocations WHERE receipt_id = $1 ORDER BY id`, id)
	if err != nil {
		return Receipt{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var a Allocation
		var allocAmount pgtype.Numeric
		if err := rows.Scan(&a.ID, &a.ReceiptID, &a.InvoiceID, &allocAmount); err != nil {
			return Receipt{}, err
		}
		a.Amount = shared.NumericToDecimal(allocAmount)
		rec.Allocations = append(rec.Allocations, a)
	}
	return rec, rows.Err()
}

// ListReceipts returns receipts, newest first, optionally by customer.
func (r *Repository) ListReceipts(ctx context.Context, customerID int64, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, receipt_no, customer_id, account_id, amount, receipt_date, note, actor, created_at
		FROM receipts`
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

	var receipts []Receipt
	for rows.Next() {
		var rec Receipt
		var amount pgtype.Numeric
		if err := rows.Scan(&rec.ID, &rec.ReceiptNo, &rec.CustomerID, &rec.AccountID, &amount,
			&rec.ReceiptDate, &rec.Note, &rec.Actor, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Amount = shared.NumericToDecimal(amount)
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}

// ListPayments returns payments, newest first, optionally by supplier.
func (r *Repository) ListPayments(ctx context.Context, supplierID int64, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, payment_no, supplier_id, account_id, amount, payment_date, note, actor, created_at
		FROM payments`
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

	var payments []Payment
	for rows.Next() {
		var p Payment
		var amount pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.PaymentNo, &p.SupplierID, &p.AccountID, &amount,
			&p.PaymentDate, &p.Note, &p.Actor, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount = shared.NumericToDecimal(amount)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
