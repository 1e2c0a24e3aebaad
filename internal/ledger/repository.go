package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyager-erp/voyager-erp/internal/platform/db"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// Record appends one movement row. It takes a Querier so callers can run it on
// the same transaction that mutated master stock; the ledger row is always
// written after the stock update it describes.
func Record(ctx context.Context, q db.Querier, m Movement) (int64, error) {
	movedAt := m.MovedAt
	if movedAt.IsZero() {
		movedAt = time.Now().UTC()
	}
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO stock_history (item_code, direction, source, invoice_number, qty_pcs, qty_kg, moved_at, note, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		m.ItemCode, string(m.Direction), string(m.Source), m.InvoiceNumber,
		m.QtyPcs, shared.DecimalToNumeric(m.QtyKg), movedAt, m.Note, m.Actor,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: record movement: %w", err)
	}
	return id, nil
}

// DeleteByInvoice removes the movements that belong to a deleted invoice.
// This is the only sanctioned delete path for ledger rows.
func DeleteByInvoice(ctx context.Context, q db.Querier, invoiceNumber string) error {
	_, err := q.Exec(ctx, `DELETE FROM stock_history WHERE invoice_number=$1`, invoiceNumber)
	return err
}

// Repository serves read access to the stock ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns movements matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `
		SELECT id, item_code, direction, source, invoice_number, qty_pcs, qty_kg, moved_at, note, actor
		FROM stock_history
		WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.ItemCode != "" {
		query += fmt.Sprintf(" AND item_code = $%d", argNum)
		args = append(args, filter.ItemCode)
		argNum++
	}
	if filter.InvoiceNumber != "" {
		query += fmt.Sprintf(" AND invoice_number = $%d", argNum)
		args = append(args, filter.InvoiceNumber)
		argNum++
	}
	if filter.Direction != "" {
		query += fmt.Sprintf(" AND direction = $%d", argNum)
		args = append(args, string(filter.Direction))
		argNum++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND moved_at >= $%d", argNum)
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND moved_at <= $%d", argNum)
		args = append(args, filter.To)
		argNum++
	}

	query += " ORDER BY id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var qtyKg pgtype.Numeric
		if err := rows.Scan(&m.ID, &m.ItemCode, &m.Direction, &m.Source, &m.InvoiceNumber, &m.QtyPcs, &qtyKg, &m.MovedAt, &m.Note, &m.Actor); err != nil {
			return nil, err
		}
		m.QtyKg = shared.NumericToDecimal(qtyKg)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// SumItem returns the signed ledger totals (CREDIT minus DEBIT) for one item.
func (r *Repository) SumItem(ctx context.Context, itemCode string) (int64, decimal.Decimal, error) {
	var pcs int64
	var kg pgtype.Numeric
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN direction='CREDIT' THEN qty_pcs ELSE -qty_pcs END), 0),
			COALESCE(SUM(CASE WHEN direction='CREDIT' THEN qty_kg ELSE -qty_kg END), 0)
		FROM stock_history WHERE item_code=$1`, itemCode).Scan(&pcs, &kg)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return pcs, shared.NumericToDecimal(kg), nil
}
