package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyager-erp/voyager-erp/internal/platform/db"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// Repository persists contacts and their running-total detail rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a contact together with its empty detail row.
func (r *Repository) Create(ctx context.Context, input CreateContactInput) (Contact, error) {
	var contact Contact
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO contacts (name, kind, phone, address, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id, created_at`,
			input.Name, string(input.Kind), input.Phone, input.Address,
		).Scan(&contact.ID, &contact.CreatedAt)
		if err != nil {
			return err
		}
		switch input.Kind {
		case KindCustomer:
			_, err = tx.Exec(ctx, `INSERT INTO customer_details (contact_id, total_amount, no_1, no_2) VALUES ($1, 0, 0, 0)`, contact.ID)
		case KindSupplier:
			_, err = tx.Exec(ctx, `INSERT INTO supplier_details (contact_id, total_amount) VALUES ($1, 0)`, contact.ID)
		}
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Contact{}, shared.ErrConflict
		}
		return Contact{}, err
	}
	contact.Name = input.Name
	contact.Kind = input.Kind
	contact.Phone = input.Phone
	contact.Address = input.Address
	return contact, nil
}

// Get fetches one contact.
func (r *Repository) Get(ctx context.Context, id int64) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `SELECT id, name, kind, phone, address, created_at FROM contacts WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Kind, &c.Phone, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return c, err
}

// List returns contacts filtered by kind when given.
func (r *Repository) List(ctx context.Context, kind Kind) ([]Contact, error) {
	query := `SELECT id, name, kind, phone, address, created_at FROM contacts`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind=$1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// GetCustomerDetails returns the customer's running totals.
func (r *Repository) GetCustomerDetails(ctx context.Context, contactID int64) (CustomerDetails, error) {
	var d CustomerDetails
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT contact_id, total_amount, no_1, no_2 FROM customer_details WHERE contact_id=$1`, contactID).
		Scan(&d.ContactID, &total, &d.No1, &d.No2)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerDetails{}, ErrContactNotFound
	}
	if err != nil {
		return CustomerDetails{}, err
	}
	d.TotalAmount = shared.NumericToDecimal(total)
	return d, nil
}

// GetSupplierDetails returns the supplier's running totals.
func (r *Repository) GetSupplierDetails(ctx context.Context, contactID int64) (SupplierDetails, error) {
	var d SupplierDetails
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT contact_id, total_amount FROM supplier_details WHERE contact_id=$1`, contactID).
		Scan(&d.ContactID, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return SupplierDetails{}, ErrContactNotFound
	}
	if err != nil {
		return SupplierDetails{}, err
	}
	d.TotalAmount = shared.NumericToDecimal(total)
	return d, nil
}

// --- Transaction-scoped operations ---

// AddCustomerActivity adjusts a customer's running totals inside the caller's
// transaction. Deltas may be negative (receipts reduce the total). Returns
// false without error when no customer detail row exists; engine flows treat
// an unknown customer as a no-op, matching the invoice flows' contract.
func AddCustomerActivity(ctx context.Context, q db.Querier, customerID int64, amount decimal.Decimal, no1, no2 int64) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE customer_details
		SET total_amount = total_amount + $2, no_1 = no_1 + $3, no_2 = no_2 + $4
		WHERE contact_id = $1`,
		customerID, shared.DecimalToNumeric(amount), no1, no2)
	if err != nil {
		return false, fmt.Errorf("contacts: customer activity %d: %w", customerID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddSupplierActivity adjusts a supplier's running total inside the caller's
// transaction; unknown suppliers are a silent no-op.
func AddSupplierActivity(ctx context.Context, q db.Querier, supplierID int64, amount decimal.Decimal) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE supplier_details SET total_amount = total_amount + $2 WHERE contact_id = $1`,
		supplierID, shared.DecimalToNumeric(amount))
	if err != nil {
		return false, fmt.Errorf("contacts: supplier activity %d: %w", supplierID, err)
	}
	return tag.RowsAffected() > 0, nil
}
