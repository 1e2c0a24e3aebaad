package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyager-erp/voyager-erp/internal/platform/db"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// Repository persists accounts and their history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an account with its opening balance.
func (r *Repository) Create(ctx context.Context, input CreateAccountInput) (Account, error) {
	var acc Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (name, balance, created_at) VALUES ($1, $2, NOW())
		RETURNING id, created_at`,
		input.Name, shared.DecimalToNumeric(input.OpeningBalance),
	).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, shared.ErrConflict
		}
		return Account{}, err
	}
	acc.Name = input.Name
	acc.Balance = input.OpeningBalance
	return acc, nil
}

// Get fetches one account.
func (r *Repository) Get(ctx context.Context, id int64) (Account, error) {
	return getAccount(ctx, r.pool, id, false)
}

// List returns all accounts.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, balance, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accs []Account
	for rows.Next() {
		var acc Account
		var balance pgtype.Numeric
		if err := rows.Scan(&acc.ID, &acc.Name, &balance, &acc.CreatedAt); err != nil {
			return nil, err
		}
		acc.Balance = shared.NumericToDecimal(balance)
		accs = append(accs, acc)
	}
	return accs, rows.Err()
}

// ListHistory returns an account's history, newest first.
func (r *Repository) ListHistory(ctx context.Context, accountID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, direction, amount, balance_after, ref_kind, ref_id, occurred_at
		FROM account_history WHERE account_id=$1 ORDER BY id DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var amount, after pgtype.Numeric
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Direction, &amount, &after, &e.RefKind, &e.RefID, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Amount = shared.NumericToDecimal(amount)
		e.BalanceAfter = shared.NumericToDecimal(after)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Transaction-scoped operations ---

// GetForUpdate locks and returns an account row inside the caller's transaction.
func GetForUpdate(ctx context.Context, q db.Querier, id int64) (Account, error) {
	return getAccount(ctx, q, id, true)
}

// AdjustBalance applies a signed delta to an account balance and returns the
// balance after the change.
func AdjustBalance(ctx context.Context, q db.Querier, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var after pgtype.Numeric
	err := q.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $2 WHERE id = $1 RETURNING balance`,
		id, shared.DecimalToNumeric(delta)).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("accounts: adjust balance %d: %w", id, err)
	}
	return shared.NumericToDecimal(after), nil
}

// RecordHistory appends a history row inside the caller's transaction.
func RecordHistory(ctx context.Context, q db.Querier, e HistoryEntry) (int64, error) {
	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO account_history (account_id, direction, amount, balance_after, ref_kind, ref_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.AccountID, string(e.Direction), shared.DecimalToNumeric(e.Amount),
		shared.DecimalToNumeric(e.BalanceAfter), e.RefKind, e.RefID, occurredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("accounts: record history: %w", err)
	}
	return id, nil
}

// DeleteHistoryByRef removes the history row written for a deleted document.
func DeleteHistoryByRef(ctx context.Context, q db.Querier, refKind string, refID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM account_history WHERE ref_kind=$1 AND ref_id=$2`, refKind, refID)
	return err
}

func getAccount(ctx context.Context, q db.Querier, id int64, forUpdate bool) (Account, error) {
	query := `SELECT id, name, balance, created_at FROM accounts WHERE id=$1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var acc Account
	var balance pgtype.Numeric
	err := q.QueryRow(ctx, query, id).Scan(&acc.ID, &acc.Name, &balance, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	acc.Balance = shared.NumericToDecimal(balance)
	return acc, nil
}
