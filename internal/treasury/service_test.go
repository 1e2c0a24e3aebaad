package treasury

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voyager-erp/voyager-erp/internal/accounts"
)

type memoryInvoice struct {
	id        int64
	customer  int64
	remaining decimal.Decimal
}

type memoryState struct {
	invoices       []memoryInvoice
	receipts       map[int64]Receipt
	payments       map[int64]Payment
	allocations    []Allocation
	balances       map[int64]decimal.Decimal
	history        []accounts.HistoryEntry
	customerTotals map[int64]decimal.Decimal
	customerNo1    map[int64]int64
	customerNo2    map[int64]int64
	supplierTotals map[int64]decimal.Decimal
	nextID         int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		invoices:       make([]memoryInvoice, len(s.invoices)),
		receipts:       make(map[int64]Receipt, len(s.receipts)),
		payments:       make(map[int64]Payment, len(s.payments)),
		allocations:    make([]Allocation, len(s.allocations)),
		balances:       make(map[int64]decimal.Decimal, len(s.balances)),
		history:        make([]accounts.HistoryEntry, len(s.history)),
		customerTotals: make(map[int64]decimal.Decimal, len(s.customerTotals)),
		customerNo1:    make(map[int64]int64, len(s.customerNo1)),
		customerNo2:    make(map[int64]int64, len(s.customerNo2)),
		supplierTotals: make(map[int64]decimal.Decimal, len(s.supplierTotals)),
		nextID:         s.nextID,
	}
	copy(c.invoices, s.invoices)
	for k, v := range s.receipts {
		c.receipts[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	copy(c.allocations, s.allocations)
	for k, v := range s.balances {
		c.balances[k] = v
	}
	copy(c.history, s.history)
	for k, v := range s.customerTotals {
		c.customerTotals[k] = v
	}
	for k, v := range s.customerNo1 {
		c.customerNo1[k] = v
	}
	for k, v := range s.customerNo2 {
		c.customerNo2[k] = v
	}
	for k, v := range s.supplierTotals {
		c.supplierTotals[k] = v
	}
	return c
}

type memoryRepo struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		receipts:       make(map[int64]Receipt),
		payments:       make(map[int64]Payment),
		balances:       make(map[int64]decimal.Decimal),
		customerTotals: make(map[int64]decimal.Decimal),
		customerNo1:    make(map[int64]int64),
		customerNo2:    make(map[int64]int64),
		supplierTotals: make(map[int64]decimal.Decimal),
	}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

func (r *memoryRepo) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	rec, ok := r.state.receipts[id]
	if !ok {
		return Receipt{}, ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepo) ListReceipts(ctx context.Context, customerID int64, limit int) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range r.state.receipts {
		if customerID == 0 || rec.CustomerID == customerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, supplierID int64, limit int) ([]Payment, error) {
	var out []Payment
	for _, p := range r.state.payments {
		if supplierID == 0 || p.SupplierID == supplierID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) InsertReceipt(ctx context.Context, rec Receipt) (int64, error) {
	t.state.nextID++
	rec.ID = t.state.nextID
	t.state.receipts[rec.ID] = rec
	return rec.ID, nil
}

func (t *memoryTx) InsertAllocation(ctx context.Context, a Allocation) (int64, error) {
	t.state.nextID++
	a.ID = t.state.nextID
	t.state.allocations = append(t.state.allocations, a)
	return a.ID, nil
}

// OpenInvoicesForUpdate returns invoices newest-first, like the SQL ORDER BY
// id DESC.
func (t *memoryTx) OpenInvoicesForUpdate(ctx context.Context, customerID int64) ([]OpenInvoice, error) {
	var out []OpenInvoice
	for i := len(t.state.invoices) - 1; i >= 0; i-- {
		inv := t.state.invoices[i]
		if inv.customer == customerID && inv.remaining.IsPositive() {
			out = append(out, OpenInvoice{ID: inv.id, RemainingAmount: inv.remaining})
		}
	}
	return out, nil
}

func (t *memoryTx) ReduceInvoiceRemaining(ctx context.Context, invoiceID int64, amount decimal.Decimal) error {
	for i := range t.state.invoices {
		if t.state.invoices[i].id == invoiceID {
			t.state.invoices[i].remaining = t.state.invoices[i].remaining.Sub(amount)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) RestoreInvoiceRemaining(ctx context.Context, invoiceID int64, amount decimal.Decimal) error {
	for i := range t.state.invoices {
		if t.state.invoices[i].id == invoiceID {
			t.state.invoices[i].remaining = t.state.invoices[i].remaining.Add(amount)
		}
	}
	return nil
}

func (t *memoryTx) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	rec, ok := t.state.receipts[id]
	if !ok {
		return Receipt{}, ErrNotFound
	}
	rec.Allocations = nil
	for _, a := range t.state.allocations {
		if a.ReceiptID == id {
			rec.Allocations = append(rec.Allocations, a)
		}
	}
	return rec, nil
}

func (t *memoryTx) DeleteReceipt(ctx context.Context, id int64) error {
	if _, ok := t.state.receipts[id]; !ok {
		return ErrNotFound
	}
	delete(t.state.receipts, id)
	kept := t.state.allocations[:0]
	for _, a := range t.state.allocations {
		if a.ReceiptID != id {
			kept = append(kept, a)
		}
	}
	t.state.allocations = kept
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	t.state.nextID++
	p.ID = t.state.nextID
	t.state.payments[p.ID] = p
	return p.ID, nil
}

func (t *memoryTx) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	p, ok := t.state.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (t *memoryTx) DeletePayment(ctx context.Context, id int64) error {
	if _, ok := t.state.payments[id]; !ok {
		return ErrNotFound
	}
	delete(t.state.payments, id)
	return nil
}

func (t *memoryTx) AdjustAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	bal, ok := t.state.balances[accountID]
	if !ok {
		return decimal.Zero, accounts.ErrAccountNotFound
	}
	bal = bal.Add(delta)
	t.state.balances[accountID] = bal
	return bal, nil
}

func (t *memoryTx) RecordAccountHistory(ctx context.Context, e accounts.HistoryEntry) (int64, error) {
	t.state.nextID++
	e.ID = t.state.nextID
	t.state.history = append(t.state.history, e)
	return e.ID, nil
}

func (t *memoryTx) DeleteAccountHistoryByRef(ctx context.Context, refKind string, refID int64) error {
	kept := t.state.history[:0]
	for _, e := range t.state.history {
		if !(e.RefKind == refKind && e.RefID == refID) {
			kept = append(kept, e)
		}
	}
	t.state.history = kept
	return nil
}

func (t *memoryTx) AddCustomerActivity(ctx context.Context, customerID int64, amount decimal.Decimal, no1, no2 int64) (bool, error) {
	total, ok := t.state.customerTotals[customerID]
	if !ok {
		return false, nil
	}
	t.state.customerTotals[customerID] = total.Add(amount)
	t.state.customerNo1[customerID] += no1
	t.state.customerNo2[customerID] += no2
	return true, nil
}

func (t *memoryTx) AddSupplierActivity(ctx context.Context, supplierID int64, amount decimal.Decimal) (bool, error) {
	total, ok := t.state.supplierTotals[supplierID]
	if !ok {
		return false, nil
	}
	t.state.supplierTotals[supplierID] = total.Add(amount)
	return true, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.state.balances[1] = dec("1000")
	repo.state.customerTotals[5] = dec("150")
	repo.state.supplierTotals[7] = dec("400")
	// Invoice 10 is older than invoice 11.
	repo.state.invoices = []memoryInvoice{
		{id: 10, customer: 5, remaining: dec("50")},
		{id: 11, customer: 5, remaining: dec("100")},
	}
	repo.state.nextID = 20
	return repo
}

func (r *memoryRepo) invoiceRemaining(id int64) decimal.Decimal {
	for _, inv := range r.state.invoices {
		if inv.id == id {
			return inv.remaining
		}
	}
	return decimal.Zero
}

func TestApplyReceiptCascadesNewestFirst(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	res, err := svc.ApplyReceipt(context.Background(), ApplyReceiptInput{
		ReceiptNo:  "RCP-001",
		CustomerID: 5,
		AccountID:  1,
		Amount:     dec("120"),
	})
	require.NoError(t, err)

	// Newest invoice (11, 100) zeroed first, then 20 against the older one.
	require.True(t, repo.invoiceRemaining(11).IsZero())
	require.True(t, repo.invoiceRemaining(10).Equal(dec("30")))
	require.True(t, res.AppliedAmount.Equal(dec("120")))
	require.True(t, res.UnappliedAmount.IsZero())

	require.Len(t, res.Receipt.Allocations, 2)
	require.EqualValues(t, 11, res.Receipt.Allocations[0].InvoiceID)
	require.True(t, res.Receipt.Allocations[0].Amount.Equal(dec("100")))
	require.EqualValues(t, 10, res.Receipt.Allocations[1].InvoiceID)
	require.True(t, res.Receipt.Allocations[1].Amount.Equal(dec("20")))

	require.True(t, repo.state.balances[1].Equal(dec("1120")))
	require.Len(t, repo.state.history, 1)
	require.Equal(t, accounts.HistoryDebit, repo.state.history[0].Direction)
	require.True(t, repo.state.history[0].BalanceAfter.Equal(dec("1120")))

	require.True(t, repo.state.customerTotals[5].Equal(dec("30")))
}

func TestApplyReceiptSurplusIsReportedNotPersisted(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	res, err := svc.ApplyReceipt(context.Background(), ApplyReceiptInput{
		CustomerID: 5,
		AccountID:  1,
		Amount:     dec("200"),
	})
	require.NoError(t, err)

	require.True(t, repo.invoiceRemaining(10).IsZero())
	require.True(t, repo.invoiceRemaining(11).IsZero())
	require.True(t, res.AppliedAmount.Equal(dec("150")))
	require.True(t, res.UnappliedAmount.Equal(dec("50")))

	// The full amount still lands on the account.
	require.True(t, repo.state.balances[1].Equal(dec("1200")))

	// No allocation row carries the surplus.
	var allocated decimal.Decimal
	for _, a := range repo.state.allocations {
		allocated = allocated.Add(a.Amount)
	}
	require.True(t, allocated.Equal(dec("150")))
}

func TestApplyReceiptNoOpenInvoices(t *testing.T) {
	repo := seedRepo()
	repo.state.invoices = nil
	svc := NewService(repo, nil, nil, ServiceConfig{})

	res, err := svc.ApplyReceipt(context.Background(), ApplyReceiptInput{
		CustomerID: 5,
		AccountID:  1,
		Amount:     dec("75"),
	})
	require.NoError(t, err)
	require.True(t, res.UnappliedAmount.Equal(dec("75")))
	require.Empty(t, repo.state.allocations)
	require.True(t, repo.state.balances[1].Equal(dec("1075")))
}

func TestApplyReceiptRefAccountTicksCounter(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{RefAccount1: 1, RefAccount2: 2})

	_, err := svc.ApplyReceipt(context.Background(), ApplyReceiptInput{
		CustomerID: 5,
		AccountID:  1,
		Amount:     dec("10"),
	})
	require.NoError(t, err)
	require.EqualValues(t, -1, repo.state.customerNo1[5])
	require.EqualValues(t, 0, repo.state.customerNo2[5])
}

func TestApplyReceiptUnknownAccountRollsBack(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.ApplyReceipt(context.Background(), ApplyReceiptInput{
		CustomerID: 5,
		AccountID:  99,
		Amount:     dec("120"),
	})
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)

	// Invoice reductions staged before the failure are rolled back.
	require.True(t, repo.invoiceRemaining(11).Equal(dec("100")))
	require.True(t, repo.invoiceRemaining(10).Equal(dec("50")))
	require.Empty(t, repo.state.receipts)
	require.Empty(t, repo.state.allocations)
}

func TestApplyReceiptRejectsNonPositiveAmount(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.ApplyReceipt(context.Background(), ApplyReceiptInput{CustomerID: 5, AccountID: 1, Amount: decimal.Zero})
	require.Error(t, err)
}

func TestDeleteReceiptRestoresEverything(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{RefAccount1: 1})

	res, err := svc.ApplyReceipt(context.Background(), ApplyReceiptInput{
		CustomerID: 5,
		AccountID:  1,
		Amount:     dec("120"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReceipt(context.Background(), res.Receipt.ID))

	require.True(t, repo.invoiceRemaining(11).Equal(dec("100")))
	require.True(t, repo.invoiceRemaining(10).Equal(dec("50")))
	require.True(t, repo.state.balances[1].Equal(dec("1000")))
	require.Empty(t, repo.state.history)
	require.True(t, repo.state.customerTotals[5].Equal(dec("150")))
	require.EqualValues(t, 0, repo.state.customerNo1[5])
	require.Empty(t, repo.state.receipts)
	require.Empty(t, repo.state.allocations)
}

func TestApplyPaymentMovesBalance(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	p, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		PaymentNo:  "PAY-001",
		SupplierID: 7,
		AccountID:  1,
		Amount:     dec("250"),
	})
	require.NoError(t, err)
	require.Equal(t, "PAY-001", p.PaymentNo)

	require.True(t, repo.state.balances[1].Equal(dec("750")))
	require.Len(t, repo.state.history, 1)
	require.Equal(t, accounts.HistoryCredit, repo.state.history[0].Direction)
	require.True(t, repo.state.history[0].BalanceAfter.Equal(dec("750")))
	require.True(t, repo.state.supplierTotals[7].Equal(dec("150")))
}

func TestDeletePaymentRestoresEverything(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	p, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		SupplierID: 7,
		AccountID:  1,
		Amount:     dec("250"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePayment(context.Background(), p.ID))
	require.True(t, repo.state.balances[1].Equal(dec("1000")))
	require.Empty(t, repo.state.history)
	require.True(t, repo.state.supplierTotals[7].Equal(dec("400")))
	require.Empty(t, repo.state.payments)
}
