package purchasing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voyager-erp/voyager-erp/internal/ledger"
)

type memoryState struct {
	stockPcs       map[string]int64
	stockKg        map[string]decimal.Decimal
	invoices       map[int64]Invoice
	movements      []ledger.Movement
	supplierTotals map[int64]decimal.Decimal
	nextID         int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		stockPcs:       make(map[string]int64, len(s.stockPcs)),
		stockKg:        make(map[string]decimal.Decimal, len(s.stockKg)),
		invoices:       make(map[int64]Invoice, len(s.invoices)),
		movements:      make([]ledger.Movement, len(s.movements)),
		supplierTotals: make(map[int64]decimal.Decimal, len(s.supplierTotals)),
		nextID:         s.nextID,
	}
	for k, v := range s.stockPcs {
		c.stockPcs[k] = v
	}
	for k, v := range s.stockKg {
		c.stockKg[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	copy(c.movements, s.movements)
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
		stockPcs:       make(map[string]int64),
		stockKg:        make(map[string]decimal.Decimal),
		invoices:       make(map[int64]Invoice),
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

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := r.state.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context, supplierID int64, limit int) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.state.invoices {
		if supplierID == 0 || inv.SupplierID == supplierID {
			out = append(out, inv)
		}
	}
	return out, nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	t.state.nextID++
	inv.ID = t.state.nextID
	t.state.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *memoryTx) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	t.state.nextID++
	return t.state.nextID, nil
}

func (t *memoryTx) ItemExists(ctx context.Context, itemCode string) (bool, error) {
	_, ok := t.state.stockPcs[itemCode]
	return ok, nil
}

func (t *memoryTx) AdjustItemStock(ctx context.Context, itemCode string, deltaPcs int64, deltaKg decimal.Decimal) error {
	t.state.stockPcs[itemCode] += deltaPcs
	t.state.stockKg[itemCode] = t.state.stockKg[itemCode].Add(deltaKg)
	return nil
}

func (t *memoryTx) RecordMovement(ctx context.Context, m ledger.Movement) error {
	t.state.movements = append(t.state.movements, m)
	return nil
}

func (t *memoryTx) AddSupplierActivity(ctx context.Context, supplierID int64, amount decimal.Decimal) (bool, error) {
	total, ok := t.state.supplierTotals[supplierID]
	if !ok {
		return false, nil
	}
	t.state.supplierTotals[supplierID] = total.Add(amount)
	return true, nil
}

func (t *memoryTx) DeleteInvoice(ctx context.Context, id int64) (string, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return "", ErrNotFound
	}
	delete(t.state.invoices, id)
	return inv.Number, nil
}

func (t *memoryTx) DeleteMovementsByInvoice(ctx context.Context, invoiceNumber string) error {
	kept := t.state.movements[:0]
	for _, m := range t.state.movements {
		if m.InvoiceNumber != invoiceNumber {
			kept = append(kept, m)
		}
	}
	t.state.movements = kept
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.state.stockPcs["CU-8MM"] = 50
	repo.state.stockKg["CU-8MM"] = dec("120.0")
	repo.state.supplierTotals[7] = decimal.Zero
	return repo
}

func receiptInput(itemCodes ...string) ReceiveInvoiceInput {
	input := ReceiveInvoiceInput{
		Number:     "PUR-001",
		SupplierID: 7,
		GrandTotal: dec("3000"),
	}
	for _, code := range itemCodes {
		input.Items = append(input.Items, InvoiceItemInput{
			ItemCode: code,
			TotalPcs: 10,
			NetKg:    dec("25.0"),
			Rate:     dec("120"),
			Amount:   dec("3000"),
		})
	}
	return input
}

func TestReceiveInvoiceMovesStock(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	inv, err := svc.ReceiveInvoice(context.Background(), receiptInput("CU-8MM"))
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	require.True(t, inv.Items[0].Matched)

	require.EqualValues(t, 60, repo.state.stockPcs["CU-8MM"])
	require.True(t, repo.state.stockKg["CU-8MM"].Equal(dec("145.0")))

	require.Len(t, repo.state.movements, 1)
	m := repo.state.movements[0]
	require.Equal(t, ledger.DirectionCredit, m.Direction)
	require.Equal(t, ledger.SourcePurchase, m.Source)
	require.Equal(t, "PUR-001", m.InvoiceNumber)

	require.True(t, repo.state.supplierTotals[7].Equal(dec("3000")))
}

func TestReceiveInvoiceSkipsUnknownItems(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	inv, err := svc.ReceiveInvoice(context.Background(), receiptInput("CU-8MM", "AL-5MM"))
	require.NoError(t, err)
	require.Len(t, inv.Items, 2)
	require.True(t, inv.Items[0].Matched)
	require.False(t, inv.Items[1].Matched)

	// Only the matched line moved stock and wrote to the ledger.
	require.EqualValues(t, 60, repo.state.stockPcs["CU-8MM"])
	require.NotContains(t, repo.state.stockPcs, "AL-5MM")
	require.Len(t, repo.state.movements, 1)
}

func TestReceiveInvoiceStrictMatch(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{StrictItemMatch: true})

	_, err := svc.ReceiveInvoice(context.Background(), receiptInput("CU-8MM", "AL-5MM"))

	var unknown *UnknownItemError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "AL-5MM", unknown.ItemCode)

	// The whole receipt rolls back, including the matched line.
	require.EqualValues(t, 50, repo.state.stockPcs["CU-8MM"])
	require.Empty(t, repo.state.invoices)
	require.Empty(t, repo.state.movements)
}

func TestReceiveInvoiceUnknownSupplierIsNoop(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	input := receiptInput("CU-8MM")
	input.SupplierID = 99

	_, err := svc.ReceiveInvoice(context.Background(), input)
	require.NoError(t, err)
	require.NotContains(t, repo.state.supplierTotals, int64(99))
}

func TestReceiveInvoiceGeneratesNumber(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	input := receiptInput("CU-8MM")
	input.Number = ""

	inv, err := svc.ReceiveInvoice(context.Background(), input)
	require.NoError(t, err)
	require.Contains(t, inv.Number, "PUR-")
}

func TestDeleteInvoiceRemovesMovements(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	inv, err := svc.ReceiveInvoice(context.Background(), receiptInput("CU-8MM"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))
	require.Empty(t, repo.state.invoices)
	require.Empty(t, repo.state.movements)
}
