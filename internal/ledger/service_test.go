package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	movements []Movement
	sumErr    error
}

func (m *memoryLedger) List(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if filter.ItemCode != "" && mv.ItemCode != filter.ItemCode {
			continue
		}
		if filter.InvoiceNumber != "" && mv.InvoiceNumber != filter.InvoiceNumber {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func (m *memoryLedger) SumItem(ctx context.Context, itemCode string) (int64, decimal.Decimal, error) {
	if m.sumErr != nil {
		return 0, decimal.Zero, m.sumErr
	}
	var pcs int64
	kg := decimal.Zero
	for _, mv := range m.movements {
		if mv.ItemCode != itemCode {
			continue
		}
		switch mv.Direction {
		case DirectionCredit:
			pcs += mv.QtyPcs
			kg = kg.Add(mv.QtyKg)
		case DirectionDebit:
			pcs -= mv.QtyPcs
			kg = kg.Sub(mv.QtyKg)
		}
	}
	return pcs, kg, nil
}

type memoryBalances struct {
	balances []ItemBalance
}

func (m *memoryBalances) ListItemBalances(ctx context.Context) ([]ItemBalance, error) {
	return m.balances, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReconcileCleanLedger(t *testing.T) {
	repo := &memoryLedger{movements: []Movement{
		{ItemCode: "CU-8MM", Direction: DirectionCredit, QtyPcs: 100, QtyKg: dec("250.0")},
		{ItemCode: "CU-8MM", Direction: DirectionDebit, QtyPcs: 40, QtyKg: dec("100.0")},
	}}
	balances := &memoryBalances{balances: []ItemBalance{
		{ItemCode: "CU-8MM", StockPcs: 70, StockKg: dec("160.0"), OpeningPcs: 10, OpeningKg: dec("10.0")},
	}}
	svc := NewService(repo, balances)

	rows, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, "CU-8MM", row.ItemCode)
	require.EqualValues(t, 60, row.LedgerPcs)
	require.True(t, row.LedgerKg.Equal(dec("150.0")))
	require.EqualValues(t, 60, row.StockDeltaP)
	require.False(t, row.InDrift())
}

func TestReconcileDetectsDrift(t *testing.T) {
	repo := &memoryLedger{movements: []Movement{
		{ItemCode: "CU-8MM", Direction: DirectionCredit, QtyPcs: 100, QtyKg: dec("250.0")},
	}}
	balances := &memoryBalances{balances: []ItemBalance{
		// Stock moved by 90 but the ledger says 100.
		{ItemCode: "CU-8MM", StockPcs: 90, StockKg: dec("250.0")},
	}}
	svc := NewService(repo, balances)

	rows, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].InDrift())
	require.EqualValues(t, 10, rows[0].DriftPcs)
}

func TestReconcileSortsByItemCode(t *testing.T) {
	repo := &memoryLedger{}
	balances := &memoryBalances{balances: []ItemBalance{
		{ItemCode: "ZN-2MM"},
		{ItemCode: "AL-5MM"},
		{ItemCode: "CU-8MM"},
	}}
	svc := NewService(repo, balances)

	rows, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "AL-5MM", rows[0].ItemCode)
	require.Equal(t, "CU-8MM", rows[1].ItemCode)
	require.Equal(t, "ZN-2MM", rows[2].ItemCode)
}

func TestReconcilePropagatesErrors(t *testing.T) {
	repo := &memoryLedger{sumErr: errors.New("boom")}
	balances := &memoryBalances{balances: []ItemBalance{{ItemCode: "CU-8MM"}}}
	svc := NewService(repo, balances)

	_, err := svc.Reconcile(context.Background())
	require.Error(t, err)
}

func TestListMovementsFilters(t *testing.T) {
	repo := &memoryLedger{movements: []Movement{
		{ItemCode: "CU-8MM", InvoiceNumber: "INV-1"},
		{ItemCode: "AL-5MM", InvoiceNumber: "INV-2"},
	}}
	svc := NewService(repo, &memoryBalances{})

	rows, err := svc.ListMovements(context.Background(), MovementFilter{ItemCode: "CU-8MM"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "INV-1", rows[0].InvoiceNumber)
}
