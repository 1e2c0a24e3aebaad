package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// LedgerPort abstracts ledger reads used by the service.
type LedgerPort interface {
	List(ctx context.Context, filter MovementFilter) ([]Movement, error)
	SumItem(ctx context.Context, itemCode string) (int64, decimal.Decimal, error)
}

// BalancePort exposes the master-stock balances the reconciliation compares against.
type BalancePort interface {
	ListItemBalances(ctx context.Context) ([]ItemBalance, error)
}

// Service serves ledger reads and the ledger/stock reconciliation check.
type Service struct {
	repo     LedgerPort
	balances BalancePort
}

// NewService builds Service.
func NewService(repo LedgerPort, balances BalancePort) *Service {
	return &Service{repo: repo, balances: balances}
}

// ListMovements lists ledger entries.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.List(ctx, filter)
}

// Reconcile verifies, for every item, that the signed ledger total equals the
// net stock delta applied to master stock since the ledger was empty. The sum
// per item runs concurrently with bounded parallelism.
func (s *Service) Reconcile(ctx context.Context) ([]ReconciliationRow, error) {
	balances, err := s.balances.ListItemBalances(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	rows := make([]ReconciliationRow, 0, len(balances))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, bal := range balances {
		g.Go(func() error {
			pcs, kg, err := s.repo.SumItem(ctx, bal.ItemCode)
			if err != nil {
				return err
			}
			deltaPcs := bal.StockPcs - bal.OpeningPcs
			deltaKg := bal.StockKg.Sub(bal.OpeningKg)
			row := ReconciliationRow{
				ItemCode:     bal.ItemCode,
				LedgerPcs:    pcs,
				LedgerKg:     kg,
				StockDeltaP:  deltaPcs,
				StockDeltaKg: deltaKg,
				DriftPcs:     pcs - deltaPcs,
				DriftKg:      kg.Sub(deltaKg),
			}
			mu.Lock()
			rows = append(rows, row)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemCode < rows[j].ItemCode })
	return rows, nil
}
