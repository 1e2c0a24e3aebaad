package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyager-erp/voyager-erp/internal/ledger"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error)
	CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error)
	ListOpenOrders(ctx context.Context, itemCode string) ([]Order, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates sales fulfillment.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	ledgerCache *ledger.Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, ledgerCache *ledger.Cache) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, ledgerCache: ledgerCache}
}

// CreateInvoice runs the full fulfillment flow in a single transaction:
// carton pre-check, header and line inserts, carton and item stock
// decrements, DEBIT ledger entries, oldest-first order allocation and the
// customer running totals. Any failure after the pre-check rolls the whole
// flow back.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if len(input.Items) == 0 {
		return Invoice{}, fmt.Errorf("%w: at least one line item required", shared.ErrValidation)
	}
	number := strings.TrimSpace(input.Number)
	if number == "" {
		number = fmt.Sprintf("INV-%s", strings.ToUpper(uuid.NewString()[:8]))
	}
	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = time.Now().UTC()
	}

	insertedKey := false
	idemKey := fmt.Sprintf("sales:invoice:%s", number)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "sales"); err != nil {
			return Invoice{}, err
		}
		insertedKey = true
	}

	var created Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Step 1: carton pre-check, before anything is written.
		if err := s.checkCartonStock(ctx, tx, input.Cartons); err != nil {
			return err
		}

		// Step 2: header; the unpaid balance starts at the grand total.
		inv := Invoice{
			Number:          number,
			CustomerID:      input.CustomerID,
			InvoiceDate:     invoiceDate,
			GrandTotal:      input.GrandTotal,
			RemainingAmount: input.GrandTotal,
			ReferenceNo1:    input.ReferenceNo1,
			ReferenceNo2:    input.ReferenceNo2,
			Note:            input.Note,
			Actor:           input.Actor,
		}
		invoiceID, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = invoiceID

		// Step 3: lines, verbatim.
		for _, line := range input.Items {
			item := InvoiceItem{
				InvoiceID: invoiceID,
				ItemCode:  line.ItemCode,
				Finish:    line.Finish,
				TotalPcs:  line.TotalPcs,
				NetKg:     line.NetKg,
				Rate:      line.Rate,
				Amount:    line.Amount,
			}
			itemID, err := tx.InsertInvoiceItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			inv.Items = append(inv.Items, item)
		}

		// Step 4: shipping cartons, then consume packaging stock.
		for _, usage := range input.Cartons {
			sc := ShippingCarton{InvoiceID: invoiceID, CartonName: usage.CartonName, Quantity: usage.Quantity}
			scID, err := tx.InsertShippingCarton(ctx, sc)
			if err != nil {
				return err
			}
			sc.ID = scID
			inv.Cartons = append(inv.Cartons, sc)
		}
		for name, count := range aggregateCartons(input.Cartons) {
			if err := tx.ConsumeCarton(ctx, name, count); err != nil {
				return err
			}
		}

		// Step 5: item stock out, ledger entry after each stock update.
		for _, line := range input.Items {
			if err := tx.AdjustItemStock(ctx, line.ItemCode, -line.TotalPcs, line.NetKg.Neg()); err != nil {
				return err
			}
			movement := ledger.Movement{
				ItemCode:      line.ItemCode,
				Direction:     ledger.DirectionDebit,
				Source:        ledger.SourceSales,
				InvoiceNumber: number,
				QtyPcs:        line.TotalPcs,
				QtyKg:         line.NetKg,
				MovedAt:       invoiceDate,
				Note:          line.Finish,
				Actor:         input.Actor,
			}
			if err := tx.RecordMovement(ctx, movement); err != nil {
				return err
			}
		}

		// Step 6: allocate invoiced quantity across open orders, oldest first.
		for _, line := range input.Items {
			if line.TotalPcs <= 0 {
				continue
			}
			if err := allocateOrders(ctx, tx, line.ItemCode, line.Finish, line.TotalPcs); err != nil {
				return err
			}
		}

		// Step 7: customer running totals; unknown customers are a no-op.
		if _, err := tx.AddCustomerActivity(ctx, input.CustomerID, input.GrandTotal, input.ReferenceNo1, input.ReferenceNo2); err != nil {
			return err
		}

		created = inv
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Invoice{}, err
	}

	s.ledgerCache.Invalidate(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "sales:invoice:create",
			Entity:   "invoice",
			EntityID: number,
			Meta: map[string]any{
				"customer_id": input.CustomerID,
				"grand_total": input.GrandTotal.String(),
				"lines":       len(input.Items),
			},
		})
	}
	return created, nil
}

// DeleteInvoice removes an invoice; its items, cartons and ledger entries go
// with it. Stock and order allocations are not replayed in reverse.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.DeleteInvoice(ctx, id)
		if err != nil {
			return err
		}
		return tx.DeleteMovementsByInvoice(ctx, number)
	})
	if err != nil {
		return err
	}
	s.ledgerCache.Invalidate(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "sales:invoice:delete",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// GetInvoice returns one invoice aggregate.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices lists invoice headers.
func (s *Service) ListInvoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, customerID, limit)
}

// CreateOrder registers a sales order line for later fulfillment.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if input.QtyPcs <= 0 {
		return Order{}, fmt.Errorf("%w: order quantity must be positive", shared.ErrValidation)
	}
	if strings.TrimSpace(input.OrderNo) == "" {
		input.OrderNo = fmt.Sprintf("SO-%s", strings.ToUpper(uuid.NewString()[:8]))
	}
	return s.repo.CreateOrder(ctx, input)
}

// ListOpenOrders lists open order lines.
func (s *Service) ListOpenOrders(ctx context.Context, itemCode string) ([]Order, error) {
	return s.repo.ListOpenOrders(ctx, itemCode)
}

// checkCartonStock aggregates requested counts per carton and verifies
// availability. Nothing is mutated here.
func (s *Service) checkCartonStock(ctx context.Context, tx TxRepository, usages []CartonUsageInput) error {
	requested := aggregateCartons(usages)
	if len(requested) == 0 {
		return nil
	}
	names := make([]string, 0, len(requested))
	for name := range requested {
		names = append(names, name)
	}
	available, err := tx.CartonQuantities(ctx, names)
	if err != nil {
		return err
	}
	for name, required := range requested {
		have, ok := available[name]
		if !ok {
			return &InsufficientCartonStockError{Carton: name, Required: required, Available: 0}
		}
		if required > have {
			return &InsufficientCartonStockError{Carton: name, Required: required, Available: have}
		}
	}
	return nil
}

// allocateOrders walks locked open orders oldest-first, subtracting from each
// until the invoiced quantity is exhausted. Running out of order quantity
// fails the whole transaction.
func allocateOrders(ctx context.Context, tx TxRepository, itemCode, finish string, totalPcs int64) error {
	orders, err := tx.OpenOrdersForUpdate(ctx, itemCode, finish)
	if err != nil {
		return err
	}
	remaining := totalPcs
	for _, order := range orders {
		if remaining <= 0 {
			break
		}
		take := remaining
		if take > order.QtyPcs {
			take = order.QtyPcs
		}
		status := OrderStatusPartial
		if take == order.QtyPcs {
			status = OrderStatusInvoiced
		}
		if err := tx.TakeFromOrder(ctx, order.ID, take, status); err != nil {
			return err
		}
		remaining -= take
	}
	if remaining > 0 {
		return &InsufficientOrderQuantityError{ItemCode: itemCode, Finish: finish, Shortfall: remaining}
	}
	return nil
}

func aggregateCartons(usages []CartonUsageInput) map[string]int64 {
	counts := make(map[string]int64, len(usages))
	for _, usage := range usages {
		counts[usage.CartonName] += usage.Quantity
	}
	return counts
}
