package purchasing

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
	ListInvoices(ctx context.Context, supplierID int64, limit int) ([]Invoice, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig tunes receipt behaviour.
type ServiceConfig struct {
	// StrictItemMatch fails the whole receipt when a line names an unknown
	// item code. When false such lines are stored unmatched and move no
	// stock.
	StrictItemMatch bool
}

// Service coordinates goods receipts.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	ledgerCache *ledger.Cache
	cfg         ServiceConfig
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, ledgerCache *ledger.Cache, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, ledgerCache: ledgerCache, cfg: cfg}
}

// ReceiveInvoice records a goods receipt in one transaction: header and line
// inserts, stock increments and CREDIT ledger entries for every line whose
// item code matches the master catalog, and the supplier running total.
func (s *Service) ReceiveInvoice(ctx context.Context, input ReceiveInvoiceInput) (Invoice, error) {
	if len(input.Items) == 0 {
		return Invoice{}, fmt.Errorf("%w: at least one line item required", shared.ErrValidation)
	}
	number := strings.TrimSpace(input.Number)
	if number == "" {
		number = fmt.Sprintf("PUR-%s", strings.ToUpper(uuid.NewString()[:8]))
	}
	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = time.Now().UTC()
	}

	insertedKey := false
	idemKey := fmt.Sprintf("purchasing:invoice:%s", number)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "purchasing"); err != nil {
			return Invoice{}, err
		}
		insertedKey = true
	}

	var created Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv := Invoice{
			Number:      number,
			SupplierID:  input.SupplierID,
			InvoiceDate: invoiceDate,
			GrandTotal:  input.GrandTotal,
			Note:        input.Note,
			Actor:       input.Actor,
		}
		invoiceID, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = invoiceID

		for _, line := range input.Items {
			matched, err := tx.ItemExists(ctx, line.ItemCode)
			if err != nil {
				return err
			}
			if !matched && s.cfg.StrictItemMatch {
				return &UnknownItemError{ItemCode: line.ItemCode}
			}

			item := InvoiceItem{
				InvoiceID: invoiceID,
				ItemCode:  line.ItemCode,
				TotalPcs:  line.TotalPcs,
				NetKg:     line.NetKg,
				Rate:      line.Rate,
				Amount:    line.Amount,
				Matched:   matched,
			}
			itemID, err := tx.InsertInvoiceItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			inv.Items = append(inv.Items, item)

			// Unmatched and empty lines stay on the invoice but touch no stock.
			if !matched || line.TotalPcs <= 0 {
				continue
			}
			if err := tx.AdjustItemStock(ctx, line.ItemCode, line.TotalPcs, line.NetKg); err != nil {
				return err
			}
			movement := ledger.Movement{
				ItemCode:      line.ItemCode,
				Direction:     ledger.DirectionCredit,
				Source:        ledger.SourcePurchase,
				InvoiceNumber: number,
				QtyPcs:        line.TotalPcs,
				QtyKg:         line.NetKg,
				MovedAt:       invoiceDate,
				Actor:         input.Actor,
			}
			if err := tx.RecordMovement(ctx, movement); err != nil {
				return err
			}
		}

		if _, err := tx.AddSupplierActivity(ctx, input.SupplierID, input.GrandTotal); err != nil {
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
			Action:   "purchasing:invoice:receive",
			Entity:   "purchase_invoice",
			EntityID: number,
			Meta: map[string]any{
				"supplier_id": input.SupplierID,
				"grand_total": input.GrandTotal.String(),
				"lines":       len(input.Items),
			},
		})
	}
	return created, nil
}

// DeleteInvoice removes a purchase invoice together with its ledger entries.
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
			Action:   "purchasing:invoice:delete",
			Entity:   "purchase_invoice",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// GetInvoice returns one purchase invoice aggregate.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices lists purchase invoice headers.
func (s *Service) ListInvoices(ctx context.Context, supplierID int64, limit int) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, supplierID, limit)
}
