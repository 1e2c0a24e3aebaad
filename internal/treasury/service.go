package treasury

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyager-erp/voyager-erp/internal/accounts"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, id int64) (Receipt, error)
	ListReceipts(ctx context.Context, customerID int64, limit int) ([]Receipt, error)
	ListPayments(ctx context.Context, supplierID int64, limit int) ([]Payment, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig names the two reference accounts whose receipts also tick the
// customer's no_1/no_2 counters down.
type ServiceConfig struct {
	RefAccount1 int64
	RefAccount2 int64
}

// Service coordinates money movement: receipt cascades and payments.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cfg         ServiceConfig
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, cfg: cfg}
}

// ApplyReceipt records incoming money and cascades it across the customer's
// open invoices, newest first. Each touched invoice gets an allocation row;
// any surplus is returned as UnappliedAmount and persisted nowhere.
func (s *Service) ApplyReceipt(ctx context.Context, input ApplyReceiptInput) (ReceiptResult, error) {
	if !input.Amount.IsPositive() {
		return ReceiptResult{}, fmt.Errorf("%w: receipt amount must be positive", shared.ErrValidation)
	}
	receiptNo := strings.TrimSpace(input.ReceiptNo)
	if receiptNo == "" {
		receiptNo = fmt.Sprintf("RCP-%s", strings.ToUpper(uuid.NewString()[:8]))
	}
	receiptDate := input.ReceiptDate
	if receiptDate.IsZero() {
		receiptDate = time.Now().UTC()
	}

	insertedKey := false
	idemKey := fmt.Sprintf("treasury:receipt:%s", receiptNo)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "treasury"); err != nil {
			return ReceiptResult{}, err
		}
		insertedKey = true
	}

	var result ReceiptResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec := Receipt{
			ReceiptNo:   receiptNo,
			CustomerID:  input.CustomerID,
			AccountID:   input.AccountID,
			Amount:      input.Amount,
			ReceiptDate: receiptDate,
			Note:        input.Note,
			Actor:       input.Actor,
		}
		receiptID, err := tx.InsertReceipt(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = receiptID

		invoices, err := tx.OpenInvoicesForUpdate(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		remaining := input.Amount
		for _, inv := range invoices {
			if !remaining.IsPositive() {
				break
			}
			take := remaining
			if take.GreaterThan(inv.RemainingAmount) {
				take = inv.RemainingAmount
			}
			if err := tx.ReduceInvoiceRemaining(ctx, inv.ID, take); err != nil {
				return err
			}
			alloc := Allocation{ReceiptID: receiptID, InvoiceID: inv.ID, Amount: take}
			allocID, err := tx.InsertAllocation(ctx, alloc)
			if err != nil {
				return err
			}
			alloc.ID = allocID
			rec.Allocations = append(rec.Allocations, alloc)
			remaining = remaining.Sub(take)
		}

		balanceAfter, err := tx.AdjustAccountBalance(ctx, input.AccountID, input.Amount)
		if err != nil {
			return err
		}
		if _, err := tx.RecordAccountHistory(ctx, accounts.HistoryEntry{
			AccountID:    input.AccountID,
			Direction:    accounts.HistoryDebit,
			Amount:       input.Amount,
			BalanceAfter: balanceAfter,
			RefKind:      accounts.RefKindReceipt,
			RefID:        receiptID,
			OccurredAt:   receiptDate,
		}); err != nil {
			return err
		}

		no1, no2 := s.refDeltas(input.AccountID, -1)
		if _, err := tx.AddCustomerActivity(ctx, input.CustomerID, input.Amount.Neg(), no1, no2); err != nil {
			return err
		}

		result = ReceiptResult{
			Receipt:         rec,
			AppliedAmount:   input.Amount.Sub(remaining),
			UnappliedAmount: remaining,
		}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return ReceiptResult{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "treasury:receipt:apply",
			Entity:   "receipt",
			EntityID: receiptNo,
			Meta: map[string]any{
				"customer_id": input.CustomerID,
				"account_id":  input.AccountID,
				"amount":      input.Amount.String(),
				"unapplied":   result.UnappliedAmount.String(),
			},
		})
	}
	return result, nil
}

// DeleteReceipt compensates a receipt: every allocated invoice gets its
// remaining_amount back, the account balance and history row are reversed,
// and the customer totals are restored.
func (s *Service) DeleteReceipt(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, alloc := range rec.Allocations {
			if err := tx.RestoreInvoiceRemaining(ctx, alloc.InvoiceID, alloc.Amount); err != nil {
				return err
			}
		}
		if _, err := tx.AdjustAccountBalance(ctx, rec.AccountID, rec.Amount.Neg()); err != nil {
			return err
		}
		if err := tx.DeleteAccountHistoryByRef(ctx, accounts.RefKindReceipt, rec.ID); err != nil {
			return err
		}
		no1, no2 := s.refDeltas(rec.AccountID, 1)
		if _, err := tx.AddCustomerActivity(ctx, rec.CustomerID, rec.Amount, no1, no2); err != nil {
			return err
		}
		return tx.DeleteReceipt(ctx, rec.ID)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "treasury:receipt:delete",
			Entity:   "receipt",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// ApplyPayment records outgoing money to a supplier. No cascade: the purchase
// side carries no remaining balance.
func (s *Service) ApplyPayment(ctx context.Context, input ApplyPaymentInput) (Payment, error) {
	if !input.Amount.IsPositive() {
		return Payment{}, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	paymentNo := strings.TrimSpace(input.PaymentNo)
	if paymentNo == "" {
		paymentNo = fmt.Sprintf("PAY-%s", strings.ToUpper(uuid.NewString()[:8]))
	}
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	insertedKey := false
	idemKey := fmt.Sprintf("treasury:payment:%s", paymentNo)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "treasury"); err != nil {
			return Payment{}, err
		}
		insertedKey = true
	}

	var created Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p := Payment{
			PaymentNo:   paymentNo,
			SupplierID:  input.SupplierID,
			AccountID:   input.AccountID,
			Amount:      input.Amount,
			PaymentDate: paymentDate,
			Note:        input.Note,
			Actor:       input.Actor,
		}
		paymentID, err := tx.InsertPayment(ctx, p)
		if err != nil {
			return err
		}
		p.ID = paymentID

		balanceAfter, err := tx.AdjustAccountBalance(ctx, input.AccountID, input.Amount.Neg())
		if err != nil {
			return err
		}
		if _, err := tx.RecordAccountHistory(ctx, accounts.HistoryEntry{
			AccountID:    input.AccountID,
			Direction:    accounts.HistoryCredit,
			Amount:       input.Amount,
			BalanceAfter: balanceAfter,
			RefKind:      accounts.RefKindPayment,
			RefID:        paymentID,
			OccurredAt:   paymentDate,
		}); err != nil {
			return err
		}
		if _, err := tx.AddSupplierActivity(ctx, input.SupplierID, input.Amount.Neg()); err != nil {
			return err
		}

		created = p
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Payment{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "treasury:payment:apply",
			Entity:   "payment",
			EntityID: paymentNo,
			Meta: map[string]any{
				"supplier_id": input.SupplierID,
				"account_id":  input.AccountID,
				"amount":      input.Amount.String(),
			},
		})
	}
	return created, nil
}

// DeletePayment compensates a payment: the account balance and history row
// are reversed and the supplier total restored.
func (s *Service) DeletePayment(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.AdjustAccountBalance(ctx, p.AccountID, p.Amount); err != nil {
			return err
		}
		if err := tx.DeleteAccountHistoryByRef(ctx, accounts.RefKindPayment, p.ID); err != nil {
			return err
		}
		if _, err := tx.AddSupplierActivity(ctx, p.SupplierID, p.Amount); err != nil {
			return err
		}
		return tx.DeletePayment(ctx, p.ID)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "treasury:payment:delete",
			Entity:   "payment",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// GetReceipt returns one receipt with its allocations.
func (s *Service) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts lists receipts.
func (s *Service) ListReceipts(ctx context.Context, customerID int64, limit int) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, customerID, limit)
}

// ListPayments lists payments.
func (s *Service) ListPayments(ctx context.Context, supplierID int64, limit int) ([]Payment, error) {
	return s.repo.ListPayments(ctx, supplierID, limit)
}

// refDeltas maps an account to the customer counter it ticks. sign is -1 on
// apply and +1 on delete.
func (s *Service) refDeltas(accountID int64, sign int64) (no1, no2 int64) {
	switch accountID {
	case s.cfg.RefAccount1:
		return sign, 0
	case s.cfg.RefAccount2:
		return 0, sign
	default:
		return 0, 0
	}
}
