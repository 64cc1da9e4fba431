package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerpay-backend/internal/invoices"
	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
	"github.com/angelmondragon/ledgerpay-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type invoiceSyncer interface {
	LockInvoice(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID) (*models.Invoice, error)
	ApplyPayment(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, app invoices.PaymentApplication) error
	ApplyRefund(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, app invoices.RefundApplication) error
}

// Service books immutable ledger entries and keeps invoice balances in sync.
// RecordSucceeded is the only path that creates a payment row for an intent;
// there is no public create-payment entry point bypassing it.
type Service interface {
	RecordSucceeded(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, gatewayDetails json.RawMessage) (*models.Payment, error)
	CreateRefund(ctx context.Context, input CreateRefundInput) (*models.Payment, error)
	ListByInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID) ([]models.Payment, error)
	MarkReceiptSent(ctx context.Context, workspaceID, paymentID uuid.UUID) error
	MarkReceiptViewed(ctx context.Context, workspaceID, paymentID uuid.UUID) error
}

type service struct {
	repo     Repository
	tx       txRunner
	invoices invoiceSyncer
	outbox   outboxPublisher
}

// CreateRefundInput identifies the payment to refund and how much.
type CreateRefundInput struct {
	WorkspaceID uuid.UUID
	PaymentID   uuid.UUID
	// AmountCents of zero refunds the full original amount.
	AmountCents int64
	Note        *string
}

// PaymentCompletedEvent is the fact emitted after a successful reconciliation.
// Delivery is the notification system's responsibility; emission never blocks
// or fails the reconciliation transaction beyond the outbox insert itself.
type PaymentCompletedEvent struct {
	PaymentID             uuid.UUID      `json:"payment_id"`
	IntentID              uuid.UUID      `json:"intent_id"`
	InvoiceID             uuid.UUID      `json:"invoice_id"`
	WorkspaceID           uuid.UUID      `json:"workspace_id"`
	AmountCents           int64          `json:"amount_cents"`
	Currency              enums.Currency `json:"currency"`
	RemainingBalanceCents int64          `json:"remaining_balance_cents"`
	CustomerName          *string        `json:"customer_name,omitempty"`
	CustomerEmail         *string        `json:"customer_email,omitempty"`
	ReceiptNumber         string         `json:"receipt_number"`
}

// PaymentRefundedEvent is emitted when a refund row is booked.
type PaymentRefundedEvent struct {
	RefundID          uuid.UUID      `json:"refund_id"`
	OriginalPaymentID uuid.UUID      `json:"original_payment_id"`
	InvoiceID         uuid.UUID      `json:"invoice_id"`
	WorkspaceID       uuid.UUID      `json:"workspace_id"`
	AmountCents       int64          `json:"amount_cents"`
	Currency          enums.Currency `json:"currency"`
}

// NewService builds a ledger service with the required dependencies.
func NewService(repo Repository, tx txRunner, invoiceSvc invoiceSyncer, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if invoiceSvc == nil {
		return nil, fmt.Errorf("invoice syncer required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, invoices: invoiceSvc, outbox: outboxSvc}, nil
}

func (s *service) RecordSucceeded(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, gatewayDetails json.RawMessage) (*models.Payment, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation requires a transaction")
	}
	if intent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent required")
	}

	invoice, err := s.invoices.LockInvoice(ctx, tx, intent.InvoiceID)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoice payments")
	}

	sequence := len(existing) + 1
	netPaid := netPaidCents(existing)
	remaining := clampBalance(invoice.TotalCents - netPaid - intent.AmountCents)

	entryType := enums.LedgerEntryTypePayment
	if intent.IsDeposit {
		entryType = enums.LedgerEntryTypeDeposit
	}

	now := time.Now()
	payment := &models.Payment{
		WorkspaceID:           intent.WorkspaceID,
		InvoiceID:             invoice.ID,
		PaymentIntentID:       &intent.ID,
		Type:                  entryType,
		Status:                enums.PaymentRecordStatusCompleted,
		AmountCents:           intent.AmountCents,
		Currency:              intent.Currency,
		Method:                "card",
		ReceivedAt:            now,
		SequenceNumber:        sequence,
		RemainingBalanceCents: remaining,
		ReceiptNumber:         receiptNumber(now, sequence),
		ReceiptType:           receiptTypeFor(entryType),
		ReceiptGeneratedAt:    &now,
		GatewayDetails:        gatewayDetails,
	}
	if err := repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist ledger entry")
	}

	if err := s.invoices.ApplyPayment(ctx, tx, invoice, invoices.PaymentApplication{
		AmountCents:           payment.AmountCents,
		RemainingBalanceCents: remaining,
		IsDeposit:             intent.IsDeposit,
		SequenceNumber:        sequence,
		PayerName:             stringValue(intent.CustomerName),
	}); err != nil {
		return nil, err
	}

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: PaymentCompletedEvent{
			PaymentID:             payment.ID,
			IntentID:              intent.ID,
			InvoiceID:             invoice.ID,
			WorkspaceID:           intent.WorkspaceID,
			AmountCents:           payment.AmountCents,
			Currency:              payment.Currency,
			RemainingBalanceCents: remaining,
			CustomerName:          intent.CustomerName,
			CustomerEmail:         intent.CustomerEmail,
			ReceiptNumber:         payment.ReceiptNumber,
		},
	}); err != nil {
		return nil, err
	}

	return payment, nil
}

func (s *service) CreateRefund(ctx context.Context, input CreateRefundInput) (*models.Payment, error) {
	if input.WorkspaceID == uuid.Nil || input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and payment ids required")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}

	var refund *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		original, err := repo.FindByID(ctx, input.WorkspaceID, input.PaymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if original.Type == enums.LedgerEntryTypeRefund {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot refund a refund")
		}
		if original.Status == enums.PaymentRecordStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already refunded")
		}

		amount := input.AmountCents
		if amount == 0 {
			amount = original.AmountCents
		}
		if amount > original.AmountCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds original payment amount")
		}

		invoice, err := s.invoices.LockInvoice(ctx, tx, original.InvoiceID)
		if err != nil {
			return err
		}

		existing, err := repo.ListByInvoice(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoice payments")
		}
		sequence := len(existing) + 1
		netPaid := netPaidCents(existing)
		remaining := clampBalance(invoice.TotalCents - netPaid + amount)
		if remaining > invoice.TotalCents {
			remaining = invoice.TotalCents
		}

		now := time.Now()
		refund = &models.Payment{
			WorkspaceID:           input.WorkspaceID,
			InvoiceID:             invoice.ID,
			PaymentIntentID:       original.PaymentIntentID,
			OriginalPaymentID:     &original.ID,
			Type:                  enums.LedgerEntryTypeRefund,
			Status:                enums.PaymentRecordStatusCompleted,
			AmountCents:           amount,
			Currency:              original.Currency,
			Method:                original.Method,
			ReceivedAt:            now,
			SequenceNumber:        sequence,
			RemainingBalanceCents: remaining,
			ReceiptNumber:         receiptNumber(now, sequence),
			ReceiptType:           receiptTypeRefund,
			ReceiptGeneratedAt:    &now,
		}
		if err := repo.Create(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refund entry")
		}

		if amount == original.AmountCents {
			if err := repo.UpdateStatus(ctx, original.ID, enums.PaymentRecordStatusRefunded); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
			}
		}

		if err := s.invoices.ApplyRefund(ctx, tx, invoice, invoices.RefundApplication{
			AmountCents:           amount,
			RemainingBalanceCents: remaining,
			SequenceNumber:        sequence,
		}); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   refund.ID,
			Version:       1,
			Data: PaymentRefundedEvent{
				RefundID:          refund.ID,
				OriginalPaymentID: original.ID,
				InvoiceID:         invoice.ID,
				WorkspaceID:       input.WorkspaceID,
				AmountCents:       amount,
				Currency:          refund.Currency,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *service) ListByInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID) ([]models.Payment, error) {
	if workspaceID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and invoice ids required")
	}
	payments, err := s.repo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	scoped := payments[:0]
	for _, payment := range payments {
		if payment.WorkspaceID == workspaceID {
			scoped = append(scoped, payment)
		}
	}
	return scoped, nil
}

func (s *service) MarkReceiptSent(ctx context.Context, workspaceID, paymentID uuid.UUID) error {
	if _, err := s.findScoped(ctx, workspaceID, paymentID); err != nil {
		return err
	}
	if err := s.repo.MarkReceiptSent(ctx, paymentID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark receipt sent")
	}
	return nil
}

func (s *service) MarkReceiptViewed(ctx context.Context, workspaceID, paymentID uuid.UUID) error {
	if _, err := s.findScoped(ctx, workspaceID, paymentID); err != nil {
		return err
	}
	if err := s.repo.MarkReceiptViewed(ctx, paymentID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark receipt viewed")
	}
	return nil
}

func (s *service) findScoped(ctx context.Context, workspaceID, paymentID uuid.UUID) (*models.Payment, error) {
	if workspaceID == uuid.Nil || paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and payment ids required")
	}
	payment, err := s.repo.FindByID(ctx, workspaceID, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// netPaidCents sums completed inflows minus refunds across a ledger.
func netPaidCents(payments []models.Payment) int64 {
	total := decimal.Zero
	for _, payment := range payments {
		amount := decimal.NewFromInt(payment.AmountCents)
		if payment.Type == enums.LedgerEntryTypeRefund {
			total = total.Sub(amount)
			continue
		}
		total = total.Add(amount)
	}
	return total.IntPart()
}

func clampBalance(cents int64) int64 {
	if cents < 0 {
		return 0
	}
	return cents
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
