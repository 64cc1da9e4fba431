package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
)

// Service synchronizes payment-driven invoice state. It is the sole writer of
// the paid/deposit_paid/partially_paid transitions and their history trail.
type Service interface {
	FindInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID) (*models.Invoice, error)
	LockInvoice(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID) (*models.Invoice, error)
	ApplyPayment(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, app PaymentApplication) error
	ApplyRefund(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, app RefundApplication) error
	StatusHistory(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceStatusHistory, error)
}

// PaymentApplication carries the reconciled figures for one payment.
type PaymentApplication struct {
	AmountCents           int64
	RemainingBalanceCents int64
	IsDeposit             bool
	SequenceNumber        int
	PayerName             string
}

// RefundApplication carries the reconciled figures for one refund.
type RefundApplication struct {
	AmountCents           int64
	RemainingBalanceCents int64
	SequenceNumber        int
}

type service struct {
	repo Repository
}

// NewService wires an invoice synchronizer with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoices repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) FindInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID) (*models.Invoice, error) {
	if workspaceID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and invoice ids required")
	}
	return s.repo.FindByID(ctx, workspaceID, invoiceID)
}

func (s *service) LockInvoice(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	invoice, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, invoiceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock invoice")
	}
	return invoice, nil
}

func (s *service) ApplyPayment(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, app PaymentApplication) error {
	if invoice == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice required")
	}
	repo := s.repo.WithTx(tx)
	now := time.Now()

	var reason enums.ReasonCode
	switch {
	case app.RemainingBalanceCents == 0:
		invoice.Status = enums.InvoiceStatusPaid
		invoice.PaidAt = &now
		reason = enums.ReasonInvoicePaid
	case app.IsDeposit && invoice.DepositPaidAt == nil:
		invoice.Status = enums.InvoiceStatusDepositPaid
		invoice.DepositPaidAt = &now
		amount := app.AmountCents
		invoice.DepositPaymentAmountCents = &amount
		reason = enums.ReasonInvoiceDepositPaid
	default:
		invoice.Status = enums.InvoiceStatusPartiallyPaid
		reason = enums.ReasonInvoicePartiallyPaid
	}

	if err := repo.Save(ctx, invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice status")
	}

	note := paymentNote(app.AmountCents, invoice.Currency, app.PayerName, reason)
	return appendHistory(ctx, repo, invoice.ID, invoice.Status, reason, note)
}

func (s *service) ApplyRefund(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, app RefundApplication) error {
	if invoice == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice required")
	}
	repo := s.repo.WithTx(tx)

	if app.RemainingBalanceCents > 0 {
		switch {
		case app.RemainingBalanceCents >= invoice.TotalCents:
			invoice.Status = enums.InvoiceStatusSent
		case invoice.DepositPaidAt != nil && app.RemainingBalanceCents == invoice.TotalCents-depositAmount(invoice):
			invoice.Status = enums.InvoiceStatusDepositPaid
		default:
			invoice.Status = enums.InvoiceStatusPartiallyPaid
		}
		invoice.PaidAt = nil
	}

	if err := repo.Save(ctx, invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice status")
	}

	note := fmt.Sprintf("refund of %s %s issued", formatAmount(app.AmountCents, invoice.Currency), invoice.Currency)
	return appendHistory(ctx, repo, invoice.ID, invoice.Status, enums.ReasonRefundIssued, note)
}

func (s *service) StatusHistory(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceStatusHistory, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	entries, err := s.repo.ListStatusHistory(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status history")
	}
	return entries, nil
}

func appendHistory(ctx context.Context, repo Repository, invoiceID uuid.UUID, status enums.InvoiceStatus, reason enums.ReasonCode, note string) error {
	entry := &models.InvoiceStatusHistory{
		InvoiceID: invoiceID,
		Status:    status,
		Reason:    reason,
		Note:      &note,
	}
	if err := repo.AppendStatusHistory(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append invoice history")
	}
	return nil
}

func paymentNote(amountCents int64, currency enums.Currency, payer string, reason enums.ReasonCode) string {
	amount := formatAmount(amountCents, currency)
	if reason == enums.ReasonInvoicePaid {
		if payer != "" {
			return fmt.Sprintf("Invoice fully paid: %s %s received from %s", amount, currency, payer)
		}
		return fmt.Sprintf("Invoice fully paid: %s %s received", amount, currency)
	}
	if payer != "" {
		return fmt.Sprintf("Payment of %s %s received from %s", amount, currency, payer)
	}
	return fmt.Sprintf("Payment of %s %s received", amount, currency)
}

func formatAmount(amountCents int64, currency enums.Currency) string {
	return decimal.NewFromInt(amountCents).Shift(-currency.MinorUnitExponent()).StringFixed(currency.MinorUnitExponent())
}

func depositAmount(invoice *models.Invoice) int64 {
	if invoice.DepositPaymentAmountCents == nil {
		return 0
	}
	return *invoice.DepositPaymentAmountCents
}
