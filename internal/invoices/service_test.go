package invoices

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

type fakeRepository struct {
	invoices map[uuid.UUID]*models.Invoice
	history  []models.InvoiceStatusHistory
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{invoices: map[uuid.UUID]*models.Invoice{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindByID(ctx context.Context, workspaceID, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, ok := f.invoices[invoiceID]
	if !ok || invoice.WorkspaceID != workspaceID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *invoice
	return &copied, nil
}

func (f *fakeRepository) FindByIDForUpdate(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, ok := f.invoices[invoiceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *invoice
	return &copied, nil
}

func (f *fakeRepository) Save(ctx context.Context, invoice *models.Invoice) error {
	copied := *invoice
	f.invoices[invoice.ID] = &copied
	return nil
}

func (f *fakeRepository) AppendStatusHistory(ctx context.Context, entry *models.InvoiceStatusHistory) error {
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeRepository) ListStatusHistory(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceStatusHistory, error) {
	var out []models.InvoiceStatusHistory
	for _, entry := range f.history {
		if entry.InvoiceID == invoiceID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func seedInvoice(repo *fakeRepository, totalCents int64) *models.Invoice {
	invoice := &models.Invoice{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Number:      "INV-2001",
		TotalCents:  totalCents,
		Currency:    enums.CurrencyUSD,
		Status:      enums.InvoiceStatusSent,
	}
	repo.invoices[invoice.ID] = invoice
	return invoice
}

func TestApplyPayment_FullyPaid(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	invoice := seedInvoice(repo, 10000)

	if err := svc.ApplyPayment(context.Background(), nil, invoice, PaymentApplication{
		AmountCents:           10000,
		RemainingBalanceCents: 0,
		SequenceNumber:        1,
		PayerName:             "Ada Lovelace",
	}); err != nil {
		t.Fatalf("ApplyPayment error: %v", err)
	}

	stored := repo.invoices[invoice.ID]
	if stored.Status != enums.InvoiceStatusPaid {
		t.Fatalf("expected paid, got %s", stored.Status)
	}
	if stored.PaidAt == nil {
		t.Fatal("expected paidAt set")
	}
	if len(repo.history) != 1 || repo.history[0].Reason != enums.ReasonInvoicePaid {
		t.Fatalf("expected invoice_paid history, got %+v", repo.history)
	}
	if repo.history[0].Note == nil || !strings.Contains(*repo.history[0].Note, "Invoice fully paid") {
		t.Fatalf("unexpected note: %v", repo.history[0].Note)
	}
}

func TestApplyPayment_FirstDeposit(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	invoice := seedInvoice(repo, 10000)
	invoice.RequireDeposit = true
	invoice.DepositPercentage = 30

	if err := svc.ApplyPayment(context.Background(), nil, invoice, PaymentApplication{
		AmountCents:           3000,
		RemainingBalanceCents: 7000,
		IsDeposit:             true,
		SequenceNumber:        1,
	}); err != nil {
		t.Fatalf("ApplyPayment error: %v", err)
	}

	stored := repo.invoices[invoice.ID]
	if stored.Status != enums.InvoiceStatusDepositPaid {
		t.Fatalf("expected deposit_paid, got %s", stored.Status)
	}
	if stored.DepositPaidAt == nil || stored.DepositPaymentAmountCents == nil || *stored.DepositPaymentAmountCents != 3000 {
		t.Fatalf("deposit tracking missing: %+v", stored)
	}
	if len(repo.history) != 1 || repo.history[0].Reason != enums.ReasonInvoiceDepositPaid {
		t.Fatalf("expected invoice_deposit_paid history, got %+v", repo.history)
	}
}

func TestApplyPayment_SecondDepositIsPartial(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	invoice := seedInvoice(repo, 10000)
	paid := int64(3000)
	now := invoice.CreatedAt
	invoice.DepositPaidAt = &now
	invoice.DepositPaymentAmountCents = &paid
	invoice.Status = enums.InvoiceStatusDepositPaid

	if err := svc.ApplyPayment(context.Background(), nil, invoice, PaymentApplication{
		AmountCents:           2000,
		RemainingBalanceCents: 5000,
		IsDeposit:             true,
		SequenceNumber:        2,
	}); err != nil {
		t.Fatalf("ApplyPayment error: %v", err)
	}
	if repo.invoices[invoice.ID].Status != enums.InvoiceStatusPartiallyPaid {
		t.Fatalf("expected partially_paid, got %s", repo.invoices[invoice.ID].Status)
	}
}

func TestApplyPayment_Partial(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	invoice := seedInvoice(repo, 10000)

	if err := svc.ApplyPayment(context.Background(), nil, invoice, PaymentApplication{
		AmountCents:           2500,
		RemainingBalanceCents: 7500,
		SequenceNumber:        1,
		PayerName:             "Grace Hopper",
	}); err != nil {
		t.Fatalf("ApplyPayment error: %v", err)
	}
	stored := repo.invoices[invoice.ID]
	if stored.Status != enums.InvoiceStatusPartiallyPaid {
		t.Fatalf("expected partially_paid, got %s", stored.Status)
	}
	if repo.history[0].Note == nil || !strings.Contains(*repo.history[0].Note, "25.00 USD") {
		t.Fatalf("expected formatted amount in note, got %v", repo.history[0].Note)
	}
}

func TestApplyRefund_ReopensInvoice(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	invoice := seedInvoice(repo, 10000)
	invoice.Status = enums.InvoiceStatusPaid
	now := invoice.CreatedAt
	invoice.PaidAt = &now

	if err := svc.ApplyRefund(context.Background(), nil, invoice, RefundApplication{
		AmountCents:           4000,
		RemainingBalanceCents: 4000,
		SequenceNumber:        2,
	}); err != nil {
		t.Fatalf("ApplyRefund error: %v", err)
	}
	stored := repo.invoices[invoice.ID]
	if stored.Status != enums.InvoiceStatusPartiallyPaid {
		t.Fatalf("expected partially_paid after refund, got %s", stored.Status)
	}
	if stored.PaidAt != nil {
		t.Fatal("expected paidAt cleared after refund")
	}
	if len(repo.history) != 1 || repo.history[0].Reason != enums.ReasonRefundIssued {
		t.Fatalf("expected refund_issued history, got %+v", repo.history)
	}
}

func TestFindInvoiceValidation(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	if _, err := svc.FindInvoice(context.Background(), uuid.Nil, uuid.New()); err == nil {
		t.Fatal("expected validation error for nil workspace")
	}
}
