package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerpay-backend/internal/repo"
	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// Repository manages persistence for immutable payment ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, workspaceID, paymentID uuid.UUID) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, status enums.PaymentRecordStatus) error
	MarkReceiptSent(ctx context.Context, paymentID uuid.UUID) error
	MarkReceiptViewed(ctx context.Context, paymentID uuid.UUID) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.DB(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, workspaceID, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, paymentID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.DB(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("sequence_number ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// UpdateStatus is the only mutation allowed on a ledger row besides receipt
// tracking; amount, date, sequence, and balance stay frozen.
func (r *repository) UpdateStatus(ctx context.Context, paymentID uuid.UUID, status enums.PaymentRecordStatus) error {
	return r.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("status", status).Error
}

func (r *repository) MarkReceiptSent(ctx context.Context, paymentID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("receipt_sent_at", time.Now()).Error
}

func (r *repository) MarkReceiptViewed(ctx context.Context, paymentID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("receipt_viewed_at", time.Now()).Error
}
