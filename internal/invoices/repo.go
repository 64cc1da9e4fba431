package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ledgerpay-backend/internal/repo"
	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
)

// Repository manages persistence for the invoice fields this engine owns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, workspaceID, invoiceID uuid.UUID) (*models.Invoice, error)
	FindByIDForUpdate(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	Save(ctx context.Context, invoice *models.Invoice) error
	AppendStatusHistory(ctx context.Context, entry *models.InvoiceStatusHistory) error
	ListStatusHistory(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceStatusHistory, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindByID(ctx context.Context, workspaceID, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.DB(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, invoiceID).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDForUpdate takes the per-invoice lock that serializes concurrent
// reconciliations, so sequence numbers and balances are derived without races.
func (r *repository) FindByIDForUpdate(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", invoiceID).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) Save(ctx context.Context, invoice *models.Invoice) error {
	return r.DB(ctx).Save(invoice).Error
}

func (r *repository) AppendStatusHistory(ctx context.Context, entry *models.InvoiceStatusHistory) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListStatusHistory(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceStatusHistory, error) {
	var entries []models.InvoiceStatusHistory
	if err := r.DB(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
