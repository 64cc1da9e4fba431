package intents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ledgerpay-backend/internal/repo"
	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// Repository manages persistence for payment intents and their embedded logs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	Save(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error)
	FindByIDForUpdate(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error)
	FindByGatewayIntentIDForUpdate(ctx context.Context, gatewayIntentID string) (*models.PaymentIntent, error)
	ListByInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID, status *enums.IntentStatus) ([]models.PaymentIntent, error)
	AppendStatusHistory(ctx context.Context, entry *models.IntentStatusHistory) error
	ListStatusHistory(ctx context.Context, intentID uuid.UUID) ([]models.IntentStatusHistory, error)
	CreateWebhookEvent(ctx context.Context, event *models.IntentWebhookEvent) error
	FindWebhookEvent(ctx context.Context, intentID uuid.UUID, eventID string) (*models.IntentWebhookEvent, error)
	MarkWebhookEventProcessed(ctx context.Context, intentID uuid.UUID, eventID string) error
	CountAttempts(ctx context.Context, intentID uuid.UUID) (int64, error)
	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	ListSucceededWithoutPayment(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error)
	ListStaleNonTerminal(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.DB(ctx).Create(intent).Error
}

func (r *repository) Save(ctx context.Context, intent *models.PaymentIntent) error {
	return r.DB(ctx).Save(intent).Error
}

func (r *repository) FindByID(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.DB(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, intentID).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("workspace_id = ? AND id = ?", workspaceID, intentID).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindByGatewayIntentIDForUpdate serializes concurrent webhook deliveries for
// the same intent on the row lock.
func (r *repository) FindByGatewayIntentIDForUpdate(ctx context.Context, gatewayIntentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_intent_id = ?", gatewayIntentID).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) ListByInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID, status *enums.IntentStatus) ([]models.PaymentIntent, error) {
	query := r.DB(ctx).
		Where("workspace_id = ? AND invoice_id = ?", workspaceID, invoiceID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var intents []models.PaymentIntent
	if err := query.Order("created_at ASC").Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repository) AppendStatusHistory(ctx context.Context, entry *models.IntentStatusHistory) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListStatusHistory(ctx context.Context, intentID uuid.UUID) ([]models.IntentStatusHistory, error) {
	var entries []models.IntentStatusHistory
	if err := r.DB(ctx).
		Where("intent_id = ?", intentID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CreateWebhookEvent(ctx context.Context, event *models.IntentWebhookEvent) error {
	return r.DB(ctx).Create(event).Error
}

func (r *repository) FindWebhookEvent(ctx context.Context, intentID uuid.UUID, eventID string) (*models.IntentWebhookEvent, error) {
	var event models.IntentWebhookEvent
	if err := r.DB(ctx).
		Where("intent_id = ? AND event_id = ?", intentID, eventID).
		First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkWebhookEventProcessed(ctx context.Context, intentID uuid.UUID, eventID string) error {
	now := time.Now()
	return r.DB(ctx).
		Model(&models.IntentWebhookEvent{}).
		Where("intent_id = ? AND event_id = ?", intentID, eventID).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": now,
		}).Error
}

func (r *repository) CountAttempts(ctx context.Context, intentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.DB(ctx).
		Model(&models.PaymentAttempt{}).
		Where("intent_id = ?", intentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.DB(ctx).Create(attempt).Error
}

// ListSucceededWithoutPayment surfaces intents whose succeeded transition
// committed without a linked ledger entry, the input to the compensating sweep.
func (r *repository) ListSucceededWithoutPayment(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	if err := r.DB(ctx).
		Where("status = ? AND payment_id IS NULL AND updated_at < ?", enums.IntentStatusSucceeded, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repository) ListStaleNonTerminal(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	if err := r.DB(ctx).
		Where("status NOT IN ? AND updated_at < ?",
			[]enums.IntentStatus{enums.IntentStatusSucceeded, enums.IntentStatusCanceled, enums.IntentStatusFailed},
			olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}
