package intents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
	"github.com/angelmondragon/ledgerpay-backend/pkg/gateway"
	"github.com/angelmondragon/ledgerpay-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gatewayClient interface {
	CreateIntent(ctx context.Context, params gateway.IntentCreateParams) (*stripe.PaymentIntent, error)
	FetchIntent(ctx context.Context, gatewayIntentID string) (*stripe.PaymentIntent, error)
	CancelIntent(ctx context.Context, gatewayIntentID, reason string) (*stripe.PaymentIntent, error)
	MerchantRef() string
}

// InvoiceReader exposes the invoice fields this engine validates against.
type InvoiceReader interface {
	FindInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID) (*models.Invoice, error)
}

// LedgerRecorder books a succeeded intent into the payment ledger inside the
// caller's transaction.
type LedgerRecorder interface {
	RecordSucceeded(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, gatewayDetails json.RawMessage) (*models.Payment, error)
}

// Service defines the payment intent lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error)
	Get(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error)
	ListByInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID, status *enums.IntentStatus) ([]models.PaymentIntent, error)
	Cancel(ctx context.Context, input CancelIntentInput) (*models.PaymentIntent, error)
	RecordAttempt(ctx context.Context, input RecordAttemptInput) (*models.PaymentAttempt, error)
	ApplyGatewayUpdate(ctx context.Context, input ApplyUpdateInput) (*models.PaymentIntent, error)
	SyncWithGateway(ctx context.Context, intent models.PaymentIntent) error
	RepairLedgerLink(ctx context.Context, intent models.PaymentIntent) error
}

// ServiceParams groups the dependencies required to build the intent service.
type ServiceParams struct {
	Repo              Repository
	Tx                txRunner
	Gateway           gatewayClient
	Invoices          InvoiceReader
	Ledger            LedgerRecorder
	Outbox            outboxPublisher
	EnforceInvoiceCap bool
	MaxAmountCents    int64
}

type service struct {
	repo              Repository
	tx                txRunner
	gateway           gatewayClient
	invoices          InvoiceReader
	ledger            LedgerRecorder
	outbox            outboxPublisher
	enforceInvoiceCap bool
	maxAmountCents    int64
}

// CreateIntentInput captures a caller's request to collect money for an invoice.
type CreateIntentInput struct {
	WorkspaceID       uuid.UUID
	InvoiceID         uuid.UUID
	AmountCents       int64
	Currency          enums.Currency
	PaymentType       enums.PaymentType
	DepositPercentage int
	CustomerName      *string
	CustomerEmail     *string
	IdempotencyKey    string
	CreatedBy         uuid.UUID
}

// CreateIntentResult pairs the stored intent with the gateway client secret
// the payer-facing client needs to finish the flow.
type CreateIntentResult struct {
	Intent       *models.PaymentIntent
	ClientSecret string
}

// CancelIntentInput identifies the intent to void and why.
type CancelIntentInput struct {
	WorkspaceID uuid.UUID
	IntentID    uuid.UUID
	Reason      enums.CancellationReason
	Note        *string
}

// RecordAttemptInput appends a client-reported attempt to the intent's log.
type RecordAttemptInput struct {
	WorkspaceID      uuid.UUID
	IntentID         uuid.UUID
	Status           enums.IntentStatus
	ErrorMessage     *string
	PaymentMethodRef *string
}

// ApplyUpdateInput is one gateway-reported state change for an intent.
type ApplyUpdateInput struct {
	GatewayIntentID    string
	EventID            string
	EventType          string
	IncomingStatus     enums.IntentStatus
	Reason             enums.ReasonCode
	Note               *string
	Metadata           json.RawMessage
	NextActionPayload  json.RawMessage
	CancellationReason *enums.CancellationReason
	GatewayDetails     json.RawMessage
}

// NewService builds an intent service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("intents repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:              params.Repo,
		tx:                params.Tx,
		gateway:           params.Gateway,
		invoices:          params.Invoices,
		ledger:            params.Ledger,
		outbox:            params.Outbox,
		enforceInvoiceCap: params.EnforceInvoiceCap,
		maxAmountCents:    params.MaxAmountCents,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error) {
	if input.WorkspaceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace id required")
	}
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	if input.CreatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if s.maxAmountCents > 0 && input.AmountCents > s.maxAmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds the configured maximum")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	paymentType := input.PaymentType
	if paymentType == "" {
		paymentType = enums.PaymentTypeFull
	}
	if !paymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type")
	}
	isDeposit := paymentType == enums.PaymentTypeDeposit
	if isDeposit && (input.DepositPercentage <= 0 || input.DepositPercentage > 100) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit percentage must be between 1 and 100")
	}

	invoice, err := s.invoices.FindInvoice(ctx, input.WorkspaceID, input.InvoiceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice.Status == enums.InvoiceStatusVoid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is void")
	}
	if invoice.Currency != input.Currency {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency does not match invoice")
	}
	if s.enforceInvoiceCap && input.AmountCents > invoice.TotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds invoice total")
	}

	email := ""
	if input.CustomerEmail != nil {
		email = *input.CustomerEmail
	}
	gatewayIntent, err := s.gateway.CreateIntent(ctx, gateway.IntentCreateParams{
		AmountCents:    input.AmountCents,
		Currency:       string(input.Currency),
		Description:    fmt.Sprintf("invoice %s", invoice.Number),
		CustomerEmail:  email,
		InvoiceRef:     invoice.ID.String(),
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		WorkspaceID:        input.WorkspaceID,
		InvoiceID:          invoice.ID,
		GatewayIntentID:    gatewayIntent.ID,
		AmountCents:        input.AmountCents,
		Currency:           input.Currency,
		Status:             statusFromGateway(gatewayIntent.Status),
		PaymentType:        paymentType,
		IsDeposit:          isDeposit,
		DepositPercentage:  input.DepositPercentage,
		CaptureMethod:      string(gatewayIntent.CaptureMethod),
		ConfirmationMethod: string(gatewayIntent.ConfirmationMethod),
		CustomerName:       input.CustomerName,
		CustomerEmail:      input.CustomerEmail,
		MerchantAccountRef: s.gateway.MerchantRef(),
		CreatedBy:          input.CreatedBy,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist intent")
		}
		return repo.AppendStatusHistory(ctx, &models.IntentStatusHistory{
			IntentID: intent.ID,
			Status:   intent.Status,
			Reason:   enums.ReasonIntentCreated,
		})
	})
	if err != nil {
		return nil, err
	}

	return &CreateIntentResult{
		Intent:       intent,
		ClientSecret: gatewayIntent.ClientSecret,
	}, nil
}

func (s *service) Get(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	if workspaceID == uuid.Nil || intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and intent ids required")
	}
	intent, err := s.repo.FindByID(ctx, workspaceID, intentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent")
	}
	return intent, nil
}

func (s *service) ListByInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID, status *enums.IntentStatus) ([]models.PaymentIntent, error) {
	if workspaceID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and invoice ids required")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	intents, err := s.repo.ListByInvoice(ctx, workspaceID, invoiceID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list intents")
	}
	return intents, nil
}

func (s *service) Cancel(ctx context.Context, input CancelIntentInput) (*models.PaymentIntent, error) {
	if input.WorkspaceID == uuid.Nil || input.IntentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and intent ids required")
	}
	reason := input.Reason
	if reason == "" {
		reason = enums.CancellationReasonRequestedByCustomer
	}
	if !reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation reason")
	}

	intent, err := s.Get(ctx, input.WorkspaceID, input.IntentID)
	if err != nil {
		return nil, err
	}
	if err := cancelGuard(intent.Status); err != nil {
		return nil, err
	}

	if _, err := s.gateway.CancelIntent(ctx, intent.GatewayIntentID, string(reason)); err != nil {
		return nil, err
	}

	var canceled *models.PaymentIntent
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, input.WorkspaceID, input.IntentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock intent")
		}
		if err := cancelGuard(locked.Status); err != nil {
			return err
		}

		now := time.Now()
		locked.Status = enums.IntentStatusCanceled
		locked.CanceledAt = &now
		locked.CancellationReason = &reason
		if err := repo.Save(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cancellation")
		}
		if err := repo.AppendStatusHistory(ctx, &models.IntentStatusHistory{
			IntentID: locked.ID,
			Status:   enums.IntentStatusCanceled,
			Reason:   enums.ReasonIntentCanceled,
			Note:     input.Note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		canceled = locked
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventIntentCanceled,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   locked.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: locked.CreatedBy, WorkspaceID: &locked.WorkspaceID},
			Data: IntentCanceledEvent{
				IntentID:    locked.ID,
				InvoiceID:   locked.InvoiceID,
				WorkspaceID: locked.WorkspaceID,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return canceled, nil
}

// IntentCanceledEvent is emitted when an intent is voided.
type IntentCanceledEvent struct {
	IntentID    uuid.UUID                `json:"intent_id"`
	InvoiceID   uuid.UUID                `json:"invoice_id"`
	WorkspaceID uuid.UUID                `json:"workspace_id"`
	Reason      enums.CancellationReason `json:"reason"`
}

func (s *service) RecordAttempt(ctx context.Context, input RecordAttemptInput) (*models.PaymentAttempt, error) {
	if input.WorkspaceID == uuid.Nil || input.IntentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workspace and intent ids required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid attempt status")
	}

	intent, err := s.Get(ctx, input.WorkspaceID, input.IntentID)
	if err != nil {
		return nil, err
	}

	var attempt *models.PaymentAttempt
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountAttempts(ctx, intent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count attempts")
		}
		attempt = &models.PaymentAttempt{
			IntentID:         intent.ID,
			AttemptNumber:    int(count) + 1,
			Status:           input.Status,
			ErrorMessage:     input.ErrorMessage,
			PaymentMethodRef: input.PaymentMethodRef,
		}
		if err := repo.CreateAttempt(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist attempt")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *service) ApplyGatewayUpdate(ctx context.Context, input ApplyUpdateInput) (*models.PaymentIntent, error) {
	if input.GatewayIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway intent id required")
	}
	if input.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}

	var updated *models.PaymentIntent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		intent, err := repo.FindByGatewayIntentIDForUpdate(ctx, input.GatewayIntentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock intent")
		}

		existing, err := repo.FindWebhookEvent(ctx, intent.ID, input.EventID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load webhook event")
		}
		if existing != nil && existing.Processed {
			// Redelivery of an applied event acks without reapplying.
			updated = intent
			return nil
		}
		if existing == nil {
			if err := repo.CreateWebhookEvent(ctx, &models.IntentWebhookEvent{
				IntentID:   intent.ID,
				EventID:    input.EventID,
				EventType:  input.EventType,
				ReceivedAt: time.Now(),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "log webhook event")
			}
		}

		decision, err := Transition(intent.Status, input.IncomingStatus)
		if err != nil {
			return err
		}
		if decision.TerminalNoop {
			if err := repo.MarkWebhookEventProcessed(ctx, intent.ID, input.EventID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark webhook event processed")
			}
			updated = intent
			return nil
		}

		intent.Status = input.IncomingStatus
		switch input.IncomingStatus {
		case enums.IntentStatusRequiresAction:
			intent.NextActionPayload = input.NextActionPayload
		case enums.IntentStatusCanceled:
			now := time.Now()
			intent.CanceledAt = &now
			reason := enums.CancellationReasonRequestedByCustomer
			if input.CancellationReason != nil && input.CancellationReason.IsValid() {
				reason = *input.CancellationReason
			}
			intent.CancellationReason = &reason
		case enums.IntentStatusSucceeded:
			if !intent.Used {
				intent.Used = true
				payment, err := s.ledger.RecordSucceeded(ctx, tx, intent, input.GatewayDetails)
				if err != nil {
					return err
				}
				intent.PaymentID = &payment.ID
			}
		}

		if err := repo.Save(ctx, intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transition")
		}

		reason := decision.Reason
		if input.Reason != "" {
			reason = input.Reason
		}
		if err := repo.AppendStatusHistory(ctx, &models.IntentStatusHistory{
			IntentID: intent.ID,
			Status:   intent.Status,
			Reason:   reason,
			Note:     input.Note,
			Metadata: input.Metadata,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		if err := repo.MarkWebhookEventProcessed(ctx, intent.ID, input.EventID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark webhook event processed")
		}
		updated = intent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SyncWithGateway re-derives an intent's status from the gateway's record,
// used when webhooks may have been missed.
func (s *service) SyncWithGateway(ctx context.Context, intent models.PaymentIntent) error {
	remote, err := s.gateway.FetchIntent(ctx, intent.GatewayIntentID)
	if err != nil {
		return err
	}
	incoming := statusFromGateway(remote.Status)
	if incoming == intent.Status {
		return nil
	}
	_, err = s.ApplyGatewayUpdate(ctx, ApplyUpdateInput{
		GatewayIntentID: intent.GatewayIntentID,
		EventID:         fmt.Sprintf("recon-%s", uuid.NewString()),
		EventType:       "reconciliation.sync",
		IncomingStatus:  incoming,
		Reason:          enums.ReasonReconciliationRepaired,
	})
	return err
}

// RepairLedgerLink retries reconciliation for a succeeded intent whose ledger
// entry never landed.
func (s *service) RepairLedgerLink(ctx context.Context, intent models.PaymentIntent) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, intent.WorkspaceID, intent.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock intent")
		}
		if locked.Status != enums.IntentStatusSucceeded || locked.PaymentID != nil {
			return nil
		}

		locked.Used = true
		payment, err := s.ledger.RecordSucceeded(ctx, tx, locked, nil)
		if err != nil {
			return err
		}
		locked.PaymentID = &payment.ID
		if err := repo.Save(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist ledger link")
		}
		note := "ledger entry recreated by compensating sweep"
		return repo.AppendStatusHistory(ctx, &models.IntentStatusHistory{
			IntentID: locked.ID,
			Status:   locked.Status,
			Reason:   enums.ReasonReconciliationRepaired,
			Note:     &note,
		})
	})
}

func cancelGuard(status enums.IntentStatus) error {
	switch status {
	case enums.IntentStatusSucceeded:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent already succeeded")
	case enums.IntentStatusCanceled:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent already canceled")
	default:
		return nil
	}
}

func statusFromGateway(raw stripe.PaymentIntentStatus) enums.IntentStatus {
	status, err := enums.ParseIntentStatus(string(raw))
	if err != nil {
		return enums.IntentStatusRequiresPaymentMethod
	}
	return status
}
