package intents

import (
	"context"
	"encoding/json"
	"testing"
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

type fakeRepo struct {
	intents  map[uuid.UUID]*models.PaymentIntent
	history  []models.IntentStatusHistory
	events   map[string]*models.IntentWebhookEvent
	attempts []models.PaymentAttempt
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		intents: map[uuid.UUID]*models.PaymentIntent{},
		events:  map[string]*models.IntentWebhookEvent{},
	}
}

func (f *fakeRepo) eventKey(intentID uuid.UUID, eventID string) string {
	return intentID.String() + "/" + eventID
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	copied := *intent
	f.intents[intent.ID] = &copied
	return nil
}

func (f *fakeRepo) Save(ctx context.Context, intent *models.PaymentIntent) error {
	copied := *intent
	f.intents[intent.ID] = &copied
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	intent, ok := f.intents[intentID]
	if !ok || intent.WorkspaceID != workspaceID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *intent
	return &copied, nil
}

func (f *fakeRepo) FindByIDForUpdate(ctx context.Context, workspaceID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	return f.FindByID(ctx, workspaceID, intentID)
}

func (f *fakeRepo) FindByGatewayIntentIDForUpdate(ctx context.Context, gatewayIntentID string) (*models.PaymentIntent, error) {
	for _, intent := range f.intents {
		if intent.GatewayIntentID == gatewayIntentID {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListByInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID, status *enums.IntentStatus) ([]models.PaymentIntent, error) {
	var out []models.PaymentIntent
	for _, intent := range f.intents {
		if intent.WorkspaceID != workspaceID || intent.InvoiceID != invoiceID {
			continue
		}
		if status != nil && intent.Status != *status {
			continue
		}
		out = append(out, *intent)
	}
	return out, nil
}

func (f *fakeRepo) AppendStatusHistory(ctx context.Context, entry *models.IntentStatusHistory) error {
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeRepo) ListStatusHistory(ctx context.Context, intentID uuid.UUID) ([]models.IntentStatusHistory, error) {
	var out []models.IntentStatusHistory
	for _, entry := range f.history {
		if entry.IntentID == intentID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateWebhookEvent(ctx context.Context, event *models.IntentWebhookEvent) error {
	copied := *event
	f.events[f.eventKey(event.IntentID, event.EventID)] = &copied
	return nil
}

func (f *fakeRepo) FindWebhookEvent(ctx context.Context, intentID uuid.UUID, eventID string) (*models.IntentWebhookEvent, error) {
	event, ok := f.events[f.eventKey(intentID, eventID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *event
	return &copied, nil
}

func (f *fakeRepo) MarkWebhookEventProcessed(ctx context.Context, intentID uuid.UUID, eventID string) error {
	if event, ok := f.events[f.eventKey(intentID, eventID)]; ok {
		now := time.Now()
		event.Processed = true
		event.ProcessedAt = &now
	}
	return nil
}

func (f *fakeRepo) CountAttempts(ctx context.Context, intentID uuid.UUID) (int64, error) {
	var count int64
	for _, attempt := range f.attempts {
		if attempt.IntentID == intentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	f.attempts = append(f.attempts, *attempt)
	return nil
}

func (f *fakeRepo) ListSucceededWithoutPayment(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error) {
	var out []models.PaymentIntent
	for _, intent := range f.intents {
		if intent.Status == enums.IntentStatusSucceeded && intent.PaymentID == nil {
			out = append(out, *intent)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListStaleNonTerminal(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error) {
	return nil, nil
}

type fakeTx struct{}

func (f *fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeGateway struct {
	createFn    func(params gateway.IntentCreateParams) (*stripe.PaymentIntent, error)
	fetchFn     func(id string) (*stripe.PaymentIntent, error)
	cancelCalls int
	cancelErr   error
}

func (f *fakeGateway) CreateIntent(ctx context.Context, params gateway.IntentCreateParams) (*stripe.PaymentIntent, error) {
	if f.createFn != nil {
		return f.createFn(params)
	}
	return &stripe.PaymentIntent{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil
}

func (f *fakeGateway) FetchIntent(ctx context.Context, gatewayIntentID string) (*stripe.PaymentIntent, error) {
	if f.fetchFn != nil {
		return f.fetchFn(gatewayIntentID)
	}
	return &stripe.PaymentIntent{ID: gatewayIntentID, Status: stripe.PaymentIntentStatusProcessing}, nil
}

func (f *fakeGateway) CancelIntent(ctx context.Context, gatewayIntentID, reason string) (*stripe.PaymentIntent, error) {
	f.cancelCalls++
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &stripe.PaymentIntent{ID: gatewayIntentID, Status: stripe.PaymentIntentStatusCanceled}, nil
}

func (f *fakeGateway) MerchantRef() string { return "acct_test" }

type fakeInvoices struct {
	invoices map[uuid.UUID]*models.Invoice
}

func (f *fakeInvoices) FindInvoice(ctx context.Context, workspaceID, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, ok := f.invoices[invoiceID]
	if !ok || invoice.WorkspaceID != workspaceID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *invoice
	return &copied, nil
}

type fakeLedger struct {
	calls int
	err   error
}

func (f *fakeLedger) RecordSucceeded(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, gatewayDetails json.RawMessage) (*models.Payment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Payment{ID: uuid.New(), InvoiceID: intent.InvoiceID, AmountCents: intent.AmountCents}, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type serviceFixture struct {
	svc      Service
	repo     *fakeRepo
	gateway  *fakeGateway
	invoices *fakeInvoices
	ledger   *fakeLedger
	outbox   *fakeOutbox
}

func newFixture(t *testing.T, enforceCap bool) *serviceFixture {
	t.Helper()
	repo := newFakeRepo()
	gw := &fakeGateway{}
	invoices := &fakeInvoices{invoices: map[uuid.UUID]*models.Invoice{}}
	ledger := &fakeLedger{}
	ob := &fakeOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Tx:                &fakeTx{},
		Gateway:           gw,
		Invoices:          invoices,
		Ledger:            ledger,
		Outbox:            ob,
		EnforceInvoiceCap: enforceCap,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return &serviceFixture{svc: svc, repo: repo, gateway: gw, invoices: invoices, ledger: ledger, outbox: ob}
}

func (fx *serviceFixture) seedInvoice(totalCents int64) *models.Invoice {
	invoice := &models.Invoice{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Number:      "INV-1001",
		TotalCents:  totalCents,
		Currency:    enums.CurrencyUSD,
		Status:      enums.InvoiceStatusSent,
	}
	fx.invoices.invoices[invoice.ID] = invoice
	return invoice
}

func (fx *serviceFixture) seedIntent(invoice *models.Invoice, status enums.IntentStatus) *models.PaymentIntent {
	intent := &models.PaymentIntent{
		ID:              uuid.New(),
		WorkspaceID:     invoice.WorkspaceID,
		InvoiceID:       invoice.ID,
		GatewayIntentID: "pi_" + uuid.NewString()[:8],
		AmountCents:     invoice.TotalCents,
		Currency:        invoice.Currency,
		Status:          status,
		PaymentType:     enums.PaymentTypeFull,
		CreatedBy:       uuid.New(),
	}
	fx.repo.intents[intent.ID] = intent
	return intent
}

func TestService_CreateSuccess(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)

	result, err := fx.svc.Create(context.Background(), CreateIntentInput{
		WorkspaceID: invoice.WorkspaceID,
		InvoiceID:   invoice.ID,
		AmountCents: 10000,
		Currency:    enums.CurrencyUSD,
		PaymentType: enums.PaymentTypeFull,
		CreatedBy:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if result.ClientSecret != "pi_test_1_secret" {
		t.Fatalf("unexpected client secret %q", result.ClientSecret)
	}
	if result.Intent.GatewayIntentID != "pi_test_1" {
		t.Fatalf("unexpected gateway intent id %q", result.Intent.GatewayIntentID)
	}
	if result.Intent.Status != enums.IntentStatusRequiresPaymentMethod {
		t.Fatalf("unexpected status %s", result.Intent.Status)
	}
	if len(fx.repo.history) != 1 || fx.repo.history[0].Reason != enums.ReasonIntentCreated {
		t.Fatalf("expected one intent_created history entry, got %+v", fx.repo.history)
	}
}

func TestService_CreateValidation(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	base := CreateIntentInput{
		WorkspaceID: invoice.WorkspaceID,
		InvoiceID:   invoice.ID,
		AmountCents: 5000,
		Currency:    enums.CurrencyUSD,
		CreatedBy:   uuid.New(),
	}

	tests := []struct {
		name     string
		mutate   func(input *CreateIntentInput)
		wantCode pkgerrors.Code
	}{
		{
			name:     "zero amount",
			mutate:   func(in *CreateIntentInput) { in.AmountCents = 0 },
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "negative amount",
			mutate:   func(in *CreateIntentInput) { in.AmountCents = -100 },
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "amount exceeds invoice total",
			mutate:   func(in *CreateIntentInput) { in.AmountCents = 10001 },
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "currency mismatch",
			mutate:   func(in *CreateIntentInput) { in.Currency = enums.CurrencyEUR },
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "unknown invoice",
			mutate:   func(in *CreateIntentInput) { in.InvoiceID = uuid.New() },
			wantCode: pkgerrors.CodeNotFound,
		},
		{
			name: "deposit without percentage",
			mutate: func(in *CreateIntentInput) {
				in.PaymentType = enums.PaymentTypeDeposit
				in.DepositPercentage = 0
			},
			wantCode: pkgerrors.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := base
			tc.mutate(&input)
			_, err := fx.svc.Create(context.Background(), input)
			if err == nil {
				t.Fatal("expected error")
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tc.wantCode {
				t.Fatalf("expected code %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestService_CreateCapBypass(t *testing.T) {
	fx := newFixture(t, false)
	invoice := fx.seedInvoice(10000)

	if _, err := fx.svc.Create(context.Background(), CreateIntentInput{
		WorkspaceID: invoice.WorkspaceID,
		InvoiceID:   invoice.ID,
		AmountCents: 20000,
		Currency:    enums.CurrencyUSD,
		CreatedBy:   uuid.New(),
	}); err != nil {
		t.Fatalf("expected cap bypass to allow overpayment intent, got %v", err)
	}
}

func TestService_ApplySucceededBooksLedgerOnce(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusProcessing)

	updated, err := fx.svc.ApplyGatewayUpdate(context.Background(), ApplyUpdateInput{
		GatewayIntentID: intent.GatewayIntentID,
		EventID:         "evt_1",
		EventType:       "payment_intent.succeeded",
		IncomingStatus:  enums.IntentStatusSucceeded,
	})
	if err != nil {
		t.Fatalf("ApplyGatewayUpdate error: %v", err)
	}
	if updated.Status != enums.IntentStatusSucceeded || !updated.Used {
		t.Fatalf("expected succeeded+used, got %+v", updated)
	}
	if updated.PaymentID == nil {
		t.Fatal("expected ledger entry linked")
	}
	if fx.ledger.calls != 1 {
		t.Fatalf("expected exactly one ledger call, got %d", fx.ledger.calls)
	}
	stored := fx.repo.intents[intent.ID]
	if stored.Status != enums.IntentStatusSucceeded || !stored.Used {
		t.Fatalf("expected persisted transition, got %+v", stored)
	}
	event := fx.repo.events[fx.repo.eventKey(intent.ID, "evt_1")]
	if event == nil || !event.Processed {
		t.Fatal("expected webhook event marked processed")
	}
}

func TestService_DuplicateEventAppliedOnce(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusProcessing)

	input := ApplyUpdateInput{
		GatewayIntentID: intent.GatewayIntentID,
		EventID:         "evt_dup",
		EventType:       "payment_intent.succeeded",
		IncomingStatus:  enums.IntentStatusSucceeded,
	}
	if _, err := fx.svc.ApplyGatewayUpdate(context.Background(), input); err != nil {
		t.Fatalf("first delivery error: %v", err)
	}
	if _, err := fx.svc.ApplyGatewayUpdate(context.Background(), input); err != nil {
		t.Fatalf("second delivery error: %v", err)
	}

	if fx.ledger.calls != 1 {
		t.Fatalf("expected exactly one ledger call, got %d", fx.ledger.calls)
	}
	entries, _ := fx.repo.ListStatusHistory(context.Background(), intent.ID)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one history append, got %d", len(entries))
	}
}

func TestService_TerminalStateNeverOverwritten(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusSucceeded)
	paymentID := uuid.New()
	intent.Used = true
	intent.PaymentID = &paymentID

	updated, err := fx.svc.ApplyGatewayUpdate(context.Background(), ApplyUpdateInput{
		GatewayIntentID: intent.GatewayIntentID,
		EventID:         "evt_late_cancel",
		EventType:       "payment_intent.canceled",
		IncomingStatus:  enums.IntentStatusCanceled,
	})
	if err != nil {
		t.Fatalf("ApplyGatewayUpdate error: %v", err)
	}
	if updated.Status != enums.IntentStatusSucceeded {
		t.Fatalf("terminal status overwritten: %s", updated.Status)
	}
	if !updated.Used || updated.PaymentID == nil || *updated.PaymentID != paymentID {
		t.Fatal("ledger linkage changed on terminal no-op")
	}
	// Event is still logged and acknowledged.
	event := fx.repo.events[fx.repo.eventKey(intent.ID, "evt_late_cancel")]
	if event == nil || !event.Processed {
		t.Fatal("expected no-op event logged and marked processed")
	}
	if fx.ledger.calls != 0 {
		t.Fatalf("ledger must not run on terminal no-op, got %d calls", fx.ledger.calls)
	}
}

func TestService_ApplyAmountImmutable(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusRequiresPaymentMethod)

	statuses := []enums.IntentStatus{
		enums.IntentStatusRequiresConfirmation,
		enums.IntentStatusRequiresAction,
		enums.IntentStatusProcessing,
		enums.IntentStatusSucceeded,
	}
	for i, status := range statuses {
		if _, err := fx.svc.ApplyGatewayUpdate(context.Background(), ApplyUpdateInput{
			GatewayIntentID: intent.GatewayIntentID,
			EventID:         uuid.NewString(),
			EventType:       "payment_intent.updated",
			IncomingStatus:  status,
		}); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	stored := fx.repo.intents[intent.ID]
	if stored.AmountCents != intent.AmountCents || stored.Currency != intent.Currency {
		t.Fatal("amount or currency changed during event application")
	}
}

func TestService_ApplyUnknownIntent(t *testing.T) {
	fx := newFixture(t, true)
	_, err := fx.svc.ApplyGatewayUpdate(context.Background(), ApplyUpdateInput{
		GatewayIntentID: "pi_missing",
		EventID:         "evt_1",
		IncomingStatus:  enums.IntentStatusProcessing,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_CancelAlreadySucceeded(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusSucceeded)

	_, err := fx.svc.Cancel(context.Background(), CancelIntentInput{
		WorkspaceID: invoice.WorkspaceID,
		IntentID:    intent.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if fx.gateway.cancelCalls != 0 {
		t.Fatal("gateway cancel must not be called for succeeded intent")
	}
	if fx.repo.intents[intent.ID].Status != enums.IntentStatusSucceeded {
		t.Fatal("intent state changed by rejected cancel")
	}
}

func TestService_CancelAlreadyCanceled(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusCanceled)

	_, err := fx.svc.Cancel(context.Background(), CancelIntentInput{
		WorkspaceID: invoice.WorkspaceID,
		IntentID:    intent.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_CancelSuccess(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusRequiresConfirmation)

	canceled, err := fx.svc.Cancel(context.Background(), CancelIntentInput{
		WorkspaceID: invoice.WorkspaceID,
		IntentID:    intent.ID,
		Reason:      enums.CancellationReasonDuplicate,
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if canceled.Status != enums.IntentStatusCanceled {
		t.Fatalf("expected canceled, got %s", canceled.Status)
	}
	if canceled.CanceledAt == nil || canceled.CancellationReason == nil || *canceled.CancellationReason != enums.CancellationReasonDuplicate {
		t.Fatalf("cancellation metadata missing: %+v", canceled)
	}
	if fx.gateway.cancelCalls != 1 {
		t.Fatalf("expected one gateway cancel call, got %d", fx.gateway.cancelCalls)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventIntentCanceled {
		t.Fatalf("expected intent_canceled outbox event, got %+v", fx.outbox.events)
	}
}

func TestService_RecordAttemptIncrements(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusRequiresPaymentMethod)

	errMsg := "card_declined"
	first, err := fx.svc.RecordAttempt(context.Background(), RecordAttemptInput{
		WorkspaceID:  invoice.WorkspaceID,
		IntentID:     intent.ID,
		Status:       enums.IntentStatusFailed,
		ErrorMessage: &errMsg,
	})
	if err != nil {
		t.Fatalf("RecordAttempt error: %v", err)
	}
	second, err := fx.svc.RecordAttempt(context.Background(), RecordAttemptInput{
		WorkspaceID: invoice.WorkspaceID,
		IntentID:    intent.ID,
		Status:      enums.IntentStatusProcessing,
	})
	if err != nil {
		t.Fatalf("RecordAttempt error: %v", err)
	}
	if first.AttemptNumber != 1 || second.AttemptNumber != 2 {
		t.Fatalf("expected attempt numbers 1 and 2, got %d and %d", first.AttemptNumber, second.AttemptNumber)
	}
	// Attempts never touch the top-level status.
	if fx.repo.intents[intent.ID].Status != enums.IntentStatusRequiresPaymentMethod {
		t.Fatal("attempt changed intent status")
	}
}

func TestService_RepairLedgerLink(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusSucceeded)

	if err := fx.svc.RepairLedgerLink(context.Background(), *intent); err != nil {
		t.Fatalf("RepairLedgerLink error: %v", err)
	}
	if fx.ledger.calls != 1 {
		t.Fatalf("expected one ledger call, got %d", fx.ledger.calls)
	}
	stored := fx.repo.intents[intent.ID]
	if stored.PaymentID == nil || !stored.Used {
		t.Fatal("expected repaired ledger linkage")
	}

	// A second pass is a no-op once the link exists.
	if err := fx.svc.RepairLedgerLink(context.Background(), *stored); err != nil {
		t.Fatalf("second RepairLedgerLink error: %v", err)
	}
	if fx.ledger.calls != 1 {
		t.Fatalf("repair reran reconciliation, got %d calls", fx.ledger.calls)
	}
}

func TestService_SyncWithGatewayNoChange(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusProcessing)

	fx.gateway.fetchFn = func(id string) (*stripe.PaymentIntent, error) {
		return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusProcessing}, nil
	}
	if err := fx.svc.SyncWithGateway(context.Background(), *intent); err != nil {
		t.Fatalf("SyncWithGateway error: %v", err)
	}
	entries, _ := fx.repo.ListStatusHistory(context.Background(), intent.ID)
	if len(entries) != 0 {
		t.Fatalf("expected no history for matching status, got %d", len(entries))
	}
}

func TestService_SyncWithGatewayRepairs(t *testing.T) {
	fx := newFixture(t, true)
	invoice := fx.seedInvoice(10000)
	intent := fx.seedIntent(invoice, enums.IntentStatusProcessing)

	fx.gateway.fetchFn = func(id string) (*stripe.PaymentIntent, error) {
		return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
	}
	if err := fx.svc.SyncWithGateway(context.Background(), *intent); err != nil {
		t.Fatalf("SyncWithGateway error: %v", err)
	}
	stored := fx.repo.intents[intent.ID]
	if stored.Status != enums.IntentStatusSucceeded {
		t.Fatalf("expected repaired status succeeded, got %s", stored.Status)
	}
	entries, _ := fx.repo.ListStatusHistory(context.Background(), intent.ID)
	if len(entries) != 1 || entries[0].Reason != enums.ReasonReconciliationRepaired {
		t.Fatalf("expected reconciliation_repaired history, got %+v", entries)
	}
	if fx.ledger.calls != 1 {
		t.Fatalf("expected ledger booked during repair, got %d calls", fx.ledger.calls)
	}
}
