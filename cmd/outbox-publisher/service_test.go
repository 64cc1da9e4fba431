package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerpay-backend/pkg/config"
	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
	"github.com/angelmondragon/ledgerpay-backend/pkg/logger"
)

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePubSub struct {
	pingErr error
}

func (f *fakePubSub) Ping(context.Context) error { return f.pingErr }

func (f *fakePubSub) PaymentEventsPublisher() *gcppubsub.Publisher { return nil }

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeResult struct {
	err error
}

func (f *fakeResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	errFor   map[string]error
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if err, ok := f.errFor[msg.Attributes["aggregate_id"]]; ok {
		return &fakeResult{err: err}
	}
	return &fakeResult{}
}

func testOutboxConfig() *config.Config {
	return &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 5, MaxAttempts: 3},
	}
}

func testOutboxLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
}

func testOutboxEvent(attempts int) models.OutboxEvent {
	payload, _ := json.Marshal(map[string]any{
		"version":    1,
		"eventId":    uuid.NewString(),
		"occurredAt": time.Now().UTC().Format(time.RFC3339Nano),
		"data":       map[string]any{"amountCents": 5000},
	})
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	base := ServiceParams{
		Config:     testOutboxConfig(),
		Logger:     testOutboxLogger(),
		DB:         &fakeDB{},
		PubSub:     &fakePubSub{},
		Repository: &fakeRepo{},
		Publisher:  &fakePublisher{},
	}

	cases := []struct {
		name   string
		mutate func(p *ServiceParams)
	}{
		{"missing config", func(p *ServiceParams) { p.Config = nil }},
		{"missing logger", func(p *ServiceParams) { p.Logger = nil }},
		{"missing db", func(p *ServiceParams) { p.DB = nil }},
		{"missing pubsub", func(p *ServiceParams) { p.PubSub = nil }},
		{"missing repository", func(p *ServiceParams) { p.Repository = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := base
			tc.mutate(&params)
			if _, err := NewService(params); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := NewService(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	first := testOutboxEvent(0)
	second := testOutboxEvent(1)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}

	svc, err := NewService(ServiceParams{
		Config:     testOutboxConfig(),
		Logger:     testOutboxLogger(),
		DB:         &fakeDB{},
		PubSub:     &fakePubSub{},
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work")
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published, got %d", len(repo.published))
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %d", len(repo.failed))
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.messages))
	}

	msg := pub.messages[0]
	if msg.Attributes["event_type"] != string(first.EventType) {
		t.Fatalf("unexpected event_type attribute %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["aggregate_id"] != first.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute %q", msg.Attributes["aggregate_id"])
	}
	if msg.Attributes["event_id"] == "" {
		t.Fatal("expected event_id attribute from payload envelope")
	}
}

func TestProcessBatchMarksFailedAndContinues(t *testing.T) {
	bad := testOutboxEvent(2)
	good := testOutboxEvent(0)
	repo := &fakeRepo{events: []models.OutboxEvent{bad, good}}
	pub := &fakePublisher{errFor: map[string]error{
		bad.AggregateID.String(): errors.New("topic unavailable"),
	}}

	svc, err := NewService(ServiceParams{
		Config:     testOutboxConfig(),
		Logger:     testOutboxLogger(),
		DB:         &fakeDB{},
		PubSub:     &fakePubSub{},
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work")
	}
	if len(repo.failed) != 1 || repo.failed[0] != bad.ID {
		t.Fatalf("expected failed mark for bad event, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != good.ID {
		t.Fatalf("expected published mark for good event, got %v", repo.published)
	}
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Config:     testOutboxConfig(),
		Logger:     testOutboxLogger(),
		DB:         &fakeDB{},
		PubSub:     &fakePubSub{},
		Repository: &fakeRepo{},
		Publisher:  &fakePublisher{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed {
		t.Fatal("expected idle batch")
	}
}

func TestRunFailsWhenDependencyDown(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Config:     testOutboxConfig(),
		Logger:     testOutboxLogger(),
		DB:         &fakeDB{pingErr: errors.New("connection refused")},
		PubSub:     &fakePubSub{},
		Repository: &fakeRepo{},
		Publisher:  &fakePublisher{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Config:     testOutboxConfig(),
		Logger:     testOutboxLogger(),
		DB:         &fakeDB{},
		PubSub:     &fakePubSub{},
		Repository: &fakeRepo{},
		Publisher:  &fakePublisher{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	got := nextBackoff(0, base, time.Second)
	if got != base*2 {
		t.Fatalf("expected %v got %v", base*2, got)
	}
	got = nextBackoff(800*time.Millisecond, base, time.Second)
	if got != time.Second {
		t.Fatalf("expected cap at 1s got %v", got)
	}
}
