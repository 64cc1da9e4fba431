package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/logger"
	"github.com/angelmondragon/ledgerpay-backend/pkg/metrics"
)

const (
	sweepKindLedgerLink  = "ledger_link"
	sweepKindGatewaySync = "gateway_sync"
)

type sweepCandidateReader interface {
	ListSucceededWithoutPayment(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error)
	ListStaleNonTerminal(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentIntent, error)
}

type intentRepairer interface {
	RepairLedgerLink(ctx context.Context, intent models.PaymentIntent) error
	SyncWithGateway(ctx context.Context, intent models.PaymentIntent) error
}

// ReconcileSweepJobParams configure the compensating reconciliation sweep.
type ReconcileSweepJobParams struct {
	Logger     *logger.Logger
	Reader     sweepCandidateReader
	Repairer   intentRepairer
	Metrics    *metrics.ReconciliationMetrics
	StaleAfter time.Duration
	BatchSize  int
}

// NewReconcileSweepJob builds the job that re-books missing ledger entries
// for succeeded intents and re-syncs stale non-terminal intents against the
// gateway.
func NewReconcileSweepJob(params ReconcileSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("candidate reader required")
	}
	if params.Repairer == nil {
		return nil, fmt.Errorf("intent repairer required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &reconcileSweepJob{
		logg:       params.Logger,
		reader:     params.Reader,
		repairer:   params.Repairer,
		metrics:    params.Metrics,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		now:        time.Now,
	}, nil
}

type reconcileSweepJob struct {
	logg       *logger.Logger
	reader     sweepCandidateReader
	repairer   intentRepairer
	metrics    *metrics.ReconciliationMetrics
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func (j *reconcileSweepJob) Name() string { return "reconcile-sweep" }

func (j *reconcileSweepJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.repairLedgerLinks(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.syncStaleIntents(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *reconcileSweepJob) repairLedgerLinks(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	candidates, err := j.reader.ListSucceededWithoutPayment(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query succeeded intents without ledger entry: %w", err)
	}
	j.metrics.AddScanned(sweepKindLedgerLink, len(candidates))

	var errs []error
	repaired := 0
	for _, intent := range candidates {
		if err := j.repairOne(ctx, intent, sweepKindLedgerLink, j.repairer.RepairLedgerLink); err != nil {
			errs = append(errs, err)
			continue
		}
		repaired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"repaired":   repaired,
	})
	j.logg.Info(logCtx, "ledger link repair loop complete")
	return multierr.Combine(errs...)
}

func (j *reconcileSweepJob) syncStaleIntents(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	candidates, err := j.reader.ListStaleNonTerminal(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale non-terminal intents: %w", err)
	}
	j.metrics.AddScanned(sweepKindGatewaySync, len(candidates))

	var errs []error
	synced := 0
	for _, intent := range candidates {
		if err := j.repairOne(ctx, intent, sweepKindGatewaySync, j.repairer.SyncWithGateway); err != nil {
			errs = append(errs, err)
			continue
		}
		synced++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"synced":     synced,
	})
	j.logg.Info(logCtx, "stale intent sync loop complete")
	return multierr.Combine(errs...)
}

// repairOne retries a failed repair once before alerting. A candidate that
// still fails is reported and skipped so one poisoned row cannot stall the
// rest of the batch.
func (j *reconcileSweepJob) repairOne(ctx context.Context, intent models.PaymentIntent, kind string, fn func(context.Context, models.PaymentIntent) error) error {
	err := fn(ctx, intent)
	if err != nil {
		err = fn(ctx, intent)
	}
	if err != nil {
		j.metrics.IncFailed(kind)
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"intent_id":  intent.ID.String(),
			"invoice_id": intent.InvoiceID.String(),
			"sweep_kind": kind,
		})
		j.logg.Error(logCtx, "reconciliation sweep could not repair intent", err)
		return fmt.Errorf("repair intent %s (%s): %w", intent.ID, kind, err)
	}
	j.metrics.IncRepaired(kind)
	return nil
}
