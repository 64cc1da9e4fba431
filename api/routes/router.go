package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ledgerpay-backend/api/controllers"
	intentcontrollers "github.com/angelmondragon/ledgerpay-backend/api/controllers/intents"
	paymentcontrollers "github.com/angelmondragon/ledgerpay-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/ledgerpay-backend/api/controllers/webhooks"
	"github.com/angelmondragon/ledgerpay-backend/api/middleware"
	internalintents "github.com/angelmondragon/ledgerpay-backend/internal/intents"
	"github.com/angelmondragon/ledgerpay-backend/internal/ledger"
	gatewaywebhook "github.com/angelmondragon/ledgerpay-backend/internal/webhooks/gateway"
	"github.com/angelmondragon/ledgerpay-backend/pkg/config"
	"github.com/angelmondragon/ledgerpay-backend/pkg/db"
	"github.com/angelmondragon/ledgerpay-backend/pkg/gateway"
	"github.com/angelmondragon/ledgerpay-backend/pkg/logger"
	"github.com/angelmondragon/ledgerpay-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerpay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idemStore redis.IdempotencyStore,
	rateStore middleware.RateLimiterStore,
	gatewayClient *gateway.Client,
	intentsSvc internalintents.Service,
	ledgerSvc ledger.Service,
	webhookSvc *gatewaywebhook.Service,
	webhookGuard *gatewaywebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(webhookSvc, gatewayClient, webhookGuard, logg, webhookMetrics))
	})

	r.Route("/api/v1/workspaces/{workspaceId}", func(r chi.Router) {
		rateLimitPolicy := middleware.NewRateLimitPolicy(
			"payments",
			cfg.RateLimit.Window,
			cfg.RateLimit.IPLimit,
			cfg.RateLimit.WorkspaceLimit,
		)
		r.Use(
			middleware.RateLimit(rateLimitPolicy, rateStore, logg),
			middleware.Idempotency(idemStore, logg),
		)

		r.Route("/invoices/{invoiceId}", func(r chi.Router) {
			r.Post("/intents", intentcontrollers.Create(intentsSvc, logg))
			r.Get("/intents", intentcontrollers.ListByInvoice(intentsSvc, logg))
			r.Get("/payments", paymentcontrollers.ListByInvoice(ledgerSvc, logg))
		})

		r.Route("/intents/{intentId}", func(r chi.Router) {
			r.Get("/", intentcontrollers.Detail(intentsSvc, logg))
			r.Post("/cancel", intentcontrollers.Cancel(intentsSvc, logg))
			r.Post("/attempts", intentcontrollers.RecordAttempt(intentsSvc, logg))
		})

		r.Route("/payments/{paymentId}", func(r chi.Router) {
			r.Post("/refunds", paymentcontrollers.CreateRefund(ledgerSvc, logg))
			r.Post("/receipt/sent", paymentcontrollers.MarkReceiptSent(ledgerSvc, logg))
			r.Post("/receipt/viewed", paymentcontrollers.MarkReceiptViewed(ledgerSvc, logg))
		})
	})

	return r
}
