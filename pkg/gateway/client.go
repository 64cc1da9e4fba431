package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/ledgerpay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
	"github.com/angelmondragon/ledgerpay-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired  = errors.New("gateway api key is required")
	errSecretRequired  = errors.New("gateway webhook secret is required")
	errInvalidEnv      = fmt.Errorf("gateway environment must be %q or %q", testEnv, liveEnv)
	errLoggerRequired  = errors.New("gateway logger is required")
	errIntentIDMissing = pkgerrors.New(pkgerrors.CodeValidation, "gateway intent id is required")
)

// Client wraps the payment gateway with centralized auth, logging,
// idempotency, and error mapping.
type Client struct {
	apiKey        string
	environment   string
	webhookSecret string
	merchantRef   string
	logger        *logger.Logger
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	c := &Client{
		apiKey:        apiKey,
		environment:   env,
		webhookSecret: webhookSecret,
		merchantRef:   strings.TrimSpace(cfg.MerchantRef),
		logger:        logg,
	}

	logg.Info(ctx, fmt.Sprintf("gateway client initialized (%s)", env))
	return c, nil
}

// Environment reports the normalized gateway environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// MerchantRef returns the configured merchant account reference.
func (c *Client) MerchantRef() string {
	if c == nil {
		return ""
	}
	return c.merchantRef
}

// NewIdempotencyKey returns a unique key for gateway operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "lp"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreateIntent registers a payment intent with the gateway.
func (c *Client) CreateIntent(ctx context.Context, params IntentCreateParams) (*stripe.PaymentIntent, error) {
	req := params.toGatewayParams(c.ensureIdempotencyKey("intent.create", params.IdempotencyKey))
	req.Context = ctx
	c.log(ctx, "request", "create_intent", map[string]any{
		"amount":   params.AmountCents,
		"currency": params.Currency,
	})

	intent, err := paymentintent.New(req)
	if err != nil {
		c.log(ctx, "error", "create_intent", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "create intent")
	}

	c.log(ctx, "response", "create_intent", map[string]any{
		"intent_id": intent.ID,
		"status":    string(intent.Status),
	})
	return intent, nil
}

// FetchIntent retrieves the gateway's current view of an intent.
func (c *Client) FetchIntent(ctx context.Context, gatewayIntentID string) (*stripe.PaymentIntent, error) {
	id := strings.TrimSpace(gatewayIntentID)
	if id == "" {
		return nil, errIntentIDMissing
	}
	req := &stripe.PaymentIntentParams{}
	req.Context = ctx
	c.log(ctx, "request", "fetch_intent", map[string]any{"intent_id": id})

	intent, err := paymentintent.Get(id, req)
	if err != nil {
		c.log(ctx, "error", "fetch_intent", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "fetch intent")
	}

	c.log(ctx, "response", "fetch_intent", map[string]any{
		"intent_id": intent.ID,
		"status":    string(intent.Status),
	})
	return intent, nil
}

// CancelIntent voids an intent at the gateway.
func (c *Client) CancelIntent(ctx context.Context, gatewayIntentID, reason string) (*stripe.PaymentIntent, error) {
	id := strings.TrimSpace(gatewayIntentID)
	if id == "" {
		return nil, errIntentIDMissing
	}
	req := &stripe.PaymentIntentCancelParams{}
	req.Context = ctx
	if mapped := cancellationReasonParam(reason); mapped != "" {
		req.CancellationReason = stripe.String(mapped)
	}
	c.log(ctx, "request", "cancel_intent", map[string]any{"intent_id": id, "reason": reason})

	intent, err := paymentintent.Cancel(id, req)
	if err != nil {
		c.log(ctx, "error", "cancel_intent", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "cancel intent")
	}

	c.log(ctx, "response", "cancel_intent", map[string]any{
		"intent_id": intent.ID,
		"status":    string(intent.Status),
	})
	return intent, nil
}

// VerifyEvent checks the webhook signature and decodes the event payload.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, c.SigningSecret())
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify webhook signature")
	}
	return event, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapGatewayError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.HTTPStatusCode)
		switch {
		case apiErr.Type == stripe.ErrorTypeCard:
			// Declines are caller-visible rejections, not outages.
			code = pkgerrors.CodeValidation
		case apiErr.Type == stripe.ErrorTypeIdempotency:
			code = pkgerrors.CodeIdempotency
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("gateway %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("gateway %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

// cancellationReasonParam maps internal reasons onto the values the gateway
// accepts. Expiry is gateway-initiated so it is never sent back.
func cancellationReasonParam(reason string) string {
	switch strings.TrimSpace(strings.ToLower(reason)) {
	case "requested_by_customer", "duplicate", "fraudulent", "abandoned":
		return strings.TrimSpace(strings.ToLower(reason))
	default:
		return ""
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("gateway environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("gateway environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidEnv
	}
}
