package gateway

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	// Provided key should be used verbatim.
	if got := c.ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	// Empty key should be generated and include prefix.
	if got := c.ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	out := c.redact("payment_token", "abc123")
	if out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	// Non-sensitive keys should be preserved.
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapGatewayError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		err      *stripe.Error
		wantCode pkgerrors.Code
	}{
		{
			name:     "card declined",
			err:      &stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired},
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "idempotency reuse",
			err:      &stripe.Error{Type: stripe.ErrorTypeIdempotency, HTTPStatusCode: http.StatusBadRequest},
			wantCode: pkgerrors.CodeIdempotency,
		},
		{
			name:     "bad credentials",
			err:      &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusUnauthorized},
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "gateway outage",
			err:      &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusServiceUnavailable},
			wantCode: pkgerrors.CodeDependency,
		},
	}
	for _, tt := range table {
		mapped := c.mapGatewayError(tt.err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestCancellationReasonParam(t *testing.T) {
	if got := cancellationReasonParam("duplicate"); got != "duplicate" {
		t.Fatalf("expected duplicate passthrough, got %q", got)
	}
	if got := cancellationReasonParam("expired"); got != "" {
		t.Fatalf("expected expired to be dropped, got %q", got)
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := validateAPIKey(testEnv, "sk_test_abc"); err != nil {
		t.Fatalf("unexpected error for test key: %v", err)
	}
	if err := validateAPIKey(testEnv, "sk_live_abc"); err == nil {
		t.Fatal("expected live key rejected in test env")
	}
	if err := validateAPIKey(liveEnv, "sk_live_abc"); err != nil {
		t.Fatalf("unexpected error for live key: %v", err)
	}
}

func TestIntentCreateParamsDefaults(t *testing.T) {
	p := IntentCreateParams{AmountCents: 2500}
	req := p.toGatewayParams("key-1")
	if req.Amount == nil || *req.Amount != 2500 {
		t.Fatal("expected amount to carry over")
	}
	if req.Currency == nil || *req.Currency != "usd" {
		t.Fatal("expected currency to default to usd")
	}
	if req.IdempotencyKey == nil || *req.IdempotencyKey != "key-1" {
		t.Fatal("expected idempotency key to be set")
	}
}
