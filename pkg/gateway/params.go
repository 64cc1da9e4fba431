package gateway

import (
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// IntentCreateParams contains the fields required to open a payment intent.
type IntentCreateParams struct {
	AmountCents        int64
	Currency           string
	CaptureMethod      string
	ConfirmationMethod string
	Description        string
	CustomerEmail      string
	InvoiceRef         string
	IdempotencyKey     string
	Metadata           map[string]string
}

func (p IntentCreateParams) toGatewayParams(idempotencyKey string) *stripe.PaymentIntentParams {
	req := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(currencyCode(p.Currency)),
	}
	req.IdempotencyKey = stripe.String(idempotencyKey)
	if trimmed := strings.TrimSpace(p.CaptureMethod); trimmed != "" {
		req.CaptureMethod = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ConfirmationMethod); trimmed != "" {
		req.ConfirmationMethod = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Description); trimmed != "" {
		req.Description = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(p.CustomerEmail); trimmed != "" {
		req.ReceiptEmail = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(p.InvoiceRef); trimmed != "" {
		req.AddMetadata("invoice_ref", trimmed)
	}
	for k, v := range p.Metadata {
		req.AddMetadata(k, v)
	}
	return req
}

func currencyCode(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" {
		return "usd"
	}
	return code
}
