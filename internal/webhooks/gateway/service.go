package gatewaywebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/ledgerpay-backend/internal/intents"
	"github.com/angelmondragon/ledgerpay-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
	"github.com/angelmondragon/ledgerpay-backend/pkg/logger"
	"github.com/angelmondragon/ledgerpay-backend/pkg/metrics"
)

type intentApplier interface {
	ApplyGatewayUpdate(ctx context.Context, input intents.ApplyUpdateInput) (*models.PaymentIntent, error)
}

type ServiceParams struct {
	Intents intentApplier
	Logger  *logger.Logger
	Metrics *metrics.ReconciliationMetrics
}

// Service translates verified gateway events into intent lifecycle updates.
type Service struct {
	intents intentApplier
	logger  *logger.Logger
	metrics *metrics.ReconciliationMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intent service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		intents: params.Intents,
		logger:  params.Logger,
		metrics: params.Metrics,
	}, nil
}

// HandleEvent applies a payment intent event to the local lifecycle. Events
// for object types the engine does not track are acknowledged untouched, and
// events for intents this system never created are logged and acknowledged so
// the gateway stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event data required")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}

	incoming, tracked := statusForEvent(event.Type, &pi)
	if !tracked {
		return nil
	}
	if pi.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway intent id missing from event")
	}

	input := intents.ApplyUpdateInput{
		GatewayIntentID: pi.ID,
		EventID:         event.ID,
		EventType:       string(event.Type),
		IncomingStatus:  incoming,
		Note:            failureNote(&pi),
		GatewayDetails:  json.RawMessage(event.Data.Raw),
	}
	if incoming == enums.IntentStatusRequiresAction && pi.NextAction != nil {
		if payload, err := json.Marshal(pi.NextAction); err == nil {
			input.NextActionPayload = payload
		}
	}
	if incoming == enums.IntentStatusCanceled {
		if reason, err := enums.ParseCancellationReason(string(pi.CancellationReason)); err == nil {
			input.CancellationReason = &reason
		}
	}

	if _, err := s.intents.ApplyGatewayUpdate(ctx, input); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			logCtx := s.logger.WithFields(ctx, map[string]any{
				"gateway_intent_id": pi.ID,
				"event_id":          event.ID,
				"event_type":        string(event.Type),
			})
			s.logger.Warn(logCtx, "gateway event references unknown intent, acknowledging")
			s.metrics.IncUnknownIntent()
			return nil
		}
		return err
	}
	return nil
}

// statusForEvent maps a gateway event type onto the local intent status. The
// second return is false for event types the engine ignores.
func statusForEvent(eventType stripe.EventType, pi *stripe.PaymentIntent) (enums.IntentStatus, bool) {
	switch eventType {
	case stripe.EventTypePaymentIntentSucceeded:
		return enums.IntentStatusSucceeded, true
	case stripe.EventTypePaymentIntentPaymentFailed:
		return enums.IntentStatusFailed, true
	case stripe.EventTypePaymentIntentCanceled:
		return enums.IntentStatusCanceled, true
	case stripe.EventTypePaymentIntentProcessing:
		return enums.IntentStatusProcessing, true
	case stripe.EventTypePaymentIntentRequiresAction:
		return enums.IntentStatusRequiresAction, true
	case stripe.EventTypePaymentIntentAmountCapturableUpdated:
		return enums.IntentStatusRequiresCapture, true
	case stripe.EventTypePaymentIntentCreated,
		stripe.EventTypePaymentIntentPartiallyFunded:
		// Created events carry whatever status the gateway assigned at
		// creation time; trust the object over the event name.
		if status, err := enums.ParseIntentStatus(string(pi.Status)); err == nil {
			return status, true
		}
		return enums.IntentStatusRequiresPaymentMethod, true
	default:
		return "", false
	}
}

func failureNote(pi *stripe.PaymentIntent) *string {
	if pi.LastPaymentError == nil || pi.LastPaymentError.Msg == "" {
		return nil
	}
	msg := pi.LastPaymentError.Msg
	return &msg
}
