package intents

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/api/responses"
	"github.com/angelmondragon/ledgerpay-backend/api/validators"
	internalintents "github.com/angelmondragon/ledgerpay-backend/internal/intents"
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
	"github.com/angelmondragon/ledgerpay-backend/pkg/logger"
)

type createIntentRequest struct {
	AmountCents       int64   `json:"amountCents" validate:"required,gt=0"`
	Currency          string  `json:"currency" validate:"required"`
	PaymentType       string  `json:"paymentType,omitempty"`
	DepositPercentage int     `json:"depositPercentage,omitempty" validate:"omitempty,min=1,max=100"`
	CustomerName      *string `json:"customerName,omitempty"`
	CustomerEmail     *string `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CreatedBy         string  `json:"createdBy" validate:"required,uuid"`
}

type cancelIntentRequest struct {
	Reason string  `json:"reason,omitempty"`
	Note   *string `json:"note,omitempty"`
}

type recordAttemptRequest struct {
	Status           string  `json:"status" validate:"required"`
	ErrorMessage     *string `json:"errorMessage,omitempty"`
	PaymentMethodRef *string `json:"paymentMethodRef,omitempty"`
}

// Create opens a payment intent against an invoice and returns the stored
// row plus the gateway client secret.
func Create(svc internalintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		workspaceID, err := parsePathUUID(r, "workspaceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := parsePathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := enums.ParseCurrency(req.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}
		paymentType := enums.PaymentTypeFull
		if req.PaymentType != "" {
			paymentType, err = enums.ParsePaymentType(req.PaymentType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment type"))
				return
			}
		}
		createdBy, err := uuid.Parse(req.CreatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid createdBy"))
			return
		}

		result, err := svc.Create(r.Context(), internalintents.CreateIntentInput{
			WorkspaceID:       workspaceID,
			InvoiceID:         invoiceID,
			AmountCents:       req.AmountCents,
			Currency:          currency,
			PaymentType:       paymentType,
			DepositPercentage: req.DepositPercentage,
			CustomerName:      req.CustomerName,
			CustomerEmail:     req.CustomerEmail,
			IdempotencyKey:    strings.TrimSpace(r.Header.Get("Idempotency-Key")),
			CreatedBy:         createdBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"intent":       result.Intent,
			"clientSecret": result.ClientSecret,
		})
	}
}

// Detail returns a single intent scoped to the workspace.
func Detail(svc internalintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		workspaceID, err := parsePathUUID(r, "workspaceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intentID, err := parsePathUUID(r, "intentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.Get(r.Context(), workspaceID, intentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// ListByInvoice returns the invoice's intents, optionally filtered by status.
func ListByInvoice(svc internalintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		workspaceID, err := parsePathUUID(r, "workspaceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := parsePathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var statusFilter *enums.IntentStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseIntentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			statusFilter = &status
		}

		list, err := svc.ListByInvoice(r.Context(), workspaceID, invoiceID, statusFilter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Cancel voids a cancelable intent at the gateway and locally.
func Cancel(svc internalintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		workspaceID, err := parsePathUUID(r, "workspaceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intentID, err := parsePathUUID(r, "intentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var reason enums.CancellationReason
		if req.Reason != "" {
			reason, err = enums.ParseCancellationReason(req.Reason)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cancellation reason"))
				return
			}
		}

		intent, err := svc.Cancel(r.Context(), internalintents.CancelIntentInput{
			WorkspaceID: workspaceID,
			IntentID:    intentID,
			Reason:      reason,
			Note:        req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// RecordAttempt appends a client-reported payment attempt to the intent log.
func RecordAttempt(svc internalintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		workspaceID, err := parsePathUUID(r, "workspaceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intentID, err := parsePathUUID(r, "intentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req recordAttemptRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseIntentStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attempt status"))
			return
		}

		attempt, err := svc.RecordAttempt(r.Context(), internalintents.RecordAttemptInput{
			WorkspaceID:      workspaceID,
			IntentID:         intentID,
			Status:           status,
			ErrorMessage:     req.ErrorMessage,
			PaymentMethodRef: req.PaymentMethodRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, attempt)
	}
}

func parsePathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
