package payments

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/api/responses"
	"github.com/angelmondragon/ledgerpay-backend/api/validators"
	"github.com/angelmondragon/ledgerpay-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
	"github.com/angelmondragon/ledgerpay-backend/pkg/logger"
)

type createRefundRequest struct {
	AmountCents int64   `json:"amountCents,omitempty" validate:"omitempty,gt=0"`
	Note        *string `json:"note,omitempty"`
}

// ListByInvoice returns the invoice's ledger entries in sequence order.
func ListByInvoice(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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

		list, err := svc.ListByInvoice(r.Context(), workspaceID, invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CreateRefund books a compensating refund entry against a completed payment.
func CreateRefund(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		workspaceID, err := parsePathUUID(r, "workspaceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := parsePathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.CreateRefund(r.Context(), ledger.CreateRefundInput{
			WorkspaceID: workspaceID,
			PaymentID:   paymentID,
			AmountCents: req.AmountCents,
			Note:        req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refund)
	}
}

// MarkReceiptSent records that a payment receipt was delivered.
func MarkReceiptSent(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return receiptMarker(svc, logg, func(r *http.Request, workspaceID, paymentID uuid.UUID) error {
		return svc.MarkReceiptSent(r.Context(), workspaceID, paymentID)
	})
}

// MarkReceiptViewed records that the payer opened the receipt.
func MarkReceiptViewed(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return receiptMarker(svc, logg, func(r *http.Request, workspaceID, paymentID uuid.UUID) error {
		return svc.MarkReceiptViewed(r.Context(), workspaceID, paymentID)
	})
}

func receiptMarker(svc ledger.Service, logg *logger.Logger, mark func(*http.Request, uuid.UUID, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		workspaceID, err := parsePathUUID(r, "workspaceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := parsePathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := mark(r, workspaceID, paymentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
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
