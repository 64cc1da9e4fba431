package enums

import "fmt"

// ReasonCode is the closed set of machine-readable reasons attached to
// status-history entries. Free text rides alongside in a note field so
// downstream consumers can pattern-match on the code instead of parsing prose.
type ReasonCode string

const (
	ReasonIntentCreated          ReasonCode = "intent_created"
	ReasonGatewayUpdate          ReasonCode = "gateway_update"
	ReasonActionRequired         ReasonCode = "action_required"
	ReasonPaymentSucceeded       ReasonCode = "payment_succeeded"
	ReasonPaymentFailed          ReasonCode = "payment_failed"
	ReasonIntentCanceled         ReasonCode = "intent_canceled"
	ReasonInvoicePaid            ReasonCode = "invoice_paid"
	ReasonInvoiceDepositPaid     ReasonCode = "invoice_deposit_paid"
	ReasonInvoicePartiallyPaid   ReasonCode = "invoice_partially_paid"
	ReasonRefundIssued           ReasonCode = "refund_issued"
	ReasonReconciliationRepaired ReasonCode = "reconciliation_repaired"
)

var validReasonCodes = []ReasonCode{
	ReasonIntentCreated,
	ReasonGatewayUpdate,
	ReasonActionRequired,
	ReasonPaymentSucceeded,
	ReasonPaymentFailed,
	ReasonIntentCanceled,
	ReasonInvoicePaid,
	ReasonInvoiceDepositPaid,
	ReasonInvoicePartiallyPaid,
	ReasonRefundIssued,
	ReasonReconciliationRepaired,
}

// String implements fmt.Stringer.
func (r ReasonCode) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReasonCode.
func (r ReasonCode) IsValid() bool {
	for _, candidate := range validReasonCodes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReasonCode converts raw input into a ReasonCode.
func ParseReasonCode(value string) (ReasonCode, error) {
	for _, candidate := range validReasonCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reason code %q", value)
}
