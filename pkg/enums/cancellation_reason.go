package enums

import "fmt"

// CancellationReason explains why an intent was moved to canceled.
type CancellationReason string

const (
	CancellationReasonRequestedByCustomer CancellationReason = "requested_by_customer"
	CancellationReasonDuplicate           CancellationReason = "duplicate"
	CancellationReasonFraudulent          CancellationReason = "fraudulent"
	CancellationReasonAbandoned           CancellationReason = "abandoned"
	CancellationReasonExpired             CancellationReason = "expired"
)

var validCancellationReasons = []CancellationReason{
	CancellationReasonRequestedByCustomer,
	CancellationReasonDuplicate,
	CancellationReasonFraudulent,
	CancellationReasonAbandoned,
	CancellationReasonExpired,
}

// String implements fmt.Stringer.
func (r CancellationReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known CancellationReason.
func (r CancellationReason) IsValid() bool {
	for _, candidate := range validCancellationReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseCancellationReason converts raw input into a CancellationReason.
func ParseCancellationReason(value string) (CancellationReason, error) {
	for _, candidate := range validCancellationReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancellation reason %q", value)
}
