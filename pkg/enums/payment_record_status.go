package enums

import "fmt"

// PaymentRecordStatus tracks the post-creation state of a ledger entry.
// Amounts are immutable; only the status and receipt tracking may move.
type PaymentRecordStatus string

const (
	PaymentRecordStatusCompleted PaymentRecordStatus = "completed"
	PaymentRecordStatusRefunded  PaymentRecordStatus = "refunded"
	PaymentRecordStatusDisputed  PaymentRecordStatus = "disputed"
)

var validPaymentRecordStatuses = []PaymentRecordStatus{
	PaymentRecordStatusCompleted,
	PaymentRecordStatusRefunded,
	PaymentRecordStatusDisputed,
}

// String implements fmt.Stringer.
func (s PaymentRecordStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentRecordStatus.
func (s PaymentRecordStatus) IsValid() bool {
	for _, candidate := range validPaymentRecordStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentRecordStatus converts raw input into a PaymentRecordStatus.
func ParsePaymentRecordStatus(value string) (PaymentRecordStatus, error) {
	for _, candidate := range validPaymentRecordStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment record status %q", value)
}
