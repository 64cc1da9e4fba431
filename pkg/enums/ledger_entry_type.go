package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypePayment    LedgerEntryType = "payment"
	LedgerEntryTypeDeposit    LedgerEntryType = "deposit"
	LedgerEntryTypeRefund     LedgerEntryType = "refund"
	LedgerEntryTypeAdjustment LedgerEntryType = "adjustment"
	LedgerEntryTypeCredit     LedgerEntryType = "credit"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypePayment,
	LedgerEntryTypeDeposit,
	LedgerEntryTypeRefund,
	LedgerEntryTypeAdjustment,
	LedgerEntryTypeCredit,
}

// String implements fmt.Stringer.
func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
