package ledger

import (
	"fmt"
	"time"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

const (
	receiptTypePayment = "payment_receipt"
	receiptTypeDeposit = "deposit_receipt"
	receiptTypeRefund  = "refund_receipt"
)

// receiptNumber derives a human-referencable receipt identifier from the
// booking time and the per-invoice sequence number.
func receiptNumber(at time.Time, sequence int) string {
	return fmt.Sprintf("RCP-%d-%d", at.Unix(), sequence)
}

func receiptTypeFor(entryType enums.LedgerEntryType) string {
	switch entryType {
	case enums.LedgerEntryTypeDeposit:
		return receiptTypeDeposit
	case enums.LedgerEntryTypeRefund:
		return receiptTypeRefund
	default:
		return receiptTypePayment
	}
}
