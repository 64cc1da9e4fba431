package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// Payment is an immutable ledger entry for money actually received. Amount,
// date, sequence number, and remaining balance never change after creation;
// refunds are new rows referencing the original via OriginalPaymentID.
type Payment struct {
	ID                    uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkspaceID           uuid.UUID                 `gorm:"column:workspace_id;type:uuid;not null;index"`
	InvoiceID             uuid.UUID                 `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex:ux_payments_invoice_sequence"`
	PaymentIntentID       *uuid.UUID                `gorm:"column:payment_intent_id;type:uuid"`
	OriginalPaymentID     *uuid.UUID                `gorm:"column:original_payment_id;type:uuid"`
	Type                  enums.LedgerEntryType     `gorm:"column:type;type:ledger_entry_type;not null;default:'payment'"`
	Status                enums.PaymentRecordStatus `gorm:"column:status;type:payment_record_status;not null;default:'completed'"`
	AmountCents           int64                     `gorm:"column:amount_cents;not null"`
	Currency              enums.Currency            `gorm:"column:currency;not null;default:'USD'"`
	Method                string                    `gorm:"column:method;not null;default:'card'"`
	ReceivedAt            time.Time                 `gorm:"column:received_at;not null"`
	SequenceNumber        int                       `gorm:"column:sequence_number;not null;uniqueIndex:ux_payments_invoice_sequence"`
	RemainingBalanceCents int64                     `gorm:"column:remaining_balance_cents;not null"`
	ReceiptNumber         string                    `gorm:"column:receipt_number;not null"`
	ReceiptType           string                    `gorm:"column:receipt_type;not null;default:'payment_receipt'"`
	ReceiptGeneratedAt    *time.Time                `gorm:"column:receipt_generated_at"`
	ReceiptSentAt         *time.Time                `gorm:"column:receipt_sent_at"`
	ReceiptViewedAt       *time.Time                `gorm:"column:receipt_viewed_at"`
	GatewayDetails        json.RawMessage           `gorm:"column:gateway_details;type:jsonb"`
	CreatedAt             time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
