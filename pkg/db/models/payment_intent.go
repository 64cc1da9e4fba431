package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// PaymentIntent tracks one attempt to collect money against an invoice.
// Amount and currency are immutable after creation; status moves only
// through the state machine in internal/intents.
type PaymentIntent struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkspaceID        uuid.UUID                 `gorm:"column:workspace_id;type:uuid;not null;index"`
	InvoiceID          uuid.UUID                 `gorm:"column:invoice_id;type:uuid;not null;index"`
	GatewayIntentID    string                    `gorm:"column:gateway_intent_id;not null;unique"`
	AmountCents        int64                     `gorm:"column:amount_cents;not null"`
	Currency           enums.Currency            `gorm:"column:currency;not null;default:'USD'"`
	Status             enums.IntentStatus        `gorm:"column:status;type:intent_status;not null;default:'requires_payment_method'"`
	PaymentType        enums.PaymentType         `gorm:"column:payment_type;type:payment_type;not null;default:'full_payment'"`
	IsDeposit          bool                      `gorm:"column:is_deposit;not null;default:false"`
	DepositPercentage  int                       `gorm:"column:deposit_percentage;not null;default:0"`
	CaptureMethod      string                    `gorm:"column:capture_method;not null;default:'automatic'"`
	ConfirmationMethod string                    `gorm:"column:confirmation_method;not null;default:'automatic'"`
	CustomerName       *string                   `gorm:"column:customer_name"`
	CustomerEmail      *string                   `gorm:"column:customer_email"`
	MerchantAccountRef string                    `gorm:"column:merchant_account_ref;not null"`
	NextActionPayload  json.RawMessage           `gorm:"column:next_action_payload;type:jsonb"`
	Used               bool                      `gorm:"column:used;not null;default:false"`
	PaymentID          *uuid.UUID                `gorm:"column:payment_id;type:uuid"`
	CanceledAt         *time.Time                `gorm:"column:canceled_at"`
	CancellationReason *enums.CancellationReason `gorm:"column:cancellation_reason;type:cancellation_reason"`
	CreatedBy          uuid.UUID                 `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
