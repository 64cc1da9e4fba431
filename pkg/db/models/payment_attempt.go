package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// PaymentAttempt logs a client-reported attempt against an intent. Appending
// here never changes the intent's top-level status.
type PaymentAttempt struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntentID         uuid.UUID          `gorm:"column:intent_id;type:uuid;not null;index"`
	AttemptNumber    int                `gorm:"column:attempt_number;not null"`
	Status           enums.IntentStatus `gorm:"column:status;type:intent_status;not null"`
	ErrorMessage     *string            `gorm:"column:error_message"`
	PaymentMethodRef *string            `gorm:"column:payment_method_ref"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
}
