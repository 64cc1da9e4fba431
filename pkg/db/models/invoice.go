package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// Invoice is the external aggregate this engine reconciles against. The
// engine reads the totals/deposit configuration and writes only the
// payment-driven fields (status, paidAt, deposit tracking); everything else
// is owned by the invoicing service.
type Invoice struct {
	ID                        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkspaceID               uuid.UUID           `gorm:"column:workspace_id;type:uuid;not null;index"`
	Number                    string              `gorm:"column:number;not null"`
	TotalCents                int64               `gorm:"column:total_cents;not null"`
	Currency                  enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	Status                    enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'draft'"`
	RequireDeposit            bool                `gorm:"column:require_deposit;not null;default:false"`
	DepositPercentage         int                 `gorm:"column:deposit_percentage;not null;default:0"`
	CustomerName              *string             `gorm:"column:customer_name"`
	CustomerEmail             *string             `gorm:"column:customer_email"`
	PaidAt                    *time.Time          `gorm:"column:paid_at"`
	DepositPaidAt             *time.Time          `gorm:"column:deposit_paid_at"`
	DepositPaymentAmountCents *int64              `gorm:"column:deposit_payment_amount_cents"`
	CreatedAt                 time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
