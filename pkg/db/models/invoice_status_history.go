package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// InvoiceStatusHistory is the append-only audit trail of invoice status
// transitions written by the reconciliation engine.
type InvoiceStatusHistory struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index"`
	Status    enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null"`
	Reason    enums.ReasonCode    `gorm:"column:reason;type:reason_code;not null"`
	Note      *string             `gorm:"column:note"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}
