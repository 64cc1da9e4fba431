package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

// IntentStatusHistory is an append-only record of every status an intent held.
type IntentStatusHistory struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntentID  uuid.UUID          `gorm:"column:intent_id;type:uuid;not null;index"`
	Status    enums.IntentStatus `gorm:"column:status;type:intent_status;not null"`
	Reason    enums.ReasonCode   `gorm:"column:reason;type:reason_code;not null"`
	Note      *string            `gorm:"column:note"`
	Metadata  json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}
