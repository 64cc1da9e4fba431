package models

import (
	"time"

	"github.com/google/uuid"
)

// IntentWebhookEvent is the per-intent deduplication log for gateway
// callbacks. Processed flips to true only after the transition commits, so a
// crash mid-apply leaves the event eligible for redelivery.
type IntentWebhookEvent struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntentID    uuid.UUID  `gorm:"column:intent_id;type:uuid;not null;uniqueIndex:ux_intent_webhook_events_intent_event"`
	EventID     string     `gorm:"column:event_id;not null;uniqueIndex:ux_intent_webhook_events_intent_event"`
	EventType   string     `gorm:"column:event_type;not null"`
	ReceivedAt  time.Time  `gorm:"column:received_at;not null"`
	Processed   bool       `gorm:"column:processed;not null;default:false"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
}
