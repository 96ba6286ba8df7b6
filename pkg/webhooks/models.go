package webhooks

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook is one configured endpoint subscription. Headers holds custom
// headers added to every delivery to this endpoint.
type Webhook struct {
	ID        string            `json:"id" gorm:"primaryKey;column:id"`
	URL       string            `json:"url" gorm:"column:url"`
	EventType string            `json:"event_type" gorm:"column:event_type;index:idx_webhooks_event_enabled"`
	Enabled   bool              `json:"enabled" gorm:"column:enabled;index:idx_webhooks_event_enabled"`
	Headers   datatypes.JSONMap `json:"headers" gorm:"column:headers"`
	CreatedAt time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// DeliveryAttempt is the result of one HTTP delivery. StatusCode is nil when
// the request never produced a response. Success means the transport worked
// and the endpoint answered with a status below 400.
type DeliveryAttempt struct {
	WebhookID    string  `json:"webhook_id"`
	StatusCode   *int    `json:"status_code"`
	ResponseTime float64 `json:"response_time"`
	Success      bool    `json:"success"`
	ResponseBody string  `json:"response_body,omitempty"`
	Error        string  `json:"error,omitempty"`
}
