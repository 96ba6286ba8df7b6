package models

import "time"

// Product lifecycle event types carried on the event bus and matched
// against webhook subscriptions.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// Event is the envelope published to Kafka and handed to the webhook
// dispatcher.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

func EventTypes() []string {
	return []string{EventProductCreated, EventProductUpdated, EventProductDeleted}
}

func IsValidEventType(t string) bool {
	switch t {
	case EventProductCreated, EventProductUpdated, EventProductDeleted:
		return true
	}
	return false
}
