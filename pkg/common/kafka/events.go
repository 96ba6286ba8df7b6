package kafka

import (
	"context"
	"time"
)

// EventSink adapts the producer to the fire-and-forget event contract used by
// the import pipeline and the product service. Publish errors are logged by
// the producer and never reach the caller.
type EventSink struct {
	producer *Producer
	source   string
}

func NewEventSink(producer *Producer, source string) *EventSink {
	return &EventSink{producer: producer, source: source}
}

func (s *EventSink) Fire(eventType string, payload map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.producer.PublishEvent(ctx, eventType, s.source, payload)
	}()
}
