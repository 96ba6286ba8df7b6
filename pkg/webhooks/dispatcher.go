package webhooks

import (
	"context"
	"sync"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/models"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/observability/metrics"
)

// EndpointSource is the dispatcher's read dependency on webhook configuration.
type EndpointSource interface {
	Get(ctx context.Context, id string) (*Webhook, error)
	EnabledForEvent(ctx context.Context, eventType string) ([]Webhook, error)
}

type event struct {
	eventType string
	payload   map[string]interface{}
}

// Dispatcher fans product events out to subscribed endpoints. Fire is
// asynchronous and never blocks the caller; deliveries run on the
// dispatcher's own goroutines so a slow receiver cannot stall the import
// pipeline. Delivery failures are logged, never retried, and never surface
// to the producer.
type Dispatcher struct {
	endpoints EndpointSource
	deliverer *Deliverer

	queue chan event
	wg    sync.WaitGroup
	once  sync.Once
}

func NewDispatcher(endpoints EndpointSource, deliverer *Deliverer, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		endpoints: endpoints,
		deliverer: deliverer,
		queue:     make(chan event, queueSize),
	}
}

// Start launches the dispatch loop. Close drains nothing: events still queued
// at shutdown are dropped, which is within the best-effort contract.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-d.queue:
				if !ok {
					return
				}
				d.dispatch(ctx, ev.eventType, ev.payload)
			}
		}
	}()
}

func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

// Fire enqueues one event for delivery. When the queue is full the event is
// dropped with a log line rather than blocking the pipeline.
func (d *Dispatcher) Fire(eventType string, payload map[string]interface{}) {
	select {
	case d.queue <- event{eventType: eventType, payload: payload}:
	default:
		logger.Log.WithField("event_type", eventType).Warn("webhook dispatch queue full, dropping event")
		metrics.WebhookDropped()
	}
}

// HandleEvent adapts the dispatcher to the Kafka consumer loop. It always
// returns nil: delivery failures must not hold up the consumer offset.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev models.Event) error {
	d.dispatch(ctx, ev.Type, ev.Data)
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, eventType string, payload map[string]interface{}) {
	subscribed, err := d.endpoints.EnabledForEvent(ctx, eventType)
	if err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Error("failed to resolve webhook endpoints")
		return
	}
	if len(subscribed) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range subscribed {
		wh := subscribed[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt := d.deliverer.Deliver(ctx, wh, payload)
			fields := map[string]interface{}{
				"webhook_id": wh.ID,
				"url":        wh.URL,
				"event_type": eventType,
			}
			if attempt.Success {
				metrics.WebhookDelivered()
				logger.Log.WithFields(fields).Debug("webhook delivered")
				return
			}
			metrics.WebhookFailed()
			if attempt.StatusCode != nil {
				fields["status_code"] = *attempt.StatusCode
			}
			if attempt.Error != "" {
				fields["error"] = attempt.Error
			}
			logger.Log.WithFields(fields).Warn("webhook delivery failed")
		}()
	}
	wg.Wait()
}

// Test performs one synchronous delivery against a single endpoint and
// returns the attempt verbatim. A failing receiver is a result, not an error.
func (d *Dispatcher) Test(ctx context.Context, endpointID string, payload map[string]interface{}) (*DeliveryAttempt, error) {
	wh, err := d.endpoints.Get(ctx, endpointID)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload = TestPayload()
	}

	attempt := d.deliverer.Deliver(ctx, *wh, payload)
	return &attempt, nil
}
