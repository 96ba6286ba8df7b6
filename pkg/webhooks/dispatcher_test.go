package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/models"
)

type fakeEndpointSource struct {
	webhooks []Webhook
}

func (s *fakeEndpointSource) Get(_ context.Context, id string) (*Webhook, error) {
	for i := range s.webhooks {
		if s.webhooks[i].ID == id {
			cp := s.webhooks[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeEndpointSource) EnabledForEvent(_ context.Context, eventType string) ([]Webhook, error) {
	var out []Webhook
	for _, wh := range s.webhooks {
		if wh.Enabled && wh.EventType == eventType {
			out = append(out, wh)
		}
	}
	return out, nil
}

func countingServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForHits(t *testing.T, hits *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(hits) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d deliveries, got %d", want, atomic.LoadInt32(hits))
}

func TestDispatcherDeliversToSubscribedEndpointsOnly(t *testing.T) {
	var created, updated int32
	createdSrv := countingServer(t, &created)
	updatedSrv := countingServer(t, &updated)

	source := &fakeEndpointSource{webhooks: []Webhook{
		{ID: "wh-created", URL: createdSrv.URL, EventType: models.EventProductCreated, Enabled: true},
		{ID: "wh-updated", URL: updatedSrv.URL, EventType: models.EventProductUpdated, Enabled: true},
		{ID: "wh-disabled", URL: createdSrv.URL, EventType: models.EventProductCreated, Enabled: false},
	}}

	d := NewDispatcher(source, NewDeliverer(5*time.Second, 500), 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Close()

	d.Fire(models.EventProductCreated, map[string]interface{}{"sku": "A-1"})

	waitForHits(t, &created, 1)
	if atomic.LoadInt32(&updated) != 0 {
		t.Fatal("updated endpoint must not receive created events")
	}
}

func TestDispatcherEventSequenceFidelity(t *testing.T) {
	var created, updated int32
	createdSrv := countingServer(t, &created)
	updatedSrv := countingServer(t, &updated)

	source := &fakeEndpointSource{webhooks: []Webhook{
		{ID: "wh-created", URL: createdSrv.URL, EventType: models.EventProductCreated, Enabled: true},
		{ID: "wh-updated", URL: updatedSrv.URL, EventType: models.EventProductUpdated, Enabled: true},
	}}

	d := NewDispatcher(source, NewDeliverer(5*time.Second, 500), 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Close()

	// Importing the same row twice produces one created then one updated.
	d.Fire(models.EventProductCreated, map[string]interface{}{"sku": "A-1"})
	d.Fire(models.EventProductUpdated, map[string]interface{}{"sku": "A-1"})

	waitForHits(t, &created, 1)
	waitForHits(t, &updated, 1)

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&created) != 1 || atomic.LoadInt32(&updated) != 1 {
		t.Fatalf("expected exactly one delivery each, got created=%d updated=%d",
			atomic.LoadInt32(&created), atomic.LoadInt32(&updated))
	}
}

func TestDispatcherFireDropsWhenQueueFull(t *testing.T) {
	source := &fakeEndpointSource{}
	d := NewDispatcher(source, NewDeliverer(time.Second, 500), 1)
	// Not started: the queue holds one event, the second overflows.

	d.Fire(models.EventProductCreated, nil)
	done := make(chan struct{})
	go func() {
		d.Fire(models.EventProductCreated, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Fire blocked on a full queue")
	}
}

func TestDispatcherHandleEventDeliversSynchronously(t *testing.T) {
	var hits int32
	srv := countingServer(t, &hits)

	source := &fakeEndpointSource{webhooks: []Webhook{
		{ID: "wh-1", URL: srv.URL, EventType: models.EventProductDeleted, Enabled: true},
	}}
	d := NewDispatcher(source, NewDeliverer(5*time.Second, 500), 16)

	err := d.HandleEvent(context.Background(), models.Event{
		Type: models.EventProductDeleted,
		Data: map[string]interface{}{"sku": "A-1"},
	})
	if err != nil {
		t.Fatalf("HandleEvent must not return an error: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 delivery, got %d", hits)
	}
}

func TestDispatcherHandleEventSwallowsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	source := &fakeEndpointSource{webhooks: []Webhook{
		{ID: "wh-1", URL: srv.URL, EventType: models.EventProductCreated, Enabled: true},
	}}
	d := NewDispatcher(source, NewDeliverer(5*time.Second, 500), 16)

	if err := d.HandleEvent(context.Background(), models.Event{Type: models.EventProductCreated}); err != nil {
		t.Fatalf("delivery failures must not surface to the consumer: %v", err)
	}
}

func TestDispatcherTestEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := &fakeEndpointSource{webhooks: []Webhook{
		{ID: "wh-1", URL: srv.URL, EventType: models.EventProductCreated, Enabled: true},
	}}
	d := NewDispatcher(source, NewDeliverer(5*time.Second, 500), 16)

	attempt, err := d.Test(context.Background(), "wh-1", nil)
	if err != nil {
		t.Fatalf("a failing receiver is a result, not an error: %v", err)
	}
	if attempt.Success {
		t.Fatal("expected success=false for a 500 response")
	}
	if attempt.StatusCode == nil || *attempt.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %v", attempt.StatusCode)
	}

	_, err = d.Test(context.Background(), "no-such-webhook", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
