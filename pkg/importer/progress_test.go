package importer

import (
	"context"
	"testing"
	"time"
)

func snap(jobID, status string, processed int) Snapshot {
	return Snapshot{
		JobID:            jobID,
		Status:           status,
		Phase:            PhaseProcessing,
		ProcessedRecords: processed,
		LastUpdatedAt:    time.Now().UTC(),
	}
}

func TestMemoryBrokerFansOut(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	ch1, cancel1, err := broker.Subscribe(ctx, "job-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel1()
	ch2, cancel2, err := broker.Subscribe(ctx, "job-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel2()

	if err := broker.Publish(ctx, snap("job-1", StatusProcessing, 10)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, ch := range []<-chan Snapshot{ch1, ch2} {
		select {
		case got := <-ch:
			if got.ProcessedRecords != 10 {
				t.Fatalf("subscriber %d: expected 10 processed, got %d", i, got.ProcessedRecords)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no snapshot received", i)
		}
	}
}

func TestMemoryBrokerScopesByJob(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	ch, cancel, err := broker.Subscribe(ctx, "job-a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := broker.Publish(ctx, snap("job-b", StatusProcessing, 5)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		t.Fatalf("received a snapshot for another job: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBrokerClosesOnTerminal(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	ch, cancel, err := broker.Subscribe(ctx, "job-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := broker.Publish(ctx, snap("job-1", StatusProcessing, 3)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := broker.Publish(ctx, snap("job-1", StatusCompleted, 3)); err != nil {
		t.Fatalf("publish terminal: %v", err)
	}

	var last Snapshot
	for s := range ch {
		last = s
	}
	if last.Status != StatusCompleted {
		t.Fatalf("expected final snapshot to be terminal, got %+v", last)
	}
}

func TestMemoryBrokerCancelUnsubscribes(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	ch, cancel, err := broker.Subscribe(ctx, "job-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	cancel() // safe to call twice

	if _, open := <-ch; open {
		t.Fatal("expected channel closed after cancel")
	}

	// Publishing after the last subscriber left must not panic.
	if err := broker.Publish(ctx, snap("job-1", StatusProcessing, 1)); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestMemoryBrokerDropsOldestForSlowSubscriber(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	ch, cancel, err := broker.Subscribe(ctx, "job-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// Overflow the subscriber buffer without draining it.
	for i := 1; i <= subscriberBuffer+10; i++ {
		if err := broker.Publish(ctx, snap("job-1", StatusProcessing, i)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	var last Snapshot
	prev := -1
drain:
	for {
		select {
		case s := <-ch:
			if s.ProcessedRecords < prev {
				t.Fatalf("snapshots regressed: %d after %d", s.ProcessedRecords, prev)
			}
			prev = s.ProcessedRecords
			last = s
		default:
			break drain
		}
	}

	if last.ProcessedRecords != subscriberBuffer+10 {
		t.Fatalf("expected the latest snapshot to survive, got %d", last.ProcessedRecords)
	}
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.Publish(context.Background(), snap("job-1", StatusProcessing, 1))

	p = NewPublisher(nil)
	p.Publish(context.Background(), snap("job-1", StatusProcessing, 1))
}
