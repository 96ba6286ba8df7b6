package importer

import (
	"context"
	"sync"
)

// Broker is the push side of progress publication. Publish fans a snapshot
// out to every subscriber of the job; the subscription channel is closed
// after a terminal snapshot has been delivered, and the returned cancel
// function releases the subscription early.
type Broker interface {
	Publish(ctx context.Context, snap Snapshot) error
	Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, func(), error)
}

const subscriberBuffer = 64

// MemoryBroker is the in-process Broker used by single-instance deployments
// and tests.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Snapshot
	next int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]chan Snapshot)}
}

func (b *MemoryBroker) Publish(_ context.Context, snap Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[snap.JobID] {
		send(ch, snap)
	}

	if snap.Terminal() {
		for _, ch := range b.subs[snap.JobID] {
			close(ch)
		}
		delete(b.subs, snap.JobID)
	}
	return nil
}

// send never blocks: a slow subscriber loses intermediate snapshots but
// always observes the latest one, keeping processed_records non-decreasing.
func send(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (b *MemoryBroker) Subscribe(_ context.Context, jobID string) (<-chan Snapshot, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[int]chan Snapshot)
	}
	id := b.next
	b.next++
	b.subs[jobID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[jobID]; ok {
			if _, live := subs[id]; live {
				delete(subs, id)
				close(ch)
				if len(subs) == 0 {
					delete(b.subs, jobID)
				}
			}
		}
	}

	return ch, cancel, nil
}

// Publisher pairs the snapshot store (pull side) with a broker (push side) so
// both observation models reflect the same state.
type Publisher struct {
	broker Broker
}

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

func (p *Publisher) Publish(ctx context.Context, snap Snapshot) {
	if p == nil || p.broker == nil {
		return
	}
	// Push failures (e.g. redis blip) never affect the pipeline; pull readers
	// still see the store.
	_ = p.broker.Publish(ctx, snap)
}

func (p *Publisher) Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, func(), error) {
	return p.broker.Subscribe(ctx, jobID)
}
