package importer

import (
	"context"
	"encoding/json"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

const progressChannelPrefix = "import:progress:"

// RedisBroker publishes snapshots over Redis Pub/Sub so progress streams work
// when the API is scaled past one instance.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, progressChannelPrefix+snap.JobID, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, func(), error) {
	pubsub := b.client.Subscribe(ctx, progressChannelPrefix+jobID)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Snapshot, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				logger.Log.WithError(err).Warn("dropping malformed progress message")
				continue
			}
			send(out, snap)
			if snap.Terminal() {
				pubsub.Close()
				return
			}
		}
	}()

	cancel := func() { pubsub.Close() }
	return out, cancel, nil
}
