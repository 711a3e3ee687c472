package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"reactify-service/internal/entity"
)

// Notifier fans job state changes out over Redis pub/sub, one channel per
// job, decoupled from the pipeline's own control flow.
type Notifier struct {
	rdb           *redis.Client
	channelPrefix string
}

func NewNotifier(rdb *redis.Client, channelPrefix string) *Notifier {
	if channelPrefix == "" {
		channelPrefix = "jobs:events:"
	}
	return &Notifier{rdb: rdb, channelPrefix: channelPrefix}
}

func (n *Notifier) channel(jobID string) string {
	return n.channelPrefix + jobID
}

func (n *Notifier) Publish(ctx context.Context, event entity.JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel(event.JobID), payload).Err()
}

// Subscribe streams events for one job until ctx is cancelled. The
// returned channel is closed on cancellation.
func (n *Notifier) Subscribe(ctx context.Context, jobID string) (<-chan entity.JobEvent, error) {
	sub := n.rdb.Subscribe(ctx, n.channel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan entity.JobEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev entity.JobEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
