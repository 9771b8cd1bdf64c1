package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/model"

	"github.com/redis/go-redis/v9"
)

// Publisher is the part of *redis.Client the Redis subscriber needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis publishes each batch as a JSON BatchMessage. A string
// "redis_channel" param overrides channel.
func Redis(client Publisher, channel string) aggregator.Callback {
	return func(ctx context.Context, events []model.ChangeEvent, params aggregator.Params) error {
		ch := channel
		if v, ok := params["redis_channel"].(string); ok && v != "" {
			ch = v
		}

		payload, err := json.Marshal(model.BatchMessage{
			FlushedAt: time.Now().UTC(),
			Size:      len(events),
			Events:    events,
			Params:    params,
		})
		if err != nil {
			return fmt.Errorf("failed to encode batch: %w", err)
		}

		if err := client.Publish(ctx, ch, payload).Err(); err != nil {
			return fmt.Errorf("failed to publish batch to %s: %w", ch, err)
		}

		return nil
	}
}
