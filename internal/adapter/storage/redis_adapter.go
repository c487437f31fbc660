package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	orderChannelPrefix = "orders:"
	webhookKeyPrefix   = "webhook:"
	webhookKeyTTL      = 24 * time.Hour
)

// RedisAdapter carries the realtime relay (pub/sub per order channel) and
// webhook idempotency keys.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// Publish broadcasts payload as JSON on the order's channel. Subscribers are
// the delivery-tracking clients; nobody in the core reads these back.
func (r *RedisAdapter) Publish(ctx context.Context, orderID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}
	return r.client.Publish(ctx, orderChannelPrefix+orderID, data).Err()
}

// SetIdempotency marks a webhook event as seen, returning false when the
// event was already processed.
func (r *RedisAdapter) SetIdempotency(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, webhookKeyPrefix+eventID, 1, webhookKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
