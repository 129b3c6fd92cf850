package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher appends events to a Redis stream for downstream consumers
// (notifications, billing reconciliation).
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Name() string { return "redis_stream" }

func (p *StreamPublisher) Handle(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", evt.Type, err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type":           string(evt.Type),
			"transaction_id": evt.TransactionID.String(),
			"external_id":    evt.ExternalID,
			"tenant_id":      evt.TenantID,
			"status":         string(evt.Status),
			"level":          string(evt.Level),
			"message":        evt.Message,
			"payload":        string(payload),
			"occurred_at":    evt.OccurredAt.Format(time.RFC3339Nano),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s to %s: %w", evt.Type, p.stream, err)
	}
	return nil
}
