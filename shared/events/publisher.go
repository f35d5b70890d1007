package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish wraps data in a new envelope and appends it to stream. It returns
// once Redis has accepted the entry.
func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return p.PublishEvent(ctx, stream, Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})
}

// PublishEvent appends an already built envelope to stream, keeping its ID.
func (p *Publisher) PublishEvent(ctx context.Context, stream string, event Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.add(ctx, stream, "event", eventJSON)
}

func (p *Publisher) publishFault(ctx context.Context, stream string, fault Fault) error {
	faultJSON, err := json.Marshal(fault)
	if err != nil {
		return fmt.Errorf("failed to marshal fault: %w", err)
	}
	return p.add(ctx, stream, "fault", faultJSON)
}

func (p *Publisher) add(ctx context.Context, stream, field string, value []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			field: value,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}
