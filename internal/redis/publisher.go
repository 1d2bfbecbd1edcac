package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher fans lifecycle events out to the notification and chat modules.
// Delivery is fire-and-forget: those collaborators re-check appointment status
// themselves, so a dropped message costs a push, not correctness.
type Publisher struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewPublisher(client *redis.Client, channel string, log zerolog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		log:     log,
	}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload map[string]any) {
	msg := map[string]any{
		"event": eventType,
	}
	for k, v := range payload {
		msg[k] = v
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		return
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.log.Warn().Err(err).Str("event", eventType).Msg("publish event")
	}
}

// Ping reports whether the event bus is reachable, for readiness checks.
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
