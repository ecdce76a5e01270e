package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/pageindexer/internal/logger"
)

// asyncPublishTimeout is the context timeout for async publish operations.
const asyncPublishTimeout = 5 * time.Second

// Publisher publishes page events to the Redis stream. Applications
// call it when content goes live instead of hooking into their own
// persistence layer.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher creates a new event publisher.
// Returns nil if client is nil.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, log: log}
}

// Publish sends an event to the page event stream.
func (p *Publisher) Publish(ctx context.Context, event PageEvent) error {
	if p == nil || p.client == nil {
		return nil // No-op if publisher not configured
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]any{
			"event": string(payload),
		},
	})

	if publishErr := result.Err(); publishErr != nil {
		p.log.Error("failed to publish page event",
			logger.String("type", event.Type),
			logger.String("url", event.URL),
			logger.Err(publishErr))
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	p.log.Info("published page event",
		logger.String("type", event.Type),
		logger.String("url", event.URL),
		logger.String("stream_id", result.Val()))

	return nil
}

// PublishAsync publishes an event in the background. Errors are logged,
// not returned; the caller's request never waits on the stream.
func (p *Publisher) PublishAsync(event PageEvent) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()
		_ = p.Publish(ctx, event)
	}()
}

// PagePublished publishes a page.published event for the URL.
func (p *Publisher) PagePublished(ctx context.Context, siteID *string, url, method string) error {
	return p.Publish(ctx, PageEvent{
		Type:   TypePagePublished,
		SiteID: siteID,
		URL:    url,
		Method: method,
	})
}
