package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Default consumer group name.
	defaultConsumerGroup = "submitters"

	// Default block timeout for reading from the stream.
	defaultBlockTimeout = 5 * time.Second

	// Default count of messages to read per batch.
	defaultBatchSize = 10

	// Default minimum idle time before claiming pending messages.
	defaultClaimMinIdle = 5 * time.Minute

	// Maximum pending messages to check at once.
	maxPendingCheck = 100
)

// Consumer reads submission work items from the stream.
type Consumer struct {
	client        *StreamsClient
	consumerGroup string
	consumerID    string
	blockTimeout  time.Duration
	batchSize     int64
	claimMinIdle  time.Duration
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	ConsumerGroup string
	ConsumerID    string
	BlockTimeout  time.Duration
	BatchSize     int64
	ClaimMinIdle  time.Duration
}

// ConsumedItem is a work item read from the queue, carrying the stream
// message id needed for acknowledgement.
type ConsumedItem struct {
	MessageID  string
	Item       *WorkItem
	EnqueuedAt time.Time
}

// NewConsumer creates a work item consumer.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	return &Consumer{
		client:        client,
		consumerGroup: group,
		consumerID:    cfg.ConsumerID,
		blockTimeout:  blockTimeout,
		batchSize:     batchSize,
		claimMinIdle:  claimMinIdle,
	}, nil
}

// Initialize creates the consumer group for the submission stream.
func (c *Consumer) Initialize(ctx context.Context) error {
	return c.client.CreateConsumerGroup(ctx, c.consumerGroup)
}

// Read returns the next batch of work items. Abandoned pending items
// past the idle threshold are reclaimed before new items are read.
func (c *Consumer) Read(ctx context.Context) ([]*ConsumedItem, error) {
	if reclaimed := c.reclaimPending(ctx); len(reclaimed) > 0 {
		return reclaimed, nil
	}

	streams, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return c.parseStreams(streams), nil
}

// Acknowledge marks one work item as processed.
func (c *Consumer) Acknowledge(ctx context.Context, item *ConsumedItem) error {
	if item == nil {
		return errors.New("consumed item cannot be nil")
	}
	return c.client.XAck(ctx, c.consumerGroup, item.MessageID)
}

// PendingCount returns the number of delivered but unacknowledged items.
func (c *Consumer) PendingCount(ctx context.Context) (int64, error) {
	pending, err := c.client.XPending(ctx, c.consumerGroup)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

// reclaimPending claims items whose consumer stopped acknowledging.
func (c *Consumer) reclaimPending(ctx context.Context) []*ConsumedItem {
	pending, err := c.client.XPendingExt(ctx, c.consumerGroup, maxPendingCheck)
	if err != nil {
		return nil
	}

	var idsToReclaim []string
	for _, entry := range pending {
		if entry.Idle >= c.claimMinIdle {
			idsToReclaim = append(idsToReclaim, entry.ID)
		}
	}
	if len(idsToReclaim) == 0 {
		return nil
	}

	claimed, err := c.client.XClaim(ctx, c.consumerGroup, c.consumerID, c.claimMinIdle, idsToReclaim...)
	if err != nil {
		return nil
	}

	var items []*ConsumedItem
	for _, msg := range claimed {
		item, parseErr := c.parseMessage(msg)
		if parseErr != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Consumer) parseStreams(streams []redis.XStream) []*ConsumedItem {
	var items []*ConsumedItem
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			item, err := c.parseMessage(msg)
			if err != nil {
				// Malformed messages are skipped; they stay pending until
				// trimmed.
				continue
			}
			items = append(items, item)
		}
	}
	return items
}

func (c *Consumer) parseMessage(msg redis.XMessage) (*ConsumedItem, error) {
	data, ok := msg.Values[ItemField].(string)
	if !ok {
		return nil, errors.New("missing or invalid work item data")
	}

	var item WorkItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item: %w", err)
	}

	consumed := &ConsumedItem{MessageID: msg.ID, Item: &item}

	if enqueuedStr, hasEnqueued := msg.Values[EnqueuedAtField].(string); hasEnqueued {
		if t, parseErr := time.Parse(time.RFC3339, enqueuedStr); parseErr == nil {
			consumed.EnqueuedAt = t
		}
	}

	return consumed, nil
}

// ConsumerGroup returns the consumer group name.
func (c *Consumer) ConsumerGroup() string {
	return c.consumerGroup
}

// ConsumerID returns the consumer ID.
func (c *Consumer) ConsumerID() string {
	return c.consumerID
}
