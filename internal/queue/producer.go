package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

const (
	// ItemField is the field name for the serialized work item.
	ItemField = "item"

	// EnqueuedAtField is the field name for the enqueue timestamp.
	EnqueuedAtField = "enqueued_at"

	// Default max stream length to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

// WorkItem is one (page, engine) submission unit. A page registered for
// both engines produces two independent items, so one engine's worker
// failure never blocks the other engine.
type WorkItem struct {
	PageID string  `json:"page_id"`
	SiteID *string `json:"site_id,omitempty"`
	URL    string  `json:"url"`
	Engine string  `json:"engine"`
}

// Producer enqueues submission work items.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	MaxStreamLen int64
}

// NewProducer creates a work item producer.
func NewProducer(client *StreamsClient, cfg ProducerConfig) *Producer {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}
	return &Producer{client: client, maxStreamLen: maxLen}
}

// Enqueue adds one work item to the submission stream.
func (p *Producer) Enqueue(ctx context.Context, item *WorkItem) (string, error) {
	if item == nil {
		return "", errors.New("work item cannot be nil")
	}
	if item.PageID == "" || item.URL == "" {
		return "", errors.New("work item requires page id and url")
	}
	if !domain.KnownEngine(item.Engine) {
		return "", fmt.Errorf("unknown engine: %s", item.Engine)
	}

	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to serialize work item: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, map[string]any{
		ItemField:       string(data),
		EnqueuedAtField: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue work item: %w", err)
	}

	return messageID, nil
}

// EnqueuePage fans one page out into per-engine work items according to
// its indexing method.
func (p *Producer) EnqueuePage(ctx context.Context, page *domain.Page) ([]string, error) {
	if page == nil {
		return nil, errors.New("page cannot be nil")
	}

	engines := page.Engines()
	messageIDs := make([]string, 0, len(engines))
	for _, engine := range engines {
		id, err := p.Enqueue(ctx, &WorkItem{
			PageID: page.ID,
			SiteID: page.SiteID,
			URL:    page.URL,
			Engine: engine,
		})
		if err != nil {
			return messageIDs, fmt.Errorf("failed to enqueue %s item for page %s: %w", engine, page.ID, err)
		}
		messageIDs = append(messageIDs, id)
	}

	return messageIDs, nil
}

// TrimStream trims the submission stream to the maximum length.
func (p *Producer) TrimStream(ctx context.Context) error {
	return p.client.XTrimMaxLen(ctx, p.maxStreamLen)
}

// QueueDepth returns the current submission stream length.
func (p *Producer) QueueDepth(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx)
}
