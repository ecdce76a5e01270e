package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/logger"
)

const (
	blockDuration    = 5 * time.Second
	claimIdleTimeout = 30 * time.Second
	batchSize        = 10
)

// PageStore registers pages for the events carried on the stream.
// *database.PageRepository implements it.
type PageStore interface {
	Upsert(ctx context.Context, params database.UpsertParams) (*domain.Page, bool, error)
}

// SiteSource loads the site an event belongs to.
// *database.SiteRepository implements it.
type SiteSource interface {
	GetByID(ctx context.Context, id string) (*domain.Site, error)
}

// Enqueuer fans a page out into submission work items.
// *queue.Producer implements it.
type Enqueuer interface {
	EnqueuePage(ctx context.Context, page *domain.Page) ([]string, error)
}

// Subscriber consumes page events and feeds the submission queue for
// sites with automatic indexing enabled.
type Subscriber struct {
	client     *redis.Client
	consumerID string
	pages      PageStore
	sites      SiteSource
	enqueuer   Enqueuer
	log        logger.Logger
	shutdownCh chan struct{}
}

// NewSubscriber creates a new event subscriber.
// Returns nil if client is nil.
func NewSubscriber(client *redis.Client, consumerID string, pages PageStore, sites SiteSource, enqueuer Enqueuer, log logger.Logger) *Subscriber {
	if client == nil {
		return nil
	}
	if consumerID == "" {
		consumerID = generateConsumerID()
	}
	return &Subscriber{
		client:     client,
		consumerID: consumerID,
		pages:      pages,
		sites:      sites,
		enqueuer:   enqueuer,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

func generateConsumerID() string {
	const uuidPrefixLength = 8
	return fmt.Sprintf("pageindexer-%s", uuid.New().String()[:uuidPrefixLength])
}

// Start begins consuming events from the stream.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	s.log.Info("starting page event subscriber",
		logger.String("consumer_id", s.consumerID),
		logger.String("group", ConsumerGroup))

	go s.consumeLoop(ctx)
	go s.claimAbandonedLoop(ctx)

	return nil
}

// Stop gracefully shuts down the subscriber.
func (s *Subscriber) Stop() {
	close(s.shutdownCh)
}

func (s *Subscriber) ensureConsumerGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, StreamName, ConsumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (s *Subscriber) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ConsumerGroup,
			Consumer: s.consumerID,
			Streams:  []string{StreamName, ">"},
			Count:    batchSize,
			Block:    blockDuration,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.log.Error("event read failed", logger.Err(err))
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.processMessage(ctx, msg)
			}
		}
	}
}

// claimAbandonedLoop periodically claims events a dead subscriber left
// pending.
func (s *Subscriber) claimAbandonedLoop(ctx context.Context) {
	ticker := time.NewTicker(claimIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			s.claimAbandoned(ctx)
		}
	}
}

func (s *Subscriber) claimAbandoned(ctx context.Context) {
	messages, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamName,
		Group:    ConsumerGroup,
		Consumer: s.consumerID,
		MinIdle:  claimIdleTimeout,
		Start:    "0",
		Count:    batchSize,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Error("failed to claim abandoned events", logger.Err(err))
		}
		return
	}

	for _, msg := range messages {
		s.processMessage(ctx, msg)
	}
}

// processMessage handles one stream entry. Unreadable payloads are acked
// and dropped; a handling failure leaves the entry pending so the
// abandoned-claim loop redelivers it.
func (s *Subscriber) processMessage(ctx context.Context, msg redis.XMessage) {
	payload, ok := msg.Values["event"].(string)
	if !ok {
		s.log.Warn("event message missing payload", logger.String("message_id", msg.ID))
		s.ack(ctx, msg.ID)
		return
	}

	var event PageEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.log.Warn("malformed page event",
			logger.String("message_id", msg.ID), logger.Err(err))
		s.ack(ctx, msg.ID)
		return
	}

	if err := s.handleEvent(ctx, event); err != nil {
		s.log.Error("failed to handle page event",
			logger.String("message_id", msg.ID),
			logger.String("type", event.Type),
			logger.String("url", event.URL),
			logger.Err(err))
		return
	}

	s.ack(ctx, msg.ID)
}

func (s *Subscriber) ack(ctx context.Context, messageID string) {
	if err := s.client.XAck(ctx, StreamName, ConsumerGroup, messageID).Err(); err != nil {
		s.log.Error("failed to ack event",
			logger.String("message_id", messageID), logger.Err(err))
	}
}

// handleEvent registers a published page and queues its submissions.
// Events for sites with automatic indexing turned off only register the
// page; a later manual or bulk round submits it.
func (s *Subscriber) handleEvent(ctx context.Context, event PageEvent) error {
	if event.Type != TypePagePublished {
		s.log.Debug("ignoring page event", logger.String("type", event.Type))
		return nil
	}
	if event.URL == "" {
		return errors.New("page event has no url")
	}

	autoIndex := true
	if event.SiteID != nil {
		site, err := s.sites.GetByID(ctx, *event.SiteID)
		if err != nil {
			if !errors.Is(err, database.ErrSiteNotFound) {
				return fmt.Errorf("load site: %w", err)
			}
		} else {
			autoIndex = site.AutoIndexingEnabled
		}
	}

	page, _, err := s.pages.Upsert(ctx, database.UpsertParams{
		SiteID: event.SiteID,
		URL:    event.URL,
		Method: event.Method,
	})
	if err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}

	if !autoIndex {
		return nil
	}

	if _, err := s.enqueuer.EnqueuePage(ctx, page); err != nil {
		return fmt.Errorf("enqueue page: %w", err)
	}
	return nil
}
