// Package events carries page lifecycle events between the application
// that publishes content and the indexing pipeline. Publishing a page
// is an explicit call; the subscriber turns the event into queued
// submission work for sites with automatic indexing enabled.
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream carrying page events.
const StreamName = "pageindexer:events"

// ConsumerGroup is the subscriber's consumer group name.
const ConsumerGroup = "pageindexer-subscribers"

// Event types.
const (
	TypePagePublished   = "page.published"
	TypePageUnpublished = "page.unpublished"
)

// PageEvent is one page lifecycle notification.
type PageEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	Type      string    `json:"type"`
	SiteID    *string   `json:"site_id,omitempty"`
	URL       string    `json:"url"`
	Method    string    `json:"method,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
