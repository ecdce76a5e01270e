package domain

import "time"

// IndexingJob status constants.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Engine name constants. The search_engine column is a free string tag
// rather than a closed enum so new adapters can be added without a
// schema change; these cover the built-in adapters.
const (
	EngineGoogle   = "google"
	EngineIndexNow = "indexnow"
)

// IndexingJob records a single submission attempt for a (page, engine)
// pair. One row is appended per attempt; a row is never mutated once
// processed_at is stamped.
type IndexingJob struct {
	ID           string     `db:"id"            json:"id"`
	PageID       string     `db:"page_id"       json:"page_id"`
	Status       string     `db:"status"        json:"status"`
	SearchEngine string     `db:"search_engine" json:"search_engine"`
	RequestData  JSONBMap   `db:"request_data"  json:"request_data,omitempty"`
	ResponseData JSONBMap   `db:"response_data" json:"response_data,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt  *time.Time `db:"processed_at"  json:"processed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// KnownEngine reports whether name is one of the built-in engines.
func KnownEngine(name string) bool {
	return name == EngineGoogle || name == EngineIndexNow
}
