package domain

import "time"

// StatusHistory is an append-only audit row recording one observed
// status transition for a page. Rows are never updated or deleted.
type StatusHistory struct {
	ID           string    `db:"id"            json:"id"`
	PageID       string    `db:"page_id"       json:"page_id"`
	Status       string    `db:"status"        json:"status"`
	SearchEngine *string   `db:"search_engine" json:"search_engine,omitempty"`
	Metadata     JSONBMap  `db:"metadata"      json:"metadata,omitempty"`
	CheckedAt    time.Time `db:"checked_at"    json:"checked_at"`
}
