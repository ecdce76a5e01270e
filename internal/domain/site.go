package domain

import "time"

// Site represents a property registered with the external inspection
// service. The canonical URL is the inspection scope key; credential
// material is stored opaquely and interpreted only by engine adapters.
type Site struct {
	ID                  string    `db:"id"                    json:"id"`
	CanonicalURL        string    `db:"canonical_url"         json:"canonical_url"`
	Name                string    `db:"name"                  json:"name"`
	AutoIndexingEnabled bool      `db:"auto_indexing_enabled" json:"auto_indexing_enabled"`
	IndexNowKey         *string   `db:"indexnow_key"          json:"indexnow_key,omitempty"`
	Credentials         JSONBMap  `db:"credentials"           json:"credentials,omitempty"`
	Settings            JSONBMap  `db:"settings"              json:"settings,omitempty"`
	CreatedAt           time.Time `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"            json:"updated_at"`
}

// HasIndexNowKey reports whether the site carries key material for the
// key-based engine. Sites without a key are silently skipped by the
// indexnow dispatch path rather than treated as an error.
func (s *Site) HasIndexNowKey() bool {
	return s.IndexNowKey != nil && *s.IndexNowKey != ""
}
