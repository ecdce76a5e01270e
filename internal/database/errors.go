package database

import "errors"

// Sentinel errors returned by the repositories. Callers should check
// with errors.Is().
var (
	// ErrPageNotFound is returned when a page vanished between lookup and update.
	ErrPageNotFound = errors.New("page not found")
	// ErrSiteNotFound is returned when a site lookup matches no row.
	ErrSiteNotFound = errors.New("site not found")
	// ErrJobNotFound is returned when a ledger row lookup matches no row.
	ErrJobNotFound = errors.New("indexing job not found")
)
