package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements holds the idempotent DDL for the pageindexer schema.
// Pages are unique per (site, url); site_id is nullable so single-site
// deployments can run without registering a site row, in which case the
// url alone is the key (the COALESCE in the unique index collapses all
// NULL site ids into one namespace).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sites (
		id UUID PRIMARY KEY,
		canonical_url TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		auto_indexing_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		indexnow_key TEXT,
		credentials JSONB NOT NULL DEFAULT '{}',
		settings JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS pages (
		id UUID PRIMARY KEY,
		site_id UUID REFERENCES sites(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		indexing_status TEXT NOT NULL DEFAULT 'pending',
		indexing_method TEXT NOT NULL DEFAULT 'both',
		last_indexed_at TIMESTAMPTZ,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS pages_site_url_key
		ON pages ((COALESCE(site_id::text, '')), url)`,

	`CREATE INDEX IF NOT EXISTS pages_status_idx
		ON pages (indexing_status)`,

	`CREATE INDEX IF NOT EXISTS pages_stale_idx
		ON pages (last_indexed_at ASC NULLS FIRST, id ASC)`,

	`CREATE TABLE IF NOT EXISTS indexing_jobs (
		id UUID PRIMARY KEY,
		page_id UUID NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'pending',
		search_engine TEXT NOT NULL,
		request_data JSONB NOT NULL DEFAULT '{}',
		response_data JSONB NOT NULL DEFAULT '{}',
		error_message TEXT,
		processed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS indexing_jobs_page_idx
		ON indexing_jobs (page_id, search_engine, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS indexing_status_history (
		id UUID PRIMARY KEY,
		page_id UUID NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		search_engine TEXT,
		metadata JSONB NOT NULL DEFAULT '{}',
		checked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS indexing_status_history_page_idx
		ON indexing_status_history (page_id, checked_at DESC)`,

	`CREATE TABLE IF NOT EXISTS sitemaps (
		id UUID PRIMARY KEY,
		site_id UUID NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		sitemap_url TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'sitemap',
		last_checked_at TIMESTAMPTZ,
		page_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (site_id, sitemap_url)
	)`,
}

// EnsureSchema creates the pageindexer tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
