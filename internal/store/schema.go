// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

// schemaStatements creates the two tables backing the control plane. The
// unique index on filters.kind is the required correction noted for
// concurrent same-kind bans: a second concurrent insert for an existing
// kind now fails with a constraint violation instead of silently
// duplicating the upstream rule.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS filters (
		id         TEXT PRIMARY KEY,
		rule_id    TEXT NOT NULL DEFAULT '',
		kind       TEXT NOT NULL,
		expression TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS filters_kind_unique ON filters (kind)`,
	`CREATE TABLE IF NOT EXISTS nongratas (
		id                BIGSERIAL PRIMARY KEY,
		filter_id         TEXT NOT NULL REFERENCES filters(id) ON DELETE CASCADE,
		reason            TEXT NOT NULL,
		restriction_value TEXT NOT NULL,
		restriction_type  TEXT NOT NULL,
		expires_at        TIMESTAMPTZ NOT NULL,
		is_global         BOOLEAN NOT NULL DEFAULT TRUE,
		analyzer_id       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS nongratas_expires_at_idx ON nongratas (expires_at)`,
	`CREATE INDEX IF NOT EXISTS nongratas_restriction_value_idx ON nongratas (restriction_value)`,
}
