package postgres

import (
	"context"
	"fmt"
)

// Schema creates the override, cohort and membership tables. It is
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS ccx_cohorts (
	id           TEXT PRIMARY KEY,
	course_id    TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ccx_memberships (
	user_id   TEXT NOT NULL,
	cohort_id TEXT NOT NULL REFERENCES ccx_cohorts (id) ON DELETE CASCADE,
	active    BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (user_id, cohort_id)
);

CREATE TABLE IF NOT EXISTS ccx_field_overrides (
	cohort_id  TEXT NOT NULL,
	location   TEXT NOT NULL,
	field      TEXT NOT NULL,
	value      TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (cohort_id, location, field)
);
`

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}
