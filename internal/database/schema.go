package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool needed to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS interests (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS organizations (
		id         BIGSERIAL PRIMARY KEY,
		legal_name TEXT NOT NULL UNIQUE,
		tax_id     TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS workshops (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL UNIQUE,
		description     TEXT NOT NULL DEFAULT '',
		category_id     BIGINT REFERENCES interests(id) ON DELETE SET NULL,
		price           BIGINT NOT NULL DEFAULT 0 CHECK (price >= 0),
		total_seats     INTEGER NOT NULL CHECK (total_seats >= 0),
		available_seats INTEGER NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		starts_at       TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT workshops_seats_range CHECK (available_seats >= 0 AND available_seats <= total_seats)
	)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id              BIGSERIAL PRIMARY KEY,
		display_name    TEXT NOT NULL,
		email           TEXT NOT NULL UNIQUE,
		phone           TEXT,
		organization_id BIGINT REFERENCES organizations(id) ON DELETE SET NULL,
		kind            TEXT NOT NULL DEFAULT 'individual',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS contact_interests (
		contact_id  BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
		interest_id BIGINT NOT NULL REFERENCES interests(id) ON DELETE CASCADE,
		PRIMARY KEY (contact_id, interest_id)
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id          BIGSERIAL PRIMARY KEY,
		reference   UUID NOT NULL UNIQUE,
		contact_id  BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
		workshop_id BIGINT NOT NULL REFERENCES workshops(id) ON DELETE CASCADE,
		amount_paid BIGINT NOT NULL DEFAULT 0,
		status      TEXT NOT NULL DEFAULT 'pending'
		            CHECK (status IN ('pending', 'partially_paid', 'paid', 'cancelled')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT enrollments_contact_workshop_key UNIQUE (contact_id, workshop_id)
	)`,
	`CREATE INDEX IF NOT EXISTS enrollments_workshop_idx ON enrollments (workshop_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS enrollments_status_idx ON enrollments (status, contact_id)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
