package store

import (
	"context"
	"fmt"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS hazards (
		id            UUID PRIMARY KEY,
		kind          TEXT NOT NULL,
		title         TEXT NOT NULL,
		summary       TEXT NOT NULL DEFAULT '',
		category      TEXT NOT NULL DEFAULT '',
		geom          geometry(Geometry, 4326) NOT NULL,
		radius_km     DOUBLE PRECISION NOT NULL DEFAULT 0,
		severity      SMALLINT NOT NULL DEFAULT 0,
		risk_level    TEXT NOT NULL DEFAULT '',
		valid_from    TIMESTAMPTZ,
		valid_to      TIMESTAMPTZ,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		city          TEXT NOT NULL DEFAULT '',
		province      TEXT NOT NULL DEFAULT '',
		country_code  TEXT NOT NULL DEFAULT '',
		source        TEXT NOT NULL DEFAULT '',
		reported_at   TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS hazards_geom_idx ON hazards USING GIST (geom)`,
	`CREATE INDEX IF NOT EXISTS hazards_reported_at_idx ON hazards (reported_at DESC)`,
	`CREATE INDEX IF NOT EXISTS hazards_kind_idx ON hazards (kind)`,
}

// Migrate creates the PostGIS extension, the hazards table and its indexes.
// It runs once at startup before the store serves queries.
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
