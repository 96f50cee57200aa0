package coredb

import (
	"context"
	"log"

	"github.com/uptrace/bun"
)

func init() {
	// The exclusion constraint is the no-overlap guarantee for the whole
	// system; bun's schema builder cannot express it, so raw DDL it is.
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating interval_records table...")
		stmts := []string{
			`CREATE EXTENSION IF NOT EXISTS btree_gist`,
			`CREATE TABLE IF NOT EXISTS interval_records (
				id UUID PRIMARY KEY,
				property_id VARCHAR(64) NOT NULL,
				start_date DATE NOT NULL,
				end_date DATE NOT NULL,
				kind VARCHAR(16) NOT NULL,
				source_id VARCHAR(64) NOT NULL,
				state VARCHAR(16) NOT NULL DEFAULT 'active',
				reason TEXT,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				cancelled_at TIMESTAMPTZ,
				CHECK (end_date > start_date),
				CONSTRAINT interval_records_no_overlap EXCLUDE USING gist (
					property_id WITH =,
					daterange(start_date, end_date) WITH &&
				) WHERE (state = 'active')
			)`,
			`CREATE INDEX IF NOT EXISTS idx_interval_records_property_id ON interval_records (property_id)`,
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping interval_records table...")
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS interval_records`)
		return err
	})
}
