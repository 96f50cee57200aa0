package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/uptrace/bun"

	"github.com/staykit/channel-sync/pkg/pgutil"
)

func setupLedgerDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	db, cleanup := pgutil.SetupTestDB(t)

	ctx := context.Background()
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`CREATE TABLE interval_records (
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
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			cleanup()
			t.Fatalf("failed to prepare schema: %v", err)
		}
	}
	return db, cleanup
}

func TestPGStore_InsertAndConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := setupLedgerDB(t)
	defer cleanup()

	store := NewStore(db)
	ctx := context.Background()

	rec, err := store.TryInsert(ctx, "prop-1", date(2026, 7, 1), date(2026, 7, 5), KindBooking, "b-1", "")
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated interval id")
	}

	// Overlap is rejected by the exclusion constraint, not an application check.
	_, err = store.TryInsert(ctx, "prop-1", date(2026, 7, 4), date(2026, 7, 8), KindBooking, "b-2", "")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].SourceID != "b-1" {
		t.Errorf("unexpected conflict payload: %+v", conflict.Conflicts)
	}

	// Back-to-back is allowed.
	if _, err := store.TryInsert(ctx, "prop-1", date(2026, 7, 5), date(2026, 7, 8), KindBooking, "b-3", ""); err != nil {
		t.Fatalf("back-to-back insert failed: %v", err)
	}

	pgutil.AssertRowCount(t, db, "interval_records", 2)
}

func TestPGStore_CancelAndRebook(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := setupLedgerDB(t)
	defer cleanup()

	store := NewStore(db)
	ctx := context.Background()

	rec, err := store.TryInsert(ctx, "prop-1", date(2026, 8, 1), date(2026, 8, 5), KindBlock, "blk-1", "renovation")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := store.Cancel(ctx, rec.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	// Second cancel is a no-op, not an error.
	if err := store.Cancel(ctx, rec.ID); err != nil {
		t.Fatalf("repeated cancel failed: %v", err)
	}
	if err := store.Cancel(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// The cancelled range is free again.
	if _, err := store.TryInsert(ctx, "prop-1", date(2026, 8, 1), date(2026, 8, 5), KindBooking, "b-1", ""); err != nil {
		t.Fatalf("rebooking cancelled range failed: %v", err)
	}

	records, err := store.Query(ctx, "prop-1", date(2026, 8, 1), date(2026, 8, 5))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 1 || records[0].SourceID != "b-1" {
		t.Fatalf("expected only the active rebooking, got %+v", records)
	}
}
