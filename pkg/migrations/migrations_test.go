package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/staykit/channel-sync/pkg/migrations/coredb"
	"github.com/staykit/channel-sync/pkg/pgutil"
)

func TestCoreDBMigrations_Apply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, coredb.Migrations)

	// Initialize migration system
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run all migrations up
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	// Verify all expected tables exist
	expectedTables := []string{
		"interval_records",
		"bookings",
		"blocks",
		"channel_connections",
		"sync_log_entries",
		"idempotency_records",
		"dead_letters",
		"bun_migrations",
	}

	for _, table := range expectedTables {
		pgutil.AssertTableExists(t, db, table)
	}

	pgutil.AssertIndexExists(t, db, "idx_interval_records_property_id")
	pgutil.AssertIndexExists(t, db, "idx_bookings_property_id")
	pgutil.AssertIndexExists(t, db, "idx_bookings_channel_ref")
	pgutil.AssertIndexExists(t, db, "idx_channel_connections_property_channel")
	pgutil.AssertIndexExists(t, db, "idx_sync_log_entries_connection_id")
	pgutil.AssertIndexExists(t, db, "idx_dead_letters_connection_id")
}

func TestCoreDBMigrations_Rollback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, coredb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	// Roll the last group back and re-apply
	if _, err := migrator.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("re-Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected rolled back migrations to re-apply")
	}
}
