package coredb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/staykit/channel-sync/pkg/bookingstore"
	mghelper "github.com/staykit/channel-sync/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating bookings table...")
		if err := mghelper.CreateSchema(ctx, db, &bookingstore.BookingDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &bookingstore.BookingDao{}, "property_id", "status"); err != nil {
			return err
		}
		// One live local row per external booking reference; cancelled rows
		// stay out so a modified booking can be re-imported.
		_, err := db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_channel_ref
			ON bookings (source, channel_booking_id)
			WHERE channel_booking_id IS NOT NULL AND status != 'cancelled'`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping bookings table...")
		return mghelper.DropTables(ctx, db, &bookingstore.BookingDao{})
	})
}
