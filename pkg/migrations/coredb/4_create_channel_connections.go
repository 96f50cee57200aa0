package coredb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/staykit/channel-sync/pkg/channelstore"
	mghelper "github.com/staykit/channel-sync/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating channel_connections table...")
		if err := mghelper.CreateSchema(ctx, db, &channelstore.ConnectionDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &channelstore.ConnectionDao{}, "property_id"); err != nil {
			return err
		}
		// One connection per property and channel.
		_, err := db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_connections_property_channel
			ON channel_connections (property_id, channel_type)`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping channel_connections table...")
		return mghelper.DropTables(ctx, db, &channelstore.ConnectionDao{})
	})
}
