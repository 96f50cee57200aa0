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
		log.Println("creating sync_log_entries table...")
		if err := mghelper.CreateSchema(ctx, db, &channelstore.SyncLogDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &channelstore.SyncLogDao{}, "connection_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping sync_log_entries table...")
		return mghelper.DropTables(ctx, db, &channelstore.SyncLogDao{})
	})
}
