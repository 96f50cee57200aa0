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
		log.Println("creating dead_letters table...")
		if err := mghelper.CreateSchema(ctx, db, &channelstore.DeadLetterDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &channelstore.DeadLetterDao{}, "connection_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping dead_letters table...")
		return mghelper.DropTables(ctx, db, &channelstore.DeadLetterDao{})
	})
}
