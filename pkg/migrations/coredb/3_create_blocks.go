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
		log.Println("creating blocks table...")
		if err := mghelper.CreateSchema(ctx, db, &bookingstore.BlockDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &bookingstore.BlockDao{}, "property_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping blocks table...")
		return mghelper.DropTables(ctx, db, &bookingstore.BlockDao{})
	})
}
