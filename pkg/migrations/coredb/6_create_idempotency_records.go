package coredb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/staykit/channel-sync/pkg/idempotency"
	mghelper "github.com/staykit/channel-sync/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating idempotency_records table...")
		if err := mghelper.CreateSchema(ctx, db, &idempotency.IdempotencyRecordDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &idempotency.IdempotencyRecordDao{}, "expires_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping idempotency_records table...")
		return mghelper.DropTables(ctx, db, &idempotency.IdempotencyRecordDao{})
	})
}
