package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type pgGate struct {
	db        *bun.DB
	retention time.Duration
}

// NewGate creates the postgres-backed idempotency gate. Retention must
// exceed the longest retry window of any connected channel.
func NewGate(db *bun.DB, retention time.Duration) Gate {
	return &pgGate{db: db, retention: retention}
}

func (g *pgGate) CheckAndMark(ctx context.Context, channelType, externalEventID string) error {
	now := time.Now().UTC()
	dao := &IdempotencyRecordDao{
		ChannelType:     channelType,
		ExternalEventID: externalEventID,
		ProcessedAt:     now,
		ExpiresAt:       now.Add(g.retention),
	}

	// The conflict target is the primary key; zero rows affected means the
	// event was recorded by an earlier (possibly concurrent) delivery.
	res, err := g.db.NewInsert().
		Model(dao).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

func (g *pgGate) Forget(ctx context.Context, channelType, externalEventID string) error {
	_, err := g.db.NewDelete().
		Model((*IdempotencyRecordDao)(nil)).
		Where("channel_type = ?", channelType).
		Where("external_event_id = ?", externalEventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release event record: %w", err)
	}
	return nil
}

func (g *pgGate) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := g.db.NewDelete().
		Model((*IdempotencyRecordDao)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return int(affected), nil
}
