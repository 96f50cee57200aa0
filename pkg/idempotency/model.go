package idempotency

import (
	"time"

	"github.com/uptrace/bun"
)

// IdempotencyRecordDao is a data access object that maps directly to the
// 'idempotency_records' table in PostgreSQL. The (channel_type,
// external_event_id) unique constraint is what makes CheckAndMark atomic.
type IdempotencyRecordDao struct {
	bun.BaseModel   `bun:"table:idempotency_records,alias:idem"`
	ChannelType     string    `bun:"channel_type,pk,type:varchar(32)"`
	ExternalEventID string    `bun:"external_event_id,pk,type:varchar(128)"`
	ProcessedAt     time.Time `bun:"processed_at,notnull"`
	ExpiresAt       time.Time `bun:"expires_at,notnull"`
}
