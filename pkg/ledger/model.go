package ledger

import (
	"time"

	"github.com/uptrace/bun"
)

// IntervalRecordDao is a data access object that maps directly to the
// 'interval_records' table in PostgreSQL. The no-overlap invariant is
// enforced by an exclusion constraint on (property_id, daterange) scoped to
// active records; see pkg/migrations/coredb.
type IntervalRecordDao struct {
	bun.BaseModel `bun:"table:interval_records,alias:ir"`
	ID            string     `bun:"id,pk,type:uuid"`
	PropertyID    string     `bun:"property_id,notnull,type:varchar(64)"`
	StartDate     time.Time  `bun:"start_date,notnull,type:date"`
	EndDate       time.Time  `bun:"end_date,notnull,type:date"`
	Kind          string     `bun:"kind,notnull,type:varchar(16)"`
	SourceID      string     `bun:"source_id,notnull,type:varchar(64)"`
	State         string     `bun:"state,notnull,type:varchar(16),default:'active'"`
	Reason        *string    `bun:"reason,type:text"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	CancelledAt   *time.Time `bun:"cancelled_at"`
}

func toIntervalDao(rec *IntervalRecord) *IntervalRecordDao {
	dao := &IntervalRecordDao{
		ID:          rec.ID,
		PropertyID:  rec.PropertyID,
		StartDate:   rec.Start,
		EndDate:     rec.End,
		Kind:        string(rec.Kind),
		SourceID:    rec.SourceID,
		State:       string(rec.State),
		CancelledAt: rec.CancelledAt,
	}
	if rec.Reason != "" {
		dao.Reason = &rec.Reason
	}
	return dao
}

func toInterval(dao *IntervalRecordDao) *IntervalRecord {
	rec := &IntervalRecord{
		ID:          dao.ID,
		PropertyID:  dao.PropertyID,
		Start:       NormalizeDate(dao.StartDate),
		End:         NormalizeDate(dao.EndDate),
		Kind:        Kind(dao.Kind),
		SourceID:    dao.SourceID,
		State:       State(dao.State),
		CreatedAt:   dao.CreatedAt,
		CancelledAt: dao.CancelledAt,
	}
	if dao.Reason != nil {
		rec.Reason = *dao.Reason
	}
	return rec
}
