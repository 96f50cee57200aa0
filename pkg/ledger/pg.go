package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// exclusionViolation is the PostgreSQL SQLSTATE raised when an insert hits
// the interval_records no-overlap exclusion constraint.
const exclusionViolation = "23P01"

type pgStore struct {
	db *bun.DB
}

// NewStore creates the PostgreSQL implementation of the interval ledger.
// Atomicity of the overlap check rests on the database exclusion constraint,
// so the guarantee holds across processes and machines.
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) TryInsert(ctx context.Context, propertyID string, start, end time.Time, kind Kind, sourceID, reason string) (*IntervalRecord, error) {
	start, end, err := ValidateRange(start, end)
	if err != nil {
		return nil, err
	}

	rec := &IntervalRecord{
		ID:         uuid.NewString(),
		PropertyID: propertyID,
		Start:      start,
		End:        end,
		Kind:       kind,
		SourceID:   sourceID,
		State:      StateActive,
		Reason:     reason,
	}

	_, err = s.db.NewInsert().
		Model(toIntervalDao(rec)).
		Exec(ctx)
	if err != nil {
		if isExclusionViolation(err) {
			conflicts, qerr := s.activeOverlapping(ctx, propertyID, start, end)
			if qerr != nil {
				return nil, fmt.Errorf("failed to load conflicting intervals: %w", qerr)
			}
			return nil, &ConflictError{
				PropertyID: propertyID,
				Start:      start,
				End:        end,
				Conflicts:  conflicts,
			}
		}
		return nil, fmt.Errorf("failed to insert interval: %w", err)
	}

	return rec, nil
}

func (s *pgStore) Cancel(ctx context.Context, intervalID string) error {
	res, err := s.db.NewUpdate().
		Model((*IntervalRecordDao)(nil)).
		Set("state = ?", string(StateCancelled)).
		Set("cancelled_at = NOW()").
		Where("id = ?", intervalID).
		Where("state = ?", string(StateActive)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel interval: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read cancel result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// No active row updated: either the record is already cancelled
	// (cancel is idempotent) or it does not exist.
	exists, err := s.db.NewSelect().
		Model((*IntervalRecordDao)(nil)).
		Where("id = ?", intervalID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check interval existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) Query(ctx context.Context, propertyID string, from, to time.Time) ([]IntervalRecord, error) {
	from, to = NormalizeDate(from), NormalizeDate(to)

	var daos []IntervalRecordDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("property_id = ?", propertyID).
		Where("state = ?", string(StateActive)).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Order("start_date ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}

	records := make([]IntervalRecord, len(daos))
	for i := range daos {
		records[i] = *toInterval(&daos[i])
	}
	return records, nil
}

func (s *pgStore) activeOverlapping(ctx context.Context, propertyID string, start, end time.Time) ([]IntervalRecord, error) {
	return s.Query(ctx, propertyID, start, end)
}

func isExclusionViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == exclusionViolation
	}
	return false
}
