package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory ledger used by unit tests and single-process
// development mode. Writes for a property are serialized by the store mutex,
// mirroring the atomicity the PostgreSQL exclusion constraint provides.
type memStore struct {
	mu     sync.Mutex
	byProp map[string][]*IntervalRecord
	byID   map[string]*IntervalRecord
}

// NewMemStore creates an in-memory implementation of the interval ledger.
func NewMemStore() Store {
	return &memStore{
		byProp: make(map[string][]*IntervalRecord),
		byID:   make(map[string]*IntervalRecord),
	}
}

func (s *memStore) TryInsert(_ context.Context, propertyID string, start, end time.Time, kind Kind, sourceID, reason string) (*IntervalRecord, error) {
	start, end, err := ValidateRange(start, end)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var conflicts []IntervalRecord
	for _, rec := range s.byProp[propertyID] {
		if rec.State == StateActive && rec.Overlaps(start, end) {
			conflicts = append(conflicts, *rec)
		}
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{
			PropertyID: propertyID,
			Start:      start,
			End:        end,
			Conflicts:  conflicts,
		}
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
		CreatedAt:  time.Now().UTC(),
	}
	s.byProp[propertyID] = append(s.byProp[propertyID], rec)
	s.byID[rec.ID] = rec

	out := *rec
	return &out, nil
}

func (s *memStore) Cancel(_ context.Context, intervalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[intervalID]
	if !ok {
		return ErrNotFound
	}
	if rec.State == StateCancelled {
		return nil
	}
	now := time.Now().UTC()
	rec.State = StateCancelled
	rec.CancelledAt = &now
	return nil
}

func (s *memStore) Query(_ context.Context, propertyID string, from, to time.Time) ([]IntervalRecord, error) {
	from, to = NormalizeDate(from), NormalizeDate(to)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []IntervalRecord
	for _, rec := range s.byProp[propertyID] {
		if rec.State == StateActive && rec.Overlaps(from, to) {
			out = append(out, *rec)
		}
	}
	return out, nil
}
