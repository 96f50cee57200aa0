// Package ledger is the authoritative store of occupancy intervals per
// property. It enforces the no-overlap invariant: for any property, active
// intervals never overlap under half-open [start, end) semantics. Adjacent
// intervals (end_a == start_b) do not overlap, which allows back-to-back
// bookings.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates what an interval represents.
type Kind string

const (
	KindBooking Kind = "booking"
	KindBlock   Kind = "block"
)

// State is the lifecycle state of an interval record.
type State string

const (
	StateActive    State = "active"
	StateCancelled State = "cancelled"
)

var (
	// ErrInvalidRange is returned for zero-length or inverted intervals.
	// This is invalid input, not a conflict.
	ErrInvalidRange = errors.New("interval end must be after start")

	// ErrNotFound is returned when an interval lookup finds no matching record.
	ErrNotFound = errors.New("interval record not found")
)

// IntervalRecord represents one span of exclusive occupancy for one property.
// Records transition active -> cancelled exactly once and are never deleted;
// cancelled records are retained for audit and reconciliation history.
type IntervalRecord struct {
	ID          string
	PropertyID  string
	Start       time.Time
	End         time.Time
	Kind        Kind
	SourceID    string
	State       State
	Reason      string
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Overlaps reports whether [r.Start, r.End) intersects [start, end).
func (r *IntervalRecord) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && r.End.After(start)
}

// ConflictError is returned by TryInsert when the requested range collides
// with one or more active intervals. It carries the colliding records so the
// caller can report which dates and which kind of record collided.
type ConflictError struct {
	PropertyID string
	Start      time.Time
	End        time.Time
	Conflicts  []IntervalRecord
}

func (e *ConflictError) Error() string {
	kinds := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		kinds = append(kinds, fmt.Sprintf("%s %s..%s", c.Kind,
			c.Start.Format("2006-01-02"), c.End.Format("2006-01-02")))
	}
	return fmt.Sprintf("interval [%s, %s) for property %s conflicts with: %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"),
		e.PropertyID, strings.Join(kinds, ", "))
}

// HasKind reports whether any colliding record is of the given kind.
func (e *ConflictError) HasKind(kind Kind) bool {
	for _, c := range e.Conflicts {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// Store defines all interval ledger operations.
//
// TryInsert must be atomic with the overlap check: check-then-insert must not
// be separable by any concurrent writer, even across processes. Conflicting
// inserts return *ConflictError.
type Store interface {
	TryInsert(ctx context.Context, propertyID string, start, end time.Time, kind Kind, sourceID, reason string) (*IntervalRecord, error)
	Cancel(ctx context.Context, intervalID string) error
	// Query returns only active records overlapping [from, to).
	Query(ctx context.Context, propertyID string, from, to time.Time) ([]IntervalRecord, error)
}

// NormalizeDate truncates t to a UTC calendar date. Ledger intervals are
// date-granular; all stores normalize inputs through this.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateRange normalizes and validates an interval range.
func ValidateRange(start, end time.Time) (time.Time, time.Time, error) {
	s, e := NormalizeDate(start), NormalizeDate(end)
	if !e.After(s) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return s, e, nil
}
