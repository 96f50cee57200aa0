// Package booking defines the core reservation domain: bookings, manual
// blocks, the booking status machine, and the change events that drive
// channel synchronization.
package booking

import (
	"time"
)

// Status is the lifecycle status of a booking.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
)

// transitions is the allowed forward edge per status. Cancellation is
// handled separately since it is reachable from several statuses.
var transitions = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusCheckedIn,
	StatusCheckedIn: StatusCheckedOut,
}

// CanTransition reports whether a booking may move from one status to
// another. Checked-out and cancelled are terminal.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		switch from {
		case StatusPending, StatusConfirmed, StatusCheckedIn:
			return true
		}
		return false
	}
	return transitions[from] == to
}

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCancelled:
		return true
	}
	return false
}

// Source identifies where a booking originated: "direct" for bookings made
// on the platform itself, otherwise a channel type such as "airbnb".
const SourceDirect = "direct"

// Booking is a guest reservation occupying a property for [Start, End).
// Each non-cancelled booking is backed by exactly one active ledger interval
// referenced by IntervalID.
type Booking struct {
	ID               string
	PropertyID       string
	GuestName        string
	Start            time.Time
	End              time.Time
	Status           Status
	Source           string
	ChannelBookingID string
	IntervalID       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether the booking currently holds inventory.
func (b *Booking) Active() bool {
	return b.Status != StatusCancelled
}

// Block is a manual hold on a property (maintenance, owner stay). Like a
// booking it is backed by one active ledger interval while in place.
type Block struct {
	ID         string
	PropertyID string
	Start      time.Time
	End        time.Time
	Reason     string
	IntervalID string
	CreatedAt  time.Time
	RemovedAt  *time.Time
}

// Action describes what happened to a piece of inventory.
type Action string

const (
	ActionCreated   Action = "created"
	ActionCancelled Action = "cancelled"
	ActionModified  Action = "modified"
	ActionBlocked   Action = "blocked"
	ActionUnblocked Action = "unblocked"
)

// ChangeEvent is emitted after every successful local inventory mutation
// and fanned out to channel connections by the sync orchestrator. Origin is
// the source of the change ("direct" or a channel type) so the orchestrator
// can skip echoing a change back to the channel it came from.
type ChangeEvent struct {
	EventID    string
	PropertyID string
	BookingID  string
	Start      time.Time
	End        time.Time
	Action     Action
	Origin     string
	OccurredAt time.Time
}

// CreateBookingRequest carries the fields for creating a direct booking.
type CreateBookingRequest struct {
	PropertyID string
	GuestName  string
	Start      time.Time
	End        time.Time
}

// CreateBlockRequest carries the fields for placing a manual block.
type CreateBlockRequest struct {
	PropertyID string
	Start      time.Time
	End        time.Time
	Reason     string
}
