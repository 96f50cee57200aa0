package bookingstore

import (
	"context"
	"errors"
	"time"

	"github.com/staykit/channel-sync/pkg/booking"
)

var (
	// ErrBookingNotFound is returned when a booking lookup finds no matching record.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrBlockNotFound is returned when a block lookup finds no matching record.
	ErrBlockNotFound = errors.New("block not found")

	// ErrDuplicateChannelBooking is returned when importing a channel booking
	// whose (source, channel_booking_id) pair already exists.
	ErrDuplicateChannelBooking = errors.New("channel booking already imported")
)

// BookingStore defines booking persistence operations.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *booking.Booking) error
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	// GetBookingByChannelRef returns the most recent booking recorded under
	// (source, channelBookingID), cancelled rows included; callers decide
	// whether a cancelled match counts.
	GetBookingByChannelRef(ctx context.Context, source, channelBookingID string) (*booking.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status booking.Status) error
	// ListBookings returns non-cancelled bookings for a property overlapping
	// [from, to). A zero propertyID lists across all properties.
	ListBookings(ctx context.Context, propertyID string, from, to time.Time) ([]*booking.Booking, error)
	// ListChannelBookings returns non-cancelled bookings imported from the
	// given source overlapping [from, to), across all properties.
	ListChannelBookings(ctx context.Context, source string, from, to time.Time) ([]*booking.Booking, error)
}

// BlockStore defines manual block persistence operations.
type BlockStore interface {
	CreateBlock(ctx context.Context, b *booking.Block) error
	GetBlock(ctx context.Context, id string) (*booking.Block, error)
	RemoveBlock(ctx context.Context, id string) error
}

// Store combines all reservation persistence.
type Store interface {
	BookingStore
	BlockStore
}
