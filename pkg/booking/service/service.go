package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staykit/channel-sync/internal/metrics"
	apperrors "github.com/staykit/channel-sync/pkg/app/errors"
	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/bookingstore"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/ledger"
)

// Conflict type values reported to callers when dates are not available.
const (
	ConflictDoubleBooking  = "double_booking"
	ConflictInventoryBlock = "inventory_block"
)

var (
	ErrDatesUnavailable   = errors.New("requested dates are not available")
	ErrInvalidTransition  = errors.New("invalid booking status transition")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrBlockNotFound      = errors.New("block not found")
	ErrBlockAlreadyLifted = errors.New("block already removed")
)

// Publisher receives a ChangeEvent after every successful inventory
// mutation. The sync orchestrator implements it; Publish must not block.
type Publisher interface {
	Publish(event booking.ChangeEvent)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(event booking.ChangeEvent)

func (f PublisherFunc) Publish(event booking.ChangeEvent) { f(event) }

// NopPublisher discards events; used when sync is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(booking.ChangeEvent) {}

// Service defines the reservation lifecycle business logic.
type Service interface {
	CreateBooking(ctx context.Context, req *booking.CreateBookingRequest) (*booking.Booking, error)
	CancelBooking(ctx context.Context, id string) (*booking.Booking, error)
	Transition(ctx context.Context, id string, next booking.Status) (*booking.Booking, error)
	CreateBlock(ctx context.Context, req *booking.CreateBlockRequest) (*booking.Block, error)
	RemoveBlock(ctx context.Context, id string) (*booking.Block, error)
	QueryAvailability(ctx context.Context, propertyID string, from, to time.Time) ([]ledger.IntervalRecord, error)

	// ImportChannelBooking records a booking that originated on an external
	// channel. Origin is the channel type and is carried on the emitted
	// event so the orchestrator never echoes the change back.
	ImportChannelBooking(ctx context.Context, origin string, ext *channel.ExternalBooking) (*booking.Booking, error)
	// CancelChannelBooking cancels a previously imported channel booking by
	// its external reference.
	CancelChannelBooking(ctx context.Context, origin, channelBookingID string) (*booking.Booking, error)
}

type bookingService struct {
	ledger ledger.Store
	store  bookingstore.Store
	events Publisher
	logger *zap.Logger
}

// NewService creates the reservation lifecycle service.
func NewService(ledgerStore ledger.Store, store bookingstore.Store, events Publisher, logger *zap.Logger) Service {
	return &bookingService{
		ledger: ledgerStore,
		store:  store,
		events: events,
		logger: logger,
	}
}

// CreateBooking reserves [Start, End) for a direct booking. The ledger
// insert is the atomic no-overlap check; the booking row is only written
// once the interval is held, and the interval is released if that write
// fails, so a booking row never exists without its active interval.
func (s *bookingService) CreateBooking(ctx context.Context, req *booking.CreateBookingRequest) (*booking.Booking, error) {
	return s.createBooking(ctx, req.PropertyID, req.GuestName, req.Start, req.End, booking.SourceDirect, "")
}

func (s *bookingService) createBooking(
	ctx context.Context,
	propertyID, guestName string,
	start, end time.Time,
	source, channelBookingID string,
) (*booking.Booking, error) {
	bookingID := uuid.NewString()

	interval, err := s.ledger.TryInsert(ctx, propertyID, start, end, ledger.KindBooking, bookingID, "")
	if err != nil {
		return nil, mapLedgerError(err)
	}

	b := &booking.Booking{
		ID:               bookingID,
		PropertyID:       propertyID,
		GuestName:        guestName,
		Start:            interval.Start,
		End:              interval.End,
		Status:           booking.StatusPending,
		Source:           source,
		ChannelBookingID: channelBookingID,
		IntervalID:       interval.ID,
	}
	if source != booking.SourceDirect {
		// Channel bookings arrive already confirmed on the channel side.
		b.Status = booking.StatusConfirmed
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		// Release the held interval so the dates do not leak.
		if cancelErr := s.ledger.Cancel(ctx, interval.ID); cancelErr != nil {
			s.logger.Error("failed to release interval after booking write failure",
				zap.String("interval_id", interval.ID),
				zap.Error(cancelErr))
		}
		if errors.Is(err, bookingstore.ErrDuplicateChannelBooking) {
			return nil, apperrors.ConflictError(err, "channel booking already imported")
		}
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}

	s.events.Publish(booking.ChangeEvent{
		EventID:    uuid.NewString(),
		PropertyID: b.PropertyID,
		BookingID:  b.ID,
		Start:      b.Start,
		End:        b.End,
		Action:     booking.ActionCreated,
		Origin:     source,
		OccurredAt: time.Now().UTC(),
	})
	return b, nil
}

// CancelBooking cancels a booking and frees its dates.
func (s *bookingService) CancelBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.cancelBooking(ctx, id, booking.SourceDirect)
}

func (s *bookingService) cancelBooking(ctx context.Context, id, origin string) (*booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, bookingstore.ErrBookingNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrBookingNotFound, "booking not found")
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}

	if !booking.CanTransition(b.Status, booking.StatusCancelled) {
		if b.Status == booking.StatusCancelled {
			// Cancelling twice is a no-op.
			return b, nil
		}
		return nil, apperrors.BadRequestError(ErrInvalidTransition,
			fmt.Sprintf("cannot cancel booking in status %s", b.Status))
	}

	if err := s.ledger.Cancel(ctx, b.IntervalID); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("failed to release interval: %w", err)
	}
	if err := s.store.UpdateBookingStatus(ctx, b.ID, booking.StatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to mark booking cancelled: %w", err)
	}
	b.Status = booking.StatusCancelled

	s.events.Publish(booking.ChangeEvent{
		EventID:    uuid.NewString(),
		PropertyID: b.PropertyID,
		BookingID:  b.ID,
		Start:      b.Start,
		End:        b.End,
		Action:     booking.ActionCancelled,
		Origin:     origin,
		OccurredAt: time.Now().UTC(),
	})
	return b, nil
}

// Transition advances a booking through confirm/check-in/check-out.
// Cancellation goes through CancelBooking since it also frees inventory.
func (s *bookingService) Transition(ctx context.Context, id string, next booking.Status) (*booking.Booking, error) {
	if !booking.ValidStatus(next) {
		return nil, apperrors.BadRequestError(ErrInvalidTransition, fmt.Sprintf("unknown status %q", next))
	}
	if next == booking.StatusCancelled {
		return s.CancelBooking(ctx, id)
	}

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, bookingstore.ErrBookingNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrBookingNotFound, "booking not found")
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}

	if !booking.CanTransition(b.Status, next) {
		return nil, apperrors.BadRequestError(ErrInvalidTransition,
			fmt.Sprintf("cannot transition booking from %s to %s", b.Status, next))
	}

	if err := s.store.UpdateBookingStatus(ctx, b.ID, next); err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	b.Status = next
	return b, nil
}

// CreateBlock places a manual hold on a property's dates. Blocks compete
// for inventory exactly like bookings.
func (s *bookingService) CreateBlock(ctx context.Context, req *booking.CreateBlockRequest) (*booking.Block, error) {
	blockID := uuid.NewString()

	interval, err := s.ledger.TryInsert(ctx, req.PropertyID, req.Start, req.End, ledger.KindBlock, blockID, req.Reason)
	if err != nil {
		return nil, mapLedgerError(err)
	}

	blk := &booking.Block{
		ID:         blockID,
		PropertyID: req.PropertyID,
		Start:      interval.Start,
		End:        interval.End,
		Reason:     req.Reason,
		IntervalID: interval.ID,
	}

	if err := s.store.CreateBlock(ctx, blk); err != nil {
		if cancelErr := s.ledger.Cancel(ctx, interval.ID); cancelErr != nil {
			s.logger.Error("failed to release interval after block write failure",
				zap.String("interval_id", interval.ID),
				zap.Error(cancelErr))
		}
		return nil, fmt.Errorf("failed to persist block: %w", err)
	}

	s.events.Publish(booking.ChangeEvent{
		EventID:    uuid.NewString(),
		PropertyID: blk.PropertyID,
		Start:      blk.Start,
		End:        blk.End,
		Action:     booking.ActionBlocked,
		Origin:     booking.SourceDirect,
		OccurredAt: time.Now().UTC(),
	})
	return blk, nil
}

// RemoveBlock lifts a manual block and reopens its dates.
func (s *bookingService) RemoveBlock(ctx context.Context, id string) (*booking.Block, error) {
	blk, err := s.store.GetBlock(ctx, id)
	if err != nil {
		if errors.Is(err, bookingstore.ErrBlockNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrBlockNotFound, "block not found")
		}
		return nil, fmt.Errorf("failed to load block: %w", err)
	}
	if blk.RemovedAt != nil {
		return nil, apperrors.BadRequestError(ErrBlockAlreadyLifted, "block already removed")
	}

	if err := s.ledger.Cancel(ctx, blk.IntervalID); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("failed to release interval: %w", err)
	}
	if err := s.store.RemoveBlock(ctx, blk.ID); err != nil {
		return nil, fmt.Errorf("failed to mark block removed: %w", err)
	}
	now := time.Now().UTC()
	blk.RemovedAt = &now

	s.events.Publish(booking.ChangeEvent{
		EventID:    uuid.NewString(),
		PropertyID: blk.PropertyID,
		Start:      blk.Start,
		End:        blk.End,
		Action:     booking.ActionUnblocked,
		Origin:     booking.SourceDirect,
		OccurredAt: now,
	})
	return blk, nil
}

// QueryAvailability returns the active occupancy intervals overlapping
// [from, to) for a property.
func (s *bookingService) QueryAvailability(ctx context.Context, propertyID string, from, to time.Time) ([]ledger.IntervalRecord, error) {
	if !to.After(from) {
		return nil, apperrors.BadRequestError(ledger.ErrInvalidRange, "to must be after from")
	}
	records, err := s.ledger.Query(ctx, propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	return records, nil
}

func (s *bookingService) ImportChannelBooking(ctx context.Context, origin string, ext *channel.ExternalBooking) (*booking.Booking, error) {
	existing, err := s.store.GetBookingByChannelRef(ctx, origin, ext.ChannelBookingID)
	if err != nil && !errors.Is(err, bookingstore.ErrBookingNotFound) {
		return nil, fmt.Errorf("failed to check channel booking: %w", err)
	}
	if existing != nil && existing.Active() {
		// Import is idempotent on the external reference. A cancelled prior
		// row does not count; the channel re-sent the booking, so it gets a
		// fresh import.
		return existing, nil
	}

	return s.createBooking(ctx, ext.PropertyID, ext.GuestName, ext.Start, ext.End, origin, ext.ChannelBookingID)
}

func (s *bookingService) CancelChannelBooking(ctx context.Context, origin, channelBookingID string) (*booking.Booking, error) {
	b, err := s.store.GetBookingByChannelRef(ctx, origin, channelBookingID)
	if err != nil {
		if errors.Is(err, bookingstore.ErrBookingNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrBookingNotFound, "channel booking not found")
		}
		return nil, fmt.Errorf("failed to load channel booking: %w", err)
	}
	return s.cancelBooking(ctx, b.ID, origin)
}

// mapLedgerError converts ledger failures into service errors. Conflicts
// carry a conflict_type detail distinguishing a guest collision from a
// manual block.
func mapLedgerError(err error) error {
	var conflict *ledger.ConflictError
	if errors.As(err, &conflict) {
		conflictType := ConflictDoubleBooking
		if conflict.HasKind(ledger.KindBlock) {
			conflictType = ConflictInventoryBlock
		}
		metrics.LedgerConflicts.WithLabelValues(conflictType).Inc()
		return apperrors.ConflictErrorWithDetails(
			fmt.Errorf("%w: %s", ErrDatesUnavailable, conflict.Error()),
			"requested dates are not available",
			map[string]string{"conflict_type": conflictType},
		)
	}
	if errors.Is(err, ledger.ErrInvalidRange) {
		return apperrors.BadRequestError(err, "end date must be after start date")
	}
	return fmt.Errorf("ledger insert failed: %w", err)
}
