package bookingstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/ledger"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit,
// raised by the partial unique index on (source, channel_booking_id).
const uniqueViolation = "23505"

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the reservation store.
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) CreateBooking(ctx context.Context, b *booking.Booking) error {
	_, err := s.db.NewInsert().
		Model(toBookingDao(b)).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateChannelBooking
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (s *pgStore) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	dao := new(BookingDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return toBooking(dao), nil
}

func (s *pgStore) GetBookingByChannelRef(ctx context.Context, source, channelBookingID string) (*booking.Booking, error) {
	dao := new(BookingDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("source = ?", source).
		Where("channel_booking_id = ?", channelBookingID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking by channel ref: %w", err)
	}
	return toBooking(dao), nil
}

func (s *pgStore) UpdateBookingStatus(ctx context.Context, id string, status booking.Status) error {
	res, err := s.db.NewUpdate().
		Model((*BookingDao)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (s *pgStore) ListBookings(ctx context.Context, propertyID string, from, to time.Time) ([]*booking.Booking, error) {
	from, to = ledger.NormalizeDate(from), ledger.NormalizeDate(to)

	var daos []BookingDao
	query := s.db.NewSelect().
		Model(&daos).
		Where("status != ?", string(booking.StatusCancelled)).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Order("start_date ASC")
	if propertyID != "" {
		query = query.Where("property_id = ?", propertyID)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*booking.Booking, len(daos))
	for i := range daos {
		bookings[i] = toBooking(&daos[i])
	}
	return bookings, nil
}

func (s *pgStore) ListChannelBookings(ctx context.Context, source string, from, to time.Time) ([]*booking.Booking, error) {
	from, to = ledger.NormalizeDate(from), ledger.NormalizeDate(to)

	var daos []BookingDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("source = ?", source).
		Where("status != ?", string(booking.StatusCancelled)).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Order("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel bookings: %w", err)
	}

	bookings := make([]*booking.Booking, len(daos))
	for i := range daos {
		bookings[i] = toBooking(&daos[i])
	}
	return bookings, nil
}

func (s *pgStore) CreateBlock(ctx context.Context, b *booking.Block) error {
	_, err := s.db.NewInsert().
		Model(toBlockDao(b)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}

func (s *pgStore) GetBlock(ctx context.Context, id string) (*booking.Block, error) {
	dao := new(BlockDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return toBlock(dao), nil
}

func (s *pgStore) RemoveBlock(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().
		Model((*BlockDao)(nil)).
		Set("removed_at = NOW()").
		Where("id = ?", id).
		Where("removed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read remove result: %w", err)
	}
	if affected == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == uniqueViolation
	}
	return false
}
