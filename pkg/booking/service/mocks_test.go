package service

import (
	"context"
	"sync"
	"time"

	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/bookingstore"
)

// MockStore is a mock implementation of bookingstore.Store
type MockStore struct {
	CreateBookingFunc           func(ctx context.Context, b *booking.Booking) error
	GetBookingFunc              func(ctx context.Context, id string) (*booking.Booking, error)
	GetBookingByChannelRefFunc  func(ctx context.Context, source, channelBookingID string) (*booking.Booking, error)
	UpdateBookingStatusFunc     func(ctx context.Context, id string, status booking.Status) error
	ListBookingsFunc            func(ctx context.Context, propertyID string, from, to time.Time) ([]*booking.Booking, error)
	ListChannelBookingsFunc     func(ctx context.Context, source string, from, to time.Time) ([]*booking.Booking, error)
	CreateBlockFunc             func(ctx context.Context, b *booking.Block) error
	GetBlockFunc                func(ctx context.Context, id string) (*booking.Block, error)
	RemoveBlockFunc             func(ctx context.Context, id string) error
}

func (m *MockStore) CreateBooking(ctx context.Context, b *booking.Booking) error {
	if m.CreateBookingFunc != nil {
		return m.CreateBookingFunc(ctx, b)
	}
	return nil
}

func (m *MockStore) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	if m.GetBookingFunc != nil {
		return m.GetBookingFunc(ctx, id)
	}
	return nil, bookingstore.ErrBookingNotFound
}

func (m *MockStore) GetBookingByChannelRef(ctx context.Context, source, channelBookingID string) (*booking.Booking, error) {
	if m.GetBookingByChannelRefFunc != nil {
		return m.GetBookingByChannelRefFunc(ctx, source, channelBookingID)
	}
	return nil, bookingstore.ErrBookingNotFound
}

func (m *MockStore) UpdateBookingStatus(ctx context.Context, id string, status booking.Status) error {
	if m.UpdateBookingStatusFunc != nil {
		return m.UpdateBookingStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockStore) ListBookings(ctx context.Context, propertyID string, from, to time.Time) ([]*booking.Booking, error) {
	if m.ListBookingsFunc != nil {
		return m.ListBookingsFunc(ctx, propertyID, from, to)
	}
	return nil, nil
}

func (m *MockStore) ListChannelBookings(ctx context.Context, source string, from, to time.Time) ([]*booking.Booking, error) {
	if m.ListChannelBookingsFunc != nil {
		return m.ListChannelBookingsFunc(ctx, source, from, to)
	}
	return nil, nil
}

func (m *MockStore) CreateBlock(ctx context.Context, b *booking.Block) error {
	if m.CreateBlockFunc != nil {
		return m.CreateBlockFunc(ctx, b)
	}
	return nil
}

func (m *MockStore) GetBlock(ctx context.Context, id string) (*booking.Block, error) {
	if m.GetBlockFunc != nil {
		return m.GetBlockFunc(ctx, id)
	}
	return nil, bookingstore.ErrBlockNotFound
}

func (m *MockStore) RemoveBlock(ctx context.Context, id string) error {
	if m.RemoveBlockFunc != nil {
		return m.RemoveBlockFunc(ctx, id)
	}
	return nil
}

// memBookingStore keeps bookings and blocks in maps for tests that need
// real read-after-write behavior.
type memBookingStore struct {
	MockStore
	mu       sync.Mutex
	bookings map[string]*booking.Booking
	blocks   map[string]*booking.Block
}

func newMemBookingStore() *memBookingStore {
	s := &memBookingStore{
		bookings: make(map[string]*booking.Booking),
		blocks:   make(map[string]*booking.Block),
	}
	s.CreateBookingFunc = func(_ context.Context, b *booking.Booking) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		copied := *b
		s.bookings[b.ID] = &copied
		return nil
	}
	s.GetBookingFunc = func(_ context.Context, id string) (*booking.Booking, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		b, ok := s.bookings[id]
		if !ok {
			return nil, bookingstore.ErrBookingNotFound
		}
		copied := *b
		return &copied, nil
	}
	s.GetBookingByChannelRefFunc = func(_ context.Context, source, ref string) (*booking.Booking, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Active rows win over cancelled ones, mirroring the store's
		// latest-row ordering.
		var match *booking.Booking
		for _, b := range s.bookings {
			if b.Source != source || b.ChannelBookingID != ref {
				continue
			}
			if match == nil || b.Status != booking.StatusCancelled {
				match = b
			}
		}
		if match == nil {
			return nil, bookingstore.ErrBookingNotFound
		}
		copied := *match
		return &copied, nil
	}
	s.UpdateBookingStatusFunc = func(_ context.Context, id string, status booking.Status) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		b, ok := s.bookings[id]
		if !ok {
			return bookingstore.ErrBookingNotFound
		}
		b.Status = status
		return nil
	}
	s.CreateBlockFunc = func(_ context.Context, blk *booking.Block) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		copied := *blk
		s.blocks[blk.ID] = &copied
		return nil
	}
	s.GetBlockFunc = func(_ context.Context, id string) (*booking.Block, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		blk, ok := s.blocks[id]
		if !ok {
			return nil, bookingstore.ErrBlockNotFound
		}
		copied := *blk
		return &copied, nil
	}
	s.RemoveBlockFunc = func(_ context.Context, id string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		blk, ok := s.blocks[id]
		if !ok || blk.RemovedAt != nil {
			return bookingstore.ErrBlockNotFound
		}
		now := time.Now().UTC()
		blk.RemovedAt = &now
		return nil
	}
	return s
}

// capturePublisher records published change events.
type capturePublisher struct {
	mu     sync.Mutex
	events []booking.ChangeEvent
}

func (p *capturePublisher) Publish(event booking.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) Events() []booking.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]booking.ChangeEvent, len(p.events))
	copy(out, p.events)
	return out
}
