package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/bookingstore"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/channelstore"
)

// MockAdapter is a mock implementation of channel.Adapter
type MockAdapter struct {
	ChannelType          string
	PushAvailabilityFunc func(ctx context.Context, creds *channel.Credentials, update *channel.AvailabilityUpdate) error
	PushBookingFunc      func(ctx context.Context, creds *channel.Credentials, push *channel.BookingPush) error
	PullBookingsFunc     func(ctx context.Context, creds *channel.Credentials, from, to time.Time) ([]channel.ExternalBooking, error)
	VerifySignatureFunc  func(creds *channel.Credentials, payload []byte, signature string) error
	ParseEventFunc       func(payload []byte) (*channel.ExternalEvent, error)

	mu                 sync.Mutex
	bookingPushes      []*channel.BookingPush
	availabilityPushes []*channel.AvailabilityUpdate
}

func (m *MockAdapter) Type() string { return m.ChannelType }

func (m *MockAdapter) PushAvailability(ctx context.Context, creds *channel.Credentials, update *channel.AvailabilityUpdate) error {
	m.mu.Lock()
	m.availabilityPushes = append(m.availabilityPushes, update)
	m.mu.Unlock()
	if m.PushAvailabilityFunc != nil {
		return m.PushAvailabilityFunc(ctx, creds, update)
	}
	return nil
}

func (m *MockAdapter) PushBooking(ctx context.Context, creds *channel.Credentials, push *channel.BookingPush) error {
	m.mu.Lock()
	m.bookingPushes = append(m.bookingPushes, push)
	m.mu.Unlock()
	if m.PushBookingFunc != nil {
		return m.PushBookingFunc(ctx, creds, push)
	}
	return nil
}

func (m *MockAdapter) PullBookings(ctx context.Context, creds *channel.Credentials, from, to time.Time) ([]channel.ExternalBooking, error) {
	if m.PullBookingsFunc != nil {
		return m.PullBookingsFunc(ctx, creds, from, to)
	}
	return nil, nil
}

func (m *MockAdapter) VerifySignature(creds *channel.Credentials, payload []byte, signature string) error {
	if m.VerifySignatureFunc != nil {
		return m.VerifySignatureFunc(creds, payload, signature)
	}
	return nil
}

func (m *MockAdapter) ParseEvent(payload []byte) (*channel.ExternalEvent, error) {
	if m.ParseEventFunc != nil {
		return m.ParseEventFunc(payload)
	}
	return nil, nil
}

func (m *MockAdapter) BookingPushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookingPushes)
}

func (m *MockAdapter) AvailabilityPushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.availabilityPushes)
}

// MockCredentialProvider returns the same credentials for every ref.
type MockCredentialProvider struct {
	CredentialsFunc func(ctx context.Context, ref string) (*channel.Credentials, error)
}

func (m *MockCredentialProvider) Credentials(ctx context.Context, ref string) (*channel.Credentials, error) {
	if m.CredentialsFunc != nil {
		return m.CredentialsFunc(ctx, ref)
	}
	return &channel.Credentials{APIKey: "test", WebhookSecret: "shh"}, nil
}

// MockLifecycle is a mock implementation of Lifecycle
type MockLifecycle struct {
	ImportChannelBookingFunc func(ctx context.Context, origin string, ext *channel.ExternalBooking) (*booking.Booking, error)
	CancelChannelBookingFunc func(ctx context.Context, origin, channelBookingID string) (*booking.Booking, error)

	mu      sync.Mutex
	imports []string
	cancels []string
}

func (m *MockLifecycle) ImportChannelBooking(ctx context.Context, origin string, ext *channel.ExternalBooking) (*booking.Booking, error) {
	m.mu.Lock()
	m.imports = append(m.imports, ext.ChannelBookingID)
	m.mu.Unlock()
	if m.ImportChannelBookingFunc != nil {
		return m.ImportChannelBookingFunc(ctx, origin, ext)
	}
	return &booking.Booking{ID: "b-" + ext.ChannelBookingID, Source: origin, ChannelBookingID: ext.ChannelBookingID}, nil
}

func (m *MockLifecycle) CancelChannelBooking(ctx context.Context, origin, channelBookingID string) (*booking.Booking, error) {
	m.mu.Lock()
	m.cancels = append(m.cancels, channelBookingID)
	m.mu.Unlock()
	if m.CancelChannelBookingFunc != nil {
		return m.CancelChannelBookingFunc(ctx, origin, channelBookingID)
	}
	return &booking.Booking{ID: "b-" + channelBookingID, Status: booking.StatusCancelled}, nil
}

func (m *MockLifecycle) ImportCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.imports)
}

func (m *MockLifecycle) CancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}

// memChannelStore is an in-memory channelstore.Store for orchestrator tests.
type memChannelStore struct {
	mu          sync.Mutex
	connections map[string]*channel.Connection
	syncLog     []*channel.SyncLogEntry
	deadLetters []*channel.DeadLetter
	// listGate, when set before use, stalls ListPropertyConnections until
	// closed; simulates a slow database on the fan-out path.
	listGate chan struct{}
}

func newMemChannelStore() *memChannelStore {
	return &memChannelStore{connections: make(map[string]*channel.Connection)}
}

var _ channelstore.Store = (*memChannelStore)(nil)

func (s *memChannelStore) CreateConnection(_ context.Context, conn *channel.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *conn
	s.connections[conn.ID] = &copied
	return nil
}

func (s *memChannelStore) GetConnection(_ context.Context, id string) (*channel.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[id]
	if !ok {
		return nil, channelstore.ErrConnectionNotFound
	}
	copied := *conn
	return &copied, nil
}

func (s *memChannelStore) ListConnections(_ context.Context) ([]*channel.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*channel.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		copied := *conn
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memChannelStore) ListPropertyConnections(_ context.Context, propertyID string) ([]*channel.Connection, error) {
	if s.listGate != nil {
		<-s.listGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*channel.Connection
	for _, conn := range s.connections {
		if conn.PropertyID == propertyID {
			copied := *conn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memChannelStore) UpdateConnectionStatus(_ context.Context, id string, status channel.ConnectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[id]
	if !ok {
		return channelstore.ErrConnectionNotFound
	}
	conn.Status = status
	return nil
}

func (s *memChannelStore) TouchLastSync(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.connections[id]; ok {
		now := time.Now().UTC()
		conn.LastSyncAt = &now
	}
	return nil
}

func (s *memChannelStore) AppendSyncLog(_ context.Context, entry *channel.SyncLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.syncLog = append(s.syncLog, &copied)
	return nil
}

func (s *memChannelStore) ListSyncLog(_ context.Context, connectionID string, limit int) ([]*channel.SyncLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*channel.SyncLogEntry
	for i := len(s.syncLog) - 1; i >= 0 && len(out) < limit; i-- {
		if s.syncLog[i].ConnectionID == connectionID {
			copied := *s.syncLog[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memChannelStore) AddDeadLetter(_ context.Context, dl *channel.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *dl
	s.deadLetters = append(s.deadLetters, &copied)
	return nil
}

func (s *memChannelStore) ListDeadLetters(_ context.Context, limit int) ([]*channel.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*channel.DeadLetter, 0, len(s.deadLetters))
	for i := len(s.deadLetters) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.deadLetters[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memChannelStore) DeadLetterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadLetters)
}

func (s *memChannelStore) ConnectionStatus(id string) channel.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.connections[id]; ok {
		return conn.Status
	}
	return ""
}

// memBookingLookup implements bookingstore.BookingStore lookups for the
// stale-task re-check.
type memBookingLookup struct {
	mu       sync.Mutex
	bookings map[string]*booking.Booking
}

func newMemBookingLookup() *memBookingLookup {
	return &memBookingLookup{bookings: make(map[string]*booking.Booking)}
}

var _ bookingstore.BookingStore = (*memBookingLookup)(nil)

func (s *memBookingLookup) put(b *booking.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *b
	s.bookings[b.ID] = &copied
}

func (s *memBookingLookup) CreateBooking(_ context.Context, b *booking.Booking) error {
	s.put(b)
	return nil
}

func (s *memBookingLookup) GetBooking(_ context.Context, id string) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingstore.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *memBookingLookup) GetBookingByChannelRef(context.Context, string, string) (*booking.Booking, error) {
	return nil, bookingstore.ErrBookingNotFound
}

func (s *memBookingLookup) UpdateBookingStatus(_ context.Context, id string, status booking.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		b.Status = status
	}
	return nil
}

func (s *memBookingLookup) ListBookings(context.Context, string, time.Time, time.Time) ([]*booking.Booking, error) {
	return nil, nil
}

func (s *memBookingLookup) ListChannelBookings(context.Context, string, time.Time, time.Time) ([]*booking.Booking, error) {
	return nil, nil
}
