package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/staykit/channel-sync/pkg/app/errors"
	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/ledger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService() (Service, *memBookingStore, *capturePublisher) {
	store := newMemBookingStore()
	events := &capturePublisher{}
	svc := NewService(ledger.NewMemStore(), store, events, zap.NewNop())
	return svc, store, events
}

func conflictDetail(t *testing.T, err error) string {
	t.Helper()
	var svcErr *apperrors.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.Category != apperrors.CategoryDataConflict {
		t.Fatalf("expected conflict category, got %v", svcErr.Category)
	}
	return svcErr.Details["conflict_type"]
}

func TestCreateBooking_Success(t *testing.T) {
	svc, _, events := newTestService()

	b, err := svc.CreateBooking(context.Background(), &booking.CreateBookingRequest{
		PropertyID: "prop-1",
		GuestName:  "Alex",
		Start:      date(2026, 3, 1),
		End:        date(2026, 3, 5),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if b.Status != booking.StatusPending {
		t.Errorf("expected pending status, got %s", b.Status)
	}
	if b.Source != booking.SourceDirect {
		t.Errorf("expected direct source, got %s", b.Source)
	}
	if b.IntervalID == "" {
		t.Error("expected booking to reference its ledger interval")
	}

	evts := events.Events()
	if len(evts) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evts))
	}
	if evts[0].Action != booking.ActionCreated || evts[0].Origin != booking.SourceDirect {
		t.Errorf("unexpected event: %+v", evts[0])
	}
}

func TestCreateBooking_DoubleBookingConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 3, 1), End: date(2026, 3, 5),
	}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "B", Start: date(2026, 3, 3), End: date(2026, 3, 7),
	})
	if got := conflictDetail(t, err); got != ConflictDoubleBooking {
		t.Errorf("expected conflict_type %s, got %s", ConflictDoubleBooking, got)
	}
}

func TestCreateBooking_BlockConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateBlock(ctx, &booking.CreateBlockRequest{
		PropertyID: "prop-1", Start: date(2026, 4, 1), End: date(2026, 4, 10), Reason: "maintenance",
	}); err != nil {
		t.Fatalf("block failed: %v", err)
	}

	_, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 4, 5), End: date(2026, 4, 8),
	})
	if got := conflictDetail(t, err); got != ConflictInventoryBlock {
		t.Errorf("expected conflict_type %s, got %s", ConflictInventoryBlock, got)
	}
}

func TestCreateBooking_InvalidRange(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateBooking(context.Background(), &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 3, 5), End: date(2026, 3, 5),
	})
	if !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected data error, got %v", err)
	}
}

func TestCancelBooking_FreesDatesAndEmits(t *testing.T) {
	svc, _, events := newTestService()
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 5, 1), End: date(2026, 5, 5),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cancelled, err := svc.CancelBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != booking.StatusCancelled {
		t.Errorf("expected cancelled status, got %s", cancelled.Status)
	}

	// Same dates immediately rebookable.
	if _, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "B", Start: date(2026, 5, 1), End: date(2026, 5, 5),
	}); err != nil {
		t.Fatalf("rebooking failed: %v", err)
	}

	evts := events.Events()
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[1].Action != booking.ActionCancelled {
		t.Errorf("expected cancel event, got %+v", evts[1])
	}
}

func TestCancelBooking_Idempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 5, 1), End: date(2026, 5, 5),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.CancelBooking(ctx, b.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	again, err := svc.CancelBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("repeat cancel failed: %v", err)
	}
	if again.Status != booking.StatusCancelled {
		t.Errorf("expected cancelled, got %s", again.Status)
	}
}

func TestCancelBooking_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CancelBooking(context.Background(), "missing")
	if !apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransition_HappyPath(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 6, 1), End: date(2026, 6, 5),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, next := range []booking.Status{booking.StatusConfirmed, booking.StatusCheckedIn, booking.StatusCheckedOut} {
		b, err = svc.Transition(ctx, b.ID, next)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
		if b.Status != next {
			t.Fatalf("expected status %s, got %s", next, b.Status)
		}
	}
}

func TestTransition_IllegalEdges(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 6, 1), End: date(2026, 6, 5),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// pending cannot skip to checked_in.
	if _, err := svc.Transition(ctx, b.ID, booking.StatusCheckedIn); !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	// checked_out is terminal.
	for _, next := range []booking.Status{booking.StatusConfirmed, booking.StatusCheckedIn, booking.StatusCheckedOut} {
		if b, err = svc.Transition(ctx, b.ID, next); err != nil {
			t.Fatalf("transition failed: %v", err)
		}
	}
	if _, err := svc.Transition(ctx, b.ID, booking.StatusCancelled); !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected terminal status to reject cancel, got %v", err)
	}
}

func TestRemoveBlock_ReopensDates(t *testing.T) {
	svc, _, events := newTestService()
	ctx := context.Background()

	blk, err := svc.CreateBlock(ctx, &booking.CreateBlockRequest{
		PropertyID: "prop-1", Start: date(2026, 7, 1), End: date(2026, 7, 10), Reason: "owner stay",
	})
	if err != nil {
		t.Fatalf("block failed: %v", err)
	}

	if _, err := svc.RemoveBlock(ctx, blk.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 7, 2), End: date(2026, 7, 4),
	}); err != nil {
		t.Fatalf("booking after unblock failed: %v", err)
	}

	evts := events.Events()
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[0].Action != booking.ActionBlocked || evts[1].Action != booking.ActionUnblocked {
		t.Errorf("unexpected event sequence: %+v", evts)
	}

	// Removing twice is rejected.
	if _, err := svc.RemoveBlock(ctx, blk.ID); !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected repeat removal to fail, got %v", err)
	}
}

func TestImportChannelBooking_IdempotentAndTagged(t *testing.T) {
	svc, _, events := newTestService()
	ctx := context.Background()

	ext := &channel.ExternalBooking{
		ChannelBookingID: "ext-1",
		PropertyID:       "prop-1",
		GuestName:        "C",
		Start:            date(2026, 8, 1),
		End:              date(2026, 8, 5),
	}

	b, err := svc.ImportChannelBooking(ctx, "airbnb", ext)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if b.Source != "airbnb" || b.ChannelBookingID != "ext-1" {
		t.Errorf("unexpected booking: %+v", b)
	}
	if b.Status != booking.StatusConfirmed {
		t.Errorf("channel booking should import confirmed, got %s", b.Status)
	}

	// Repeat import returns the existing booking without a new event.
	again, err := svc.ImportChannelBooking(ctx, "airbnb", ext)
	if err != nil {
		t.Fatalf("repeat import failed: %v", err)
	}
	if again.ID != b.ID {
		t.Errorf("expected same booking, got %s and %s", b.ID, again.ID)
	}

	evts := events.Events()
	if len(evts) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evts))
	}
	if evts[0].Origin != "airbnb" {
		t.Errorf("expected event origin airbnb, got %s", evts[0].Origin)
	}
}

func TestCancelChannelBooking(t *testing.T) {
	svc, _, events := newTestService()
	ctx := context.Background()

	ext := &channel.ExternalBooking{
		ChannelBookingID: "ext-2",
		PropertyID:       "prop-1",
		GuestName:        "D",
		Start:            date(2026, 9, 1),
		End:              date(2026, 9, 5),
	}
	if _, err := svc.ImportChannelBooking(ctx, "vrbo", ext); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	b, err := svc.CancelChannelBooking(ctx, "vrbo", "ext-2")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if b.Status != booking.StatusCancelled {
		t.Errorf("expected cancelled, got %s", b.Status)
	}

	evts := events.Events()
	if len(evts) != 2 || evts[1].Origin != "vrbo" || evts[1].Action != booking.ActionCancelled {
		t.Errorf("unexpected events: %+v", evts)
	}

	if _, err := svc.CancelChannelBooking(ctx, "vrbo", "unknown"); !apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelChannelBooking_AlreadyCancelled(t *testing.T) {
	svc, _, events := newTestService()
	ctx := context.Background()

	ext := &channel.ExternalBooking{
		ChannelBookingID: "ext-3",
		PropertyID:       "prop-1",
		GuestName:        "E",
		Start:            date(2026, 11, 1),
		End:              date(2026, 11, 5),
	}
	if _, err := svc.ImportChannelBooking(ctx, "vrbo", ext); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if _, err := svc.CancelChannelBooking(ctx, "vrbo", "ext-3"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// The channel redelivers the cancel under a fresh event id; an already
	// cancelled booking is a no-op success, not a 404.
	b, err := svc.CancelChannelBooking(ctx, "vrbo", "ext-3")
	if err != nil {
		t.Fatalf("repeat channel cancel failed: %v", err)
	}
	if b.Status != booking.StatusCancelled {
		t.Errorf("expected cancelled, got %s", b.Status)
	}
	if got := len(events.Events()); got != 2 {
		t.Errorf("repeat cancel emitted an extra event: %d events", got)
	}
}

func TestImportChannelBooking_AfterCancelCreatesNewBooking(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ext := &channel.ExternalBooking{
		ChannelBookingID: "ext-4",
		PropertyID:       "prop-1",
		GuestName:        "F",
		Start:            date(2026, 12, 1),
		End:              date(2026, 12, 5),
	}
	first, err := svc.ImportChannelBooking(ctx, "vrbo", ext)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if _, err := svc.CancelChannelBooking(ctx, "vrbo", "ext-4"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// The cancelled row must not satisfy the idempotency check; the
	// channel re-sent the booking, so a fresh row holds the dates again.
	second, err := svc.ImportChannelBooking(ctx, "vrbo", ext)
	if err != nil {
		t.Fatalf("re-import after cancel failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("re-import returned the cancelled booking")
	}
	if second.Status != booking.StatusConfirmed {
		t.Errorf("expected confirmed, got %s", second.Status)
	}
}

func TestCreateBooking_ReleasesIntervalOnPersistFailure(t *testing.T) {
	store := newMemBookingStore()
	failing := true
	inner := store.CreateBookingFunc
	store.CreateBookingFunc = func(ctx context.Context, b *booking.Booking) error {
		if failing {
			return errors.New("db down")
		}
		return inner(ctx, b)
	}

	events := &capturePublisher{}
	svc := NewService(ledger.NewMemStore(), store, events, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "A", Start: date(2026, 10, 1), End: date(2026, 10, 5),
	}); err == nil {
		t.Fatal("expected create to fail")
	}
	if len(events.Events()) != 0 {
		t.Fatal("failed create must not emit an event")
	}

	// The held interval was released, so the same dates remain bookable.
	failing = false
	if _, err := svc.CreateBooking(ctx, &booking.CreateBookingRequest{
		PropertyID: "prop-1", GuestName: "B", Start: date(2026, 10, 1), End: date(2026, 10, 5),
	}); err != nil {
		t.Fatalf("expected dates to be free after failed create, got %v", err)
	}
}
