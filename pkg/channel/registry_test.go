package channel

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubAdapter struct {
	channelType string
}

func (a *stubAdapter) Type() string { return a.channelType }

func (a *stubAdapter) PushAvailability(context.Context, *Credentials, *AvailabilityUpdate) error {
	return nil
}

func (a *stubAdapter) PushBooking(context.Context, *Credentials, *BookingPush) error {
	return nil
}

func (a *stubAdapter) PullBookings(context.Context, *Credentials, time.Time, time.Time) ([]ExternalBooking, error) {
	return nil, nil
}

func (a *stubAdapter) VerifySignature(*Credentials, []byte, string) error { return nil }

func (a *stubAdapter) ParseEvent([]byte) (*ExternalEvent, error) { return nil, nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&stubAdapter{channelType: "airbnb"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.Register(&stubAdapter{channelType: "vrbo"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	adapter, err := reg.Get("airbnb")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if adapter.Type() != "airbnb" {
		t.Errorf("expected airbnb adapter, got %s", adapter.Type())
	}

	types := reg.Types()
	if len(types) != 2 || types[0] != "airbnb" || types[1] != "vrbo" {
		t.Errorf("unexpected types: %v", types)
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&stubAdapter{channelType: "airbnb"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.Register(&stubAdapter{channelType: "airbnb"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("nonexistent")
	if !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}
