package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRESTAdapter_PushBooking(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody bookingPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	adapter := NewRESTAdapter("vrbo", srv.URL, 5*time.Second)
	creds := &Credentials{APIKey: "key-123"}

	err := adapter.PushBooking(context.Background(), creds, &BookingPush{
		BookingID:  "b-1",
		PropertyID: "prop-1",
		Start:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}

	if gotPath != "/v1/bookings" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer key-123" {
		t.Errorf("unexpected auth header %s", gotAuth)
	}
	if gotBody.StartDate != "2026-09-01" || gotBody.EndDate != "2026-09-05" {
		t.Errorf("unexpected dates: %+v", gotBody)
	}
}

func TestRESTAdapter_RemoteErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewRESTAdapter("vrbo", srv.URL, 5*time.Second)

	err := adapter.PushAvailability(context.Background(), nil, &AvailabilityUpdate{
		PropertyID: "prop-1",
		Start:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
	})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if !remote.Retryable() {
		t.Error("502 should be retryable")
	}
	if remote.AuthFailure() {
		t.Error("502 is not an auth failure")
	}
}

func TestRESTAdapter_PullBookings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "2026-09-01" {
			t.Errorf("unexpected from: %s", r.URL.Query().Get("from"))
		}
		_ = json.NewEncoder(w).Encode([]externalBookingPayload{
			{BookingID: "ext-1", PropertyID: "prop-1", GuestName: "A", StartDate: "2026-09-02", EndDate: "2026-09-04"},
		})
	}))
	defer srv.Close()

	adapter := NewRESTAdapter("vrbo", srv.URL, 5*time.Second)

	bookings, err := adapter.PullBookings(context.Background(), nil,
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(bookings) != 1 || bookings[0].ChannelBookingID != "ext-1" {
		t.Fatalf("unexpected bookings: %+v", bookings)
	}
	if !bookings[0].Start.Equal(time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start: %v", bookings[0].Start)
	}
}

func TestRESTAdapter_VerifySignature(t *testing.T) {
	adapter := NewRESTAdapter("vrbo", "http://unused", time.Second)
	creds := &Credentials{WebhookSecret: "shh"}
	payload := []byte(`{"event_id":"e-1"}`)

	if err := adapter.VerifySignature(creds, payload, sign("shh", payload)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := adapter.VerifySignature(creds, payload, sign("wrong", payload)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := adapter.VerifySignature(&Credentials{}, payload, "sig"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing secret, got %v", err)
	}
}

func TestRESTAdapter_ParseEvent(t *testing.T) {
	adapter := NewRESTAdapter("vrbo", "http://unused", time.Second)

	payload := []byte(`{
		"event_id": "evt-42",
		"event_type": "booking.created",
		"booking": {
			"booking_id": "ext-9",
			"property_id": "prop-1",
			"guest_name": "B",
			"start_date": "2026-10-01",
			"end_date": "2026-10-03"
		}
	}`)

	event, err := adapter.ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.ExternalEventID != "evt-42" || event.Action != EventBookingCreated {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Booking.ChannelBookingID != "ext-9" {
		t.Errorf("unexpected booking: %+v", event.Booking)
	}

	if _, err := adapter.ParseEvent([]byte(`{"event_type":"booking.created"}`)); err == nil {
		t.Error("expected error for missing event_id")
	}
	if _, err := adapter.ParseEvent([]byte(`{"event_id":"e","event_type":"other"}`)); err == nil {
		t.Error("expected error for unknown event_type")
	}
}
