// Package channel abstracts external booking platforms (OTAs) behind a
// uniform adapter interface. Each supported channel type registers one
// Adapter; the sync orchestrator and reconciler speak only to this package.
package channel

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownChannel is returned for a channel type with no registered adapter.
	ErrUnknownChannel = errors.New("unknown channel type")

	// ErrInvalidSignature is returned when a webhook payload fails
	// authenticity verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Credentials holds per-connection authentication material for a channel.
type Credentials struct {
	APIKey    string
	APISecret string
	// WebhookSecret signs inbound webhook payloads for this connection.
	WebhookSecret string
}

// CredentialProvider resolves credentials by reference: a connection's
// credential_ref for pushes and pulls, or a channel type for webhook
// verification. Implementations decide where secrets live (env, file,
// secret manager).
type CredentialProvider interface {
	Credentials(ctx context.Context, ref string) (*Credentials, error)
}

// AvailabilityUpdate tells a channel that a date range opened or closed.
type AvailabilityUpdate struct {
	PropertyID string
	Start      time.Time
	End        time.Time
	Available  bool
}

// BookingPush notifies a channel about a booking created or cancelled
// locally or on another channel.
type BookingPush struct {
	BookingID  string
	PropertyID string
	Start      time.Time
	End        time.Time
	Cancelled  bool
}

// ExternalBooking is a booking as reported by a channel, used during
// webhook ingestion and reconciliation pulls.
type ExternalBooking struct {
	ChannelBookingID string
	PropertyID       string
	GuestName        string
	Start            time.Time
	End              time.Time
	Cancelled        bool
}

// EventAction is the kind of change an inbound channel event carries.
type EventAction string

const (
	EventBookingCreated   EventAction = "booking_created"
	EventBookingCancelled EventAction = "booking_cancelled"
	EventBookingModified  EventAction = "booking_modified"
)

// ExternalEvent is a parsed inbound webhook event. ExternalEventID is the
// channel's own event identifier and drives idempotent ingestion.
type ExternalEvent struct {
	ExternalEventID string
	Action          EventAction
	Booking         ExternalBooking
	ReceivedAt      time.Time
}

// Adapter is the per-channel integration surface. Push methods are invoked
// by the sync orchestrator under its rate limiter and circuit breaker;
// PullBookings feeds the reconciler; VerifySignature and ParseEvent handle
// inbound webhooks.
type Adapter interface {
	// Type returns the channel type this adapter serves, e.g. "airbnb".
	Type() string

	PushAvailability(ctx context.Context, creds *Credentials, update *AvailabilityUpdate) error
	PushBooking(ctx context.Context, creds *Credentials, push *BookingPush) error

	// PullBookings returns the channel's view of bookings overlapping
	// [from, to) across the connection's properties.
	PullBookings(ctx context.Context, creds *Credentials, from, to time.Time) ([]ExternalBooking, error)

	// VerifySignature checks the authenticity of a raw webhook payload.
	// Returns ErrInvalidSignature when verification fails.
	VerifySignature(creds *Credentials, payload []byte, signature string) error

	// ParseEvent decodes a verified webhook payload into an ExternalEvent.
	ParseEvent(payload []byte) (*ExternalEvent, error)
}
