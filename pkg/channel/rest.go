package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

// restAdapter is a generic JSON-over-HTTP channel integration. Channels that
// expose a conventional REST surface (availability PUT, bookings POST/GET,
// HMAC-signed webhooks) are served by this adapter configured with their
// base URL; only channels with bespoke protocols need their own Adapter.
type restAdapter struct {
	channelType string
	baseURL     string
	client      *http.Client
}

// NewRESTAdapter creates an adapter for a REST-style channel API.
func NewRESTAdapter(channelType, baseURL string, timeout time.Duration) Adapter {
	return &restAdapter{
		channelType: channelType,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
	}
}

func (a *restAdapter) Type() string { return a.channelType }

// RemoteError is a non-2xx response from a channel API. The orchestrator
// classifies it: 5xx and 429 are retryable, other 4xx are terminal.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("channel API returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth retrying.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// AuthFailure reports whether the channel rejected our credentials.
func (e *RemoteError) AuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type availabilityPayload struct {
	PropertyID string `json:"property_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Available  bool   `json:"available"`
}

func (a *restAdapter) PushAvailability(ctx context.Context, creds *Credentials, update *AvailabilityUpdate) error {
	payload := availabilityPayload{
		PropertyID: update.PropertyID,
		StartDate:  update.Start.Format(dateLayout),
		EndDate:    update.End.Format(dateLayout),
		Available:  update.Available,
	}
	return a.do(ctx, creds, http.MethodPut, "/v1/availability", payload, nil)
}

type bookingPayload struct {
	BookingID  string `json:"booking_id"`
	PropertyID string `json:"property_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Cancelled  bool   `json:"cancelled"`
}

func (a *restAdapter) PushBooking(ctx context.Context, creds *Credentials, push *BookingPush) error {
	payload := bookingPayload{
		BookingID:  push.BookingID,
		PropertyID: push.PropertyID,
		StartDate:  push.Start.Format(dateLayout),
		EndDate:    push.End.Format(dateLayout),
		Cancelled:  push.Cancelled,
	}
	return a.do(ctx, creds, http.MethodPost, "/v1/bookings", payload, nil)
}

type externalBookingPayload struct {
	BookingID  string `json:"booking_id"`
	PropertyID string `json:"property_id"`
	GuestName  string `json:"guest_name"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Cancelled  bool   `json:"cancelled"`
}

func (p *externalBookingPayload) toExternal() (ExternalBooking, error) {
	start, err := time.Parse(dateLayout, p.StartDate)
	if err != nil {
		return ExternalBooking{}, fmt.Errorf("invalid start_date %q: %w", p.StartDate, err)
	}
	end, err := time.Parse(dateLayout, p.EndDate)
	if err != nil {
		return ExternalBooking{}, fmt.Errorf("invalid end_date %q: %w", p.EndDate, err)
	}
	return ExternalBooking{
		ChannelBookingID: p.BookingID,
		PropertyID:       p.PropertyID,
		GuestName:        p.GuestName,
		Start:            start,
		End:              end,
		Cancelled:        p.Cancelled,
	}, nil
}

func (a *restAdapter) PullBookings(ctx context.Context, creds *Credentials, from, to time.Time) ([]ExternalBooking, error) {
	path := fmt.Sprintf("/v1/bookings?from=%s&to=%s", from.Format(dateLayout), to.Format(dateLayout))

	var payloads []externalBookingPayload
	if err := a.do(ctx, creds, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	bookings := make([]ExternalBooking, 0, len(payloads))
	for i := range payloads {
		ext, err := payloads[i].toExternal()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, ext)
	}
	return bookings, nil
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the payload against
// the connection's webhook secret.
func (a *restAdapter) VerifySignature(creds *Credentials, payload []byte, signature string) error {
	if creds == nil || creds.WebhookSecret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(creds.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

type webhookPayload struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Booking   externalBookingPayload `json:"booking"`
}

func (a *restAdapter) ParseEvent(payload []byte) (*ExternalEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if wp.EventID == "" {
		return nil, fmt.Errorf("webhook payload missing event_id")
	}

	var action EventAction
	switch wp.EventType {
	case "booking.created":
		action = EventBookingCreated
	case "booking.cancelled":
		action = EventBookingCancelled
	case "booking.modified":
		action = EventBookingModified
	default:
		return nil, fmt.Errorf("unknown event_type %q", wp.EventType)
	}

	ext, err := wp.Booking.toExternal()
	if err != nil {
		return nil, err
	}

	return &ExternalEvent{
		ExternalEventID: wp.EventID,
		Action:          action,
		Booking:         ext,
		ReceivedAt:      time.Now().UTC(),
	}, nil
}

func (a *restAdapter) do(ctx context.Context, creds *Credentials, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if creds != nil && creds.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("channel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
