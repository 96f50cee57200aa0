// Package idempotency deduplicates inbound channel events. Channels retry
// webhook delivery, so every event passes through the gate before any state
// changes; replays become no-op successes.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyProcessed is returned when an event was seen before.
var ErrAlreadyProcessed = errors.New("event already processed")

// Gate records processed external events keyed by (channel type, external
// event ID).
//
// CheckAndMark must be atomic: two concurrent calls with the same key yield
// exactly one nil and one ErrAlreadyProcessed.
type Gate interface {
	CheckAndMark(ctx context.Context, channelType, externalEventID string) error
	// Forget releases a previously marked event so a later redelivery is
	// processed again. Used when applying the event failed transiently
	// after the mark was taken; forgetting an unknown key is a no-op.
	Forget(ctx context.Context, channelType, externalEventID string) error
	// PurgeExpired removes records past their retention window and returns
	// the number removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
