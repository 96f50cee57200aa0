package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staykit/channel-sync/internal/metrics"
	apperrors "github.com/staykit/channel-sync/pkg/app/errors"
	"github.com/staykit/channel-sync/pkg/bookingstore"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/idempotency"
)

// IngestResult reports what an inbound event did.
type IngestResult struct {
	// Duplicate is true when the event was already processed; the call is
	// a no-op success.
	Duplicate bool
	// BookingID is set when the event created or cancelled a booking.
	BookingID string
}

// Ingest applies one inbound webhook delivery: verify authenticity, pass
// the idempotency gate, then map the event onto the booking lifecycle. The
// resulting local change fans back out to all other connections through the
// normal Publish path.
func (o *Orchestrator) Ingest(ctx context.Context, channelType string, payload []byte, signature string) (*IngestResult, error) {
	adapter, err := o.registry.Get(channelType)
	if err != nil {
		return nil, err
	}

	creds, err := o.creds.Credentials(ctx, channelType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve webhook credentials: %w", err)
	}
	if err := adapter.VerifySignature(creds, payload, signature); err != nil {
		metrics.InboundEvents.WithLabelValues(channelType, "rejected").Inc()
		return nil, err
	}

	event, err := adapter.ParseEvent(payload)
	if err != nil {
		metrics.InboundEvents.WithLabelValues(channelType, "malformed").Inc()
		return nil, fmt.Errorf("%w: %s", ErrMalformedEvent, err)
	}

	if err := o.gate.CheckAndMark(ctx, channelType, event.ExternalEventID); err != nil {
		if errors.Is(err, idempotency.ErrAlreadyProcessed) {
			metrics.InboundEvents.WithLabelValues(channelType, "duplicate").Inc()
			o.logger.Debug("duplicate inbound event",
				zap.String("channel", channelType),
				zap.String("external_event_id", event.ExternalEventID))
			return &IngestResult{Duplicate: true}, nil
		}
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}

	result, err := o.apply(ctx, channelType, event)
	if err != nil {
		metrics.InboundEvents.WithLabelValues(channelType, "failed").Inc()
		// A transient failure must not consume the event id: release it so
		// the channel's redelivery is applied instead of answered as a
		// duplicate. A conflict would fail the same way on every retry, so
		// the mark stays and reconciliation surfaces the discrepancy.
		if !apperrors.Is(err, apperrors.CategoryDataConflict) {
			if forgetErr := o.gate.Forget(ctx, channelType, event.ExternalEventID); forgetErr != nil {
				o.logger.Error("failed to release idempotency record",
					zap.String("channel", channelType),
					zap.String("external_event_id", event.ExternalEventID),
					zap.Error(forgetErr))
			}
		}
		return nil, err
	}

	metrics.InboundEvents.WithLabelValues(channelType, "applied").Inc()
	o.logInbound(ctx, channelType, event)
	return result, nil
}

// ErrMalformedEvent is returned for webhook payloads that verify but do not
// parse.
var ErrMalformedEvent = errors.New("malformed channel event")

func (o *Orchestrator) apply(ctx context.Context, channelType string, event *channel.ExternalEvent) (*IngestResult, error) {
	switch event.Action {
	case channel.EventBookingCreated:
		b, err := o.lifecycle.ImportChannelBooking(ctx, channelType, &event.Booking)
		if err != nil {
			return nil, err
		}
		return &IngestResult{BookingID: b.ID}, nil

	case channel.EventBookingCancelled:
		b, err := o.lifecycle.CancelChannelBooking(ctx, channelType, event.Booking.ChannelBookingID)
		if err != nil {
			return nil, err
		}
		return &IngestResult{BookingID: b.ID}, nil

	case channel.EventBookingModified:
		// A modification is a cancel of the old dates plus a re-import of
		// the new ones; a vanished original just becomes an import.
		if _, err := o.lifecycle.CancelChannelBooking(ctx, channelType, event.Booking.ChannelBookingID); err != nil {
			if !isNotFound(err) {
				return nil, err
			}
		}
		b, err := o.lifecycle.ImportChannelBooking(ctx, channelType, &event.Booking)
		if err != nil {
			return nil, err
		}
		return &IngestResult{BookingID: b.ID}, nil
	}
	return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedEvent, event.Action)
}

func isNotFound(err error) bool {
	return errors.Is(err, bookingstore.ErrBookingNotFound) ||
		apperrors.Is(err, apperrors.CategoryResourceNotFound)
}

func (o *Orchestrator) logInbound(ctx context.Context, channelType string, event *channel.ExternalEvent) {
	// Inbound events are not tied to a single connection; attribute the
	// entry to the first connection of that channel on the property.
	conns, err := o.channels.ListPropertyConnections(ctx, event.Booking.PropertyID)
	if err != nil {
		o.logger.Warn("failed to attribute inbound event", zap.Error(err))
		return
	}
	var connectionID string
	for _, conn := range conns {
		if conn.ChannelType == channelType {
			connectionID = conn.ID
			break
		}
	}
	if connectionID == "" {
		return
	}

	now := time.Now().UTC()
	entry := &channel.SyncLogEntry{
		ID:               uuid.NewString(),
		ConnectionID:     connectionID,
		Direction:        channel.DirectionInbound,
		SyncType:         channel.SyncTypeBooking,
		Status:           channel.SyncSuccess,
		RecordsProcessed: 1,
		RecordsCreated:   1,
		StartedAt:        event.ReceivedAt,
	}
	entry.CompletedAt = &now
	if err := o.channels.AppendSyncLog(ctx, entry); err != nil {
		o.logger.Error("failed to append inbound sync log", zap.Error(err))
	}
}
