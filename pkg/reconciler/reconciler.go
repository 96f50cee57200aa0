// Package reconciler detects and repairs drift between the local inventory
// and each channel's view of it. Webhooks can be missed and pushes can be
// dropped under pressure; the reconciler is the safety net that pulls the
// channel's bookings on an interval and compares them with the ledger.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staykit/channel-sync/internal/metrics"
	apperrors "github.com/staykit/channel-sync/pkg/app/errors"
	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/bookingstore"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/channelstore"
	"github.com/staykit/channel-sync/pkg/ledger"
)

// Discrepancy categories reported per reconciliation run.
const (
	CategoryMissingLocally  = "missing_locally"
	CategoryMissingRemotely = "missing_remotely"
	CategoryStatusMismatch  = "status_mismatch"
)

// Lifecycle is the booking surface the reconciler repairs through. The
// booking service implements it; repairs flow through the same path as
// webhook ingestion so fan-out and auditing apply.
type Lifecycle interface {
	ImportChannelBooking(ctx context.Context, origin string, ext *channel.ExternalBooking) (*booking.Booking, error)
}

// Report summarizes one reconciliation pass over a single connection.
type Report struct {
	ConnectionID string
	Pulled       int
	// Imported counts remote bookings that were absent locally and could be
	// imported without conflict.
	Imported int
	// Conflicted counts remote bookings that were absent locally but collide
	// with existing inventory. These need manual resolution.
	Conflicted int
	// MissingRemotely counts local channel bookings the channel no longer
	// reports. Never auto-cancelled: a missing remote record may be a
	// channel-side pagination or outage artifact.
	MissingRemotely int
	// StatusMismatches counts bookings cancelled on exactly one side.
	StatusMismatches int
}

// Discrepancies reports whether the run found anything needing attention.
func (r *Report) Discrepancies() int {
	return r.Conflicted + r.MissingRemotely + r.StatusMismatches
}

// Reconciler periodically compares channel state against local inventory.
type Reconciler struct {
	registry  *channel.Registry
	creds     channel.CredentialProvider
	channels  channelstore.Store
	bookings  bookingstore.BookingStore
	lifecycle Lifecycle
	logger    *zap.Logger

	// windowDays bounds the forward-looking comparison window.
	windowDays int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new Reconciler.
func New(
	registry *channel.Registry,
	creds channel.CredentialProvider,
	channels channelstore.Store,
	bookings bookingstore.BookingStore,
	lifecycle Lifecycle,
	windowDays int,
	logger *zap.Logger,
) *Reconciler {
	if windowDays <= 0 {
		windowDays = 90
	}
	return &Reconciler{
		registry:   registry,
		creds:      creds,
		channels:   channels,
		bookings:   bookings,
		lifecycle:  lifecycle,
		windowDays: windowDays,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// ReconcileAll runs one reconciliation pass over every syncable connection.
// A failing connection does not stop the pass; its error is logged and the
// run continues.
func (r *Reconciler) ReconcileAll(ctx context.Context) error {
	r.logger.Info("Starting reconciliation pass")
	start := time.Now()

	conns, err := r.channels.ListConnections(ctx)
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to list connections: %w", err)
	}

	var reconciled, failed, discrepancies int
	for _, conn := range conns {
		if !conn.Syncable() {
			continue
		}
		report, err := r.ReconcileConnection(ctx, conn)
		if err != nil {
			failed++
			r.logger.Error("Connection reconciliation failed",
				zap.String("connection_id", conn.ID),
				zap.String("channel", conn.ChannelType),
				zap.Error(err))
			continue
		}
		reconciled++
		discrepancies += report.Discrepancies()
	}

	status := "success"
	if failed > 0 {
		status = "partial_failure"
	}
	metrics.ReconciliationRuns.WithLabelValues(status).Inc()

	r.logger.Info("Reconciliation pass completed",
		zap.Int("connections_reconciled", reconciled),
		zap.Int("connections_failed", failed),
		zap.Int("discrepancies", discrepancies),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// ReconcileConnection pulls the channel's forward bookings for one
// connection and diffs them against local inventory. Remote bookings absent
// locally are imported when the dates are free; everything else is surfaced
// for manual review through the sync log and metrics.
func (r *Reconciler) ReconcileConnection(ctx context.Context, conn *channel.Connection) (*Report, error) {
	adapter, err := r.registry.Get(conn.ChannelType)
	if err != nil {
		return nil, err
	}
	creds, err := r.creds.Credentials(ctx, conn.CredentialRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials: %w", err)
	}

	from := ledger.NormalizeDate(time.Now().UTC())
	to := from.AddDate(0, 0, r.windowDays)
	started := time.Now().UTC()

	remote, err := adapter.PullBookings(ctx, creds, from, to)
	if err != nil {
		r.appendRunLog(ctx, conn.ID, nil, started, err)
		return nil, fmt.Errorf("failed to pull bookings from %s: %w", conn.ChannelType, err)
	}

	local, err := r.bookings.ListChannelBookings(ctx, conn.ChannelType, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list local channel bookings: %w", err)
	}

	report := r.diff(ctx, conn, remote, local)
	r.appendRunLog(ctx, conn.ID, report, started, nil)
	r.logger.Info("Connection reconciled",
		zap.String("connection_id", conn.ID),
		zap.String("channel", conn.ChannelType),
		zap.Int("pulled", report.Pulled),
		zap.Int("imported", report.Imported),
		zap.Int("conflicted", report.Conflicted),
		zap.Int("missing_remotely", report.MissingRemotely),
		zap.Int("status_mismatches", report.StatusMismatches))
	return report, nil
}

func (r *Reconciler) diff(ctx context.Context, conn *channel.Connection, remote []channel.ExternalBooking, local []*booking.Booking) *Report {
	report := &Report{ConnectionID: conn.ID, Pulled: len(remote)}

	localByRef := make(map[string]*booking.Booking, len(local))
	for _, b := range local {
		if b.PropertyID != conn.PropertyID || b.ChannelBookingID == "" {
			continue
		}
		localByRef[b.ChannelBookingID] = b
	}

	remoteByRef := make(map[string]*channel.ExternalBooking, len(remote))
	for i := range remote {
		ext := &remote[i]
		if ext.PropertyID != conn.PropertyID {
			continue
		}
		remoteByRef[ext.ChannelBookingID] = ext

		b, ok := localByRef[ext.ChannelBookingID]
		if !ok {
			if ext.Cancelled {
				// Never seen locally and already cancelled remotely; nothing
				// to repair.
				continue
			}
			r.importMissing(ctx, conn, ext, report)
			continue
		}

		if ext.Cancelled == !b.Active() {
			continue
		}
		report.StatusMismatches++
		metrics.ReconciliationDiscrepancies.WithLabelValues(conn.ChannelType, CategoryStatusMismatch).Inc()
		r.logger.Warn("Booking status differs between channel and inventory",
			zap.String("connection_id", conn.ID),
			zap.String("channel_booking_id", ext.ChannelBookingID),
			zap.Bool("remote_cancelled", ext.Cancelled),
			zap.String("local_status", string(b.Status)))
	}

	for ref, b := range localByRef {
		if _, ok := remoteByRef[ref]; ok {
			continue
		}
		if !b.Active() {
			continue
		}
		report.MissingRemotely++
		metrics.ReconciliationDiscrepancies.WithLabelValues(conn.ChannelType, CategoryMissingRemotely).Inc()
		r.logger.Warn("Local channel booking not reported by channel",
			zap.String("connection_id", conn.ID),
			zap.String("channel_booking_id", ref),
			zap.String("booking_id", b.ID))
	}

	return report
}

// importMissing repairs a booking the channel knows about but we do not,
// typically a webhook lost in transit. Imports that collide with existing
// inventory are left for an operator: auto-cancelling either side would
// guess at which booking is real.
func (r *Reconciler) importMissing(ctx context.Context, conn *channel.Connection, ext *channel.ExternalBooking, report *Report) {
	metrics.ReconciliationDiscrepancies.WithLabelValues(conn.ChannelType, CategoryMissingLocally).Inc()

	_, err := r.lifecycle.ImportChannelBooking(ctx, conn.ChannelType, ext)
	if err == nil {
		report.Imported++
		r.logger.Info("Imported booking missed from channel",
			zap.String("connection_id", conn.ID),
			zap.String("channel_booking_id", ext.ChannelBookingID))
		return
	}

	if isConflict(err) {
		report.Conflicted++
		r.logger.Warn("Channel booking conflicts with local inventory, manual review required",
			zap.String("connection_id", conn.ID),
			zap.String("channel_booking_id", ext.ChannelBookingID),
			zap.Time("start", ext.Start),
			zap.Time("end", ext.End),
			zap.Error(err))
		return
	}

	report.Conflicted++
	r.logger.Error("Failed to import missing channel booking",
		zap.String("connection_id", conn.ID),
		zap.String("channel_booking_id", ext.ChannelBookingID),
		zap.Error(err))
}

func isConflict(err error) bool {
	var conflict *ledger.ConflictError
	return errors.As(err, &conflict) || apperrors.Is(err, apperrors.CategoryDataConflict)
}

func (r *Reconciler) appendRunLog(ctx context.Context, connectionID string, report *Report, started time.Time, runErr error) {
	entry := &channel.SyncLogEntry{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Direction:    channel.DirectionInbound,
		SyncType:     channel.SyncTypeReconciliation,
		Status:       channel.SyncSuccess,
		StartedAt:    started,
	}
	now := time.Now().UTC()
	entry.CompletedAt = &now

	switch {
	case runErr != nil:
		entry.Status = channel.SyncFailure
		entry.ErrorDetail = runErr.Error()
	case report != nil:
		entry.RecordsProcessed = report.Pulled
		entry.RecordsCreated = report.Imported
		entry.RecordsFailed = report.Conflicted
		if report.Discrepancies() > 0 {
			entry.Status = channel.SyncPartialSuccess
		}
	}

	if err := r.channels.AppendSyncLog(ctx, entry); err != nil {
		r.logger.Error("failed to append reconciliation log",
			zap.String("connection_id", connectionID), zap.Error(err))
	}
}

// Start launches the periodic reconciliation loop.
func (r *Reconciler) Start(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.Info("Started periodic reconciliation", zap.Duration("interval", interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if err := r.ReconcileAll(ctx); err != nil {
					r.logger.Error("Periodic reconciliation failed", zap.Error(err))
				}
				cancel()
			case <-r.stopCh:
				r.logger.Info("Stopping periodic reconciliation")
				return
			}
		}
	}()
}

// Stop stops the periodic reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}
