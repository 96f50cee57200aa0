// Package syncer keeps external channels consistent with the local
// inventory. The orchestrator fans local change events out to channel
// connections through a bounded worker pool, retrying transient failures
// with backoff and isolating unhealthy channels behind circuit breakers,
// and ingests inbound webhook events idempotently.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staykit/channel-sync/internal/metrics"
	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/bookingstore"
	"github.com/staykit/channel-sync/pkg/breaker"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/channelstore"
	"github.com/staykit/channel-sync/pkg/config"
	"github.com/staykit/channel-sync/pkg/idempotency"
	"github.com/staykit/channel-sync/pkg/ratelimit"
)

// Lifecycle is the narrow surface the orchestrator needs to apply inbound
// channel events. The booking service implements it.
type Lifecycle interface {
	ImportChannelBooking(ctx context.Context, origin string, ext *channel.ExternalBooking) (*booking.Booking, error)
	CancelChannelBooking(ctx context.Context, origin, channelBookingID string) (*booking.Booking, error)
}

// task is one outbound push: deliver an event to one connection.
type task struct {
	event booking.ChangeEvent
	conn  *channel.Connection
	// attempts counts completed push attempts for this task.
	attempts int
	bo       backoff.BackOff
}

// Orchestrator is the sync engine. Publish enqueues outbound fan-out and
// never blocks; Ingest applies inbound webhook payloads.
type Orchestrator struct {
	cfg      config.SyncConfig
	catalog  *config.ChannelCatalog
	registry *channel.Registry
	creds    channel.CredentialProvider
	channels channelstore.Store
	bookings bookingstore.BookingStore
	gate     idempotency.Gate
	logger   *zap.Logger

	lifecycle Lifecycle

	limiter *ratelimit.Limiter

	breakerMu sync.Mutex
	breakers  map[string]*breaker.Breaker

	queue  chan *task
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewOrchestrator creates a stopped orchestrator. AttachLifecycle must be
// called before Start; the booking service is constructed after the
// orchestrator because it publishes events into it.
func NewOrchestrator(
	cfg config.SyncConfig,
	catalog *config.ChannelCatalog,
	registry *channel.Registry,
	creds channel.CredentialProvider,
	channels channelstore.Store,
	bookings bookingstore.BookingStore,
	gate idempotency.Gate,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		catalog:  catalog,
		registry: registry,
		creds:    creds,
		channels: channels,
		bookings: bookings,
		gate:     gate,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(),
		breakers: make(map[string]*breaker.Breaker),
		queue:    make(chan *task, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// AttachLifecycle wires the booking service in after construction.
func (o *Orchestrator) AttachLifecycle(lc Lifecycle) {
	o.lifecycle = lc
}

// Start launches the worker pool.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.lifecycle == nil {
		return errors.New("orchestrator started without a lifecycle")
	}
	o.logger.Info("Starting sync orchestrator", zap.Int("workers", o.cfg.Workers))

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
	return nil
}

// Stop drains the workers. Queued tasks that have not started are dropped;
// reconciliation repairs anything missed.
func (o *Orchestrator) Stop() {
	o.logger.Info("Stopping sync orchestrator")
	close(o.stopCh)
	o.wg.Wait()
	o.logger.Info("Sync orchestrator stopped")
}

// Publish fans a change event out to every syncable connection on the
// property except the one the change came from. It never blocks the
// caller: the connection listing and enqueueing run on a tracked
// goroutine, and when the queue is full the task is dropped and counted,
// with reconciliation later repairing the gap.
func (o *Orchestrator) Publish(event booking.ChangeEvent) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.fanOut(event)
	}()
}

func (o *Orchestrator) fanOut(event booking.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns, err := o.channels.ListPropertyConnections(ctx, event.PropertyID)
	if err != nil {
		o.logger.Error("failed to list connections for fan-out",
			zap.String("property_id", event.PropertyID),
			zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("orchestrator", "fanout_list").Inc()
		return
	}

	for _, conn := range conns {
		if !conn.Syncable() {
			continue
		}
		if conn.ChannelType == event.Origin {
			// Never echo a change back to the channel it came from.
			continue
		}
		o.enqueue(&task{event: event, conn: conn, bo: o.newBackoff()})
	}
}

func (o *Orchestrator) enqueue(t *task) {
	select {
	case o.queue <- t:
		metrics.QueueDepth.Set(float64(len(o.queue)))
	default:
		o.logger.Warn("sync queue full, dropping task",
			zap.String("connection_id", t.conn.ID),
			zap.String("event_id", t.event.EventID))
		metrics.ErrorsTotal.WithLabelValues("orchestrator", "queue_full").Inc()
	}
}

// requeue re-enqueues a task after a delay without consuming an attempt,
// used when the limiter or breaker defers a push.
func (o *Orchestrator) requeue(t *task, delay time.Duration) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		select {
		case <-time.After(delay):
			o.enqueue(t)
		case <-o.stopCh:
		}
	}()
}

func (o *Orchestrator) newBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.InitialBackoff
	bo.MaxInterval = o.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case t := <-o.queue:
			metrics.QueueDepth.Set(float64(len(o.queue)))
			o.process(ctx, t)
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, t *task) {
	// Drop tasks that no longer reflect current state; the queue may have
	// been sitting behind a slow channel.
	stale, err := o.isStale(ctx, t)
	if err != nil {
		o.logger.Error("stale check failed", zap.String("event_id", t.event.EventID), zap.Error(err))
	}
	if stale {
		o.logger.Debug("dropping stale sync task",
			zap.String("event_id", t.event.EventID),
			zap.String("connection_id", t.conn.ID))
		return
	}

	settings := o.catalog.Settings(t.conn.ChannelType)

	br := o.breakerFor(t.conn.ID, settings)
	if err := br.Allow(); err != nil {
		metrics.BreakerState.WithLabelValues(t.conn.ChannelType).Set(float64(br.State()))
		o.requeue(t, o.cfg.RequeueDelay)
		return
	}

	if err := o.limiter.Acquire(o.limiterKey(t.conn, settings)); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			metrics.RateLimited.WithLabelValues(t.conn.ChannelType).Inc()
			o.requeue(t, o.cfg.RequeueDelay)
			return
		}
		o.logger.Error("rate limiter failed", zap.Error(err))
		return
	}

	t.attempts++
	start := time.Now()
	pushErr := o.push(ctx, t)
	duration := time.Since(start)

	metrics.PushDuration.WithLabelValues(t.conn.ChannelType).Observe(duration.Seconds())
	o.appendLog(ctx, t, pushErr, start)

	if pushErr == nil {
		br.Success()
		metrics.BreakerState.WithLabelValues(t.conn.ChannelType).Set(float64(br.State()))
		metrics.PushesTotal.WithLabelValues(t.conn.ChannelType, "success").Inc()
		if err := o.channels.TouchLastSync(ctx, t.conn.ID); err != nil {
			o.logger.Warn("failed to record sync time", zap.String("connection_id", t.conn.ID), zap.Error(err))
		}
		return
	}

	o.handlePushFailure(ctx, t, br, pushErr)
}

// isStale re-checks booking state immediately before the network call.
func (o *Orchestrator) isStale(ctx context.Context, t *task) (bool, error) {
	if t.event.BookingID == "" {
		// Availability pushes from blocks carry no booking; the event is
		// authoritative.
		return false, nil
	}

	b, err := o.bookings.GetBooking(ctx, t.event.BookingID)
	if err != nil {
		if errors.Is(err, bookingstore.ErrBookingNotFound) {
			return true, nil
		}
		return false, err
	}

	switch t.event.Action {
	case booking.ActionCreated, booking.ActionModified:
		return !b.Active(), nil
	case booking.ActionCancelled:
		return b.Active(), nil
	}
	return false, nil
}

func (o *Orchestrator) push(ctx context.Context, t *task) error {
	adapter, err := o.registry.Get(t.conn.ChannelType)
	if err != nil {
		return &terminalError{err}
	}
	creds, err := o.creds.Credentials(ctx, t.conn.CredentialRef)
	if err != nil {
		return &terminalError{fmt.Errorf("failed to resolve credentials: %w", err)}
	}

	pushCtx, cancel := context.WithTimeout(ctx, o.cfg.PushTimeout)
	defer cancel()

	switch t.event.Action {
	case booking.ActionBlocked, booking.ActionUnblocked:
		return adapter.PushAvailability(pushCtx, creds, &channel.AvailabilityUpdate{
			PropertyID: t.event.PropertyID,
			Start:      t.event.Start,
			End:        t.event.End,
			Available:  t.event.Action == booking.ActionUnblocked,
		})
	default:
		return adapter.PushBooking(pushCtx, creds, &channel.BookingPush{
			BookingID:  t.event.BookingID,
			PropertyID: t.event.PropertyID,
			Start:      t.event.Start,
			End:        t.event.End,
			Cancelled:  t.event.Action == booking.ActionCancelled,
		})
	}
}

func (o *Orchestrator) handlePushFailure(ctx context.Context, t *task, br *breaker.Breaker, pushErr error) {
	if isRetryable(pushErr) {
		br.Failure()
		metrics.BreakerState.WithLabelValues(t.conn.ChannelType).Set(float64(br.State()))
		metrics.PushesTotal.WithLabelValues(t.conn.ChannelType, "retryable_failure").Inc()

		if t.attempts >= o.cfg.MaxAttempts {
			o.deadLetter(ctx, t, pushErr)
			return
		}
		o.requeue(t, t.bo.NextBackOff())
		return
	}

	// Terminal failure: never retried.
	metrics.PushesTotal.WithLabelValues(t.conn.ChannelType, "terminal_failure").Inc()
	o.logger.Error("terminal push failure",
		zap.String("connection_id", t.conn.ID),
		zap.String("event_id", t.event.EventID),
		zap.Error(pushErr))

	if isAuthFailure(pushErr) {
		if err := o.channels.UpdateConnectionStatus(ctx, t.conn.ID, channel.ConnectionError); err != nil {
			o.logger.Error("failed to mark connection errored",
				zap.String("connection_id", t.conn.ID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) deadLetter(ctx context.Context, t *task, pushErr error) {
	payload, err := json.Marshal(t.event)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"event_id":%q}`, t.event.EventID))
	}
	dl := &channel.DeadLetter{
		ID:           uuid.NewString(),
		ConnectionID: t.conn.ID,
		Payload:      payload,
		Attempts:     t.attempts,
		LastError:    pushErr.Error(),
	}
	if err := o.channels.AddDeadLetter(ctx, dl); err != nil {
		o.logger.Error("failed to store dead letter",
			zap.String("connection_id", t.conn.ID), zap.Error(err))
		return
	}
	metrics.DeadLetters.WithLabelValues(t.conn.ChannelType).Inc()
	o.logger.Warn("sync task dead-lettered",
		zap.String("connection_id", t.conn.ID),
		zap.String("event_id", t.event.EventID),
		zap.Int("attempts", t.attempts))
}

func (o *Orchestrator) appendLog(ctx context.Context, t *task, pushErr error, started time.Time) {
	syncType := channel.SyncTypeBooking
	if t.event.Action == booking.ActionBlocked || t.event.Action == booking.ActionUnblocked {
		syncType = channel.SyncTypeAvailability
	}

	entry := &channel.SyncLogEntry{
		ID:               uuid.NewString(),
		ConnectionID:     t.conn.ID,
		Direction:        channel.DirectionOutbound,
		SyncType:         syncType,
		Status:           channel.SyncSuccess,
		RecordsProcessed: 1,
		StartedAt:        started.UTC(),
	}
	now := time.Now().UTC()
	entry.CompletedAt = &now

	if pushErr != nil {
		entry.Status = channel.SyncFailure
		entry.RecordsFailed = 1
		entry.ErrorDetail = pushErr.Error()
	} else {
		entry.RecordsUpdated = 1
	}

	if err := o.channels.AppendSyncLog(ctx, entry); err != nil {
		o.logger.Error("failed to append sync log", zap.Error(err))
	}
}

func (o *Orchestrator) limiterKey(conn *channel.Connection, settings config.ChannelSettings) string {
	key := conn.ChannelType
	if settings.PerConnectionLimit {
		key = conn.ID
	}
	o.limiter.ConfigureIfAbsent(key, ratelimit.Limits{
		Window: settings.RateWindow,
		Budget: settings.RateBudget,
	})
	return key
}

func (o *Orchestrator) breakerFor(connectionID string, settings config.ChannelSettings) *breaker.Breaker {
	o.breakerMu.Lock()
	defer o.breakerMu.Unlock()

	br, ok := o.breakers[connectionID]
	if !ok {
		br = breaker.New(breaker.Settings{
			Threshold:        settings.BreakerThreshold,
			Cooldown:         settings.BreakerCooldown,
			SuccessesToClose: settings.BreakerProbes,
		})
		o.breakers[connectionID] = br
	}
	return br
}

// terminalError marks failures that must never be retried.
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// isRetryable classifies push failures. Timeouts, network errors and 5xx
// responses are worth retrying; auth and validation rejections are not.
func isRetryable(err error) bool {
	var terminal *terminalError
	if errors.As(err, &terminal) {
		return false
	}
	var remote *channel.RemoteError
	if errors.As(err, &remote) {
		return remote.Retryable()
	}
	// Everything else is a transport-level failure (timeout, connection
	// refused, wrapped url.Error) and worth retrying.
	return true
}

func isAuthFailure(err error) bool {
	var remote *channel.RemoteError
	if errors.As(err, &remote) {
		return remote.AuthFailure()
	}
	return false
}
