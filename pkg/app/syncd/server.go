// Package syncd wires the sync daemon: the outbound orchestrator worker
// pool, periodic reconciliation, idempotency record expiry and the
// Prometheus metrics endpoint.
package syncd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/staykit/channel-sync/pkg/app/http"
	"github.com/staykit/channel-sync/pkg/booking/service"
	"github.com/staykit/channel-sync/pkg/bookingstore"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/channelstore"
	"github.com/staykit/channel-sync/pkg/config"
	"github.com/staykit/channel-sync/pkg/idempotency"
	"github.com/staykit/channel-sync/pkg/ledger"
	"github.com/staykit/channel-sync/pkg/pgutil"
	"github.com/staykit/channel-sync/pkg/reconciler"
	"github.com/staykit/channel-sync/pkg/syncer"
)

// Daemon is the sync daemon Runner.
type Daemon struct {
	cfg    *config.SyncdConfig
	logger *zap.Logger
}

// NewDaemon creates the sync daemon from loaded configuration.
func NewDaemon(cfg *config.SyncdConfig, logger *zap.Logger) *Daemon {
	return &Daemon{cfg: cfg, logger: logger}
}

// Run wires dependencies and runs until a shutdown signal arrives.
func (d *Daemon) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgutil.ConnectDB(&d.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	d.logger.Info("Connected to database",
		zap.String("host", d.cfg.Database.Host),
		zap.String("database", d.cfg.Database.Database))

	catalog, err := config.LoadChannelCatalog(d.cfg.Channels.CatalogFile)
	if err != nil {
		return err
	}

	var creds channel.CredentialProvider = channel.StaticCredentials{}
	if d.cfg.Channels.CredentialsFile != "" {
		creds, err = channel.NewFileCredentialProvider(d.cfg.Channels.CredentialsFile)
		if err != nil {
			return err
		}
	}

	registry := channel.NewRegistry()
	for channelType, settings := range catalog.Channels {
		if settings.BaseURL == "" {
			continue
		}
		if err := registry.Register(channel.NewRESTAdapter(channelType, settings.BaseURL, d.cfg.Sync.PushTimeout)); err != nil {
			return err
		}
	}

	ledgerStore := ledger.NewStore(db)
	bookings := bookingstore.NewStore(db)
	channels := channelstore.NewStore(db)
	gate := idempotency.NewGate(db, d.cfg.Idempotency.Retention)

	orch := syncer.NewOrchestrator(d.cfg.Sync, catalog, registry, creds, channels, bookings, gate, d.logger)
	svc := service.NewLog(service.NewService(ledgerStore, bookings, service.PublisherFunc(orch.Publish), d.logger), d.logger)
	orch.AttachLifecycle(svc)

	if err := orch.Start(ctx); err != nil {
		return err
	}
	defer orch.Stop()

	rec := reconciler.New(registry, creds, channels, bookings, svc, d.cfg.Reconciliation.WindowDays, d.logger)
	rec.Start(d.cfg.Reconciliation.Interval)
	defer rec.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.purgeLoop(ctx, gate)
	}()
	defer wg.Wait()

	if !d.cfg.Monitoring.Enabled {
		<-ctx.Done()
		d.logger.Info("Shutdown signal received")
		return nil
	}

	return apphttp.ServeAndWait(ctx, d.monitoringRouter(), d.logger, &config.ServerConfig{
		Host:            "0.0.0.0",
		Port:            d.cfg.Monitoring.MetricsPort,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: d.cfg.Shutdown.Timeout,
	})
}

func (d *Daemon) monitoringRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// purgeLoop expires idempotency records past their retention window so the
// dedup table does not grow without bound.
func (d *Daemon) purgeLoop(ctx context.Context, gate idempotency.Gate) {
	interval := d.cfg.Idempotency.PurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := gate.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				d.logger.Error("idempotency purge failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				d.logger.Info("purged expired idempotency records", zap.Int("purged", purged))
			}
		}
	}
}
