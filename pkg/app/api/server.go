// Package api wires the booking API server: HTTP surface, persistence,
// channel adapters and the sync orchestrator behind one Runner.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apphttp "github.com/staykit/channel-sync/pkg/app/http"
	"github.com/staykit/channel-sync/pkg/auth"
	"github.com/staykit/channel-sync/pkg/booking/service"
	"github.com/staykit/channel-sync/pkg/bookingstore"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/channelstore"
	"github.com/staykit/channel-sync/pkg/config"
	"github.com/staykit/channel-sync/pkg/idempotency"
	"github.com/staykit/channel-sync/pkg/ledger"
	"github.com/staykit/channel-sync/pkg/pgutil"
	"github.com/staykit/channel-sync/pkg/syncer"
)

// Server is the booking API server Runner.
type Server struct {
	cfg    *config.APIServerConfig
	logger *zap.Logger
}

// NewServer creates the API server from loaded configuration.
func NewServer(cfg *config.APIServerConfig, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Run wires dependencies and serves until a shutdown signal arrives.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgutil.ConnectDB(&s.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	s.logger.Info("Connected to database",
		zap.String("host", s.cfg.Database.Host),
		zap.String("database", s.cfg.Database.Database))

	catalog, err := config.LoadChannelCatalog(s.cfg.Channels.CatalogFile)
	if err != nil {
		return err
	}
	creds, err := loadCredentials(s.cfg.Channels)
	if err != nil {
		return err
	}
	registry, err := buildRegistry(catalog, s.cfg.Sync.PushTimeout)
	if err != nil {
		return err
	}

	ledgerStore := ledger.NewStore(db)
	bookings := bookingstore.NewStore(db)
	channels := channelstore.NewStore(db)
	gate := idempotency.NewGate(db, s.cfg.Idempotency.Retention)

	orch := syncer.NewOrchestrator(s.cfg.Sync, catalog, registry, creds, channels, bookings, gate, s.logger)

	var publisher service.Publisher = service.NopPublisher{}
	if s.cfg.Sync.Enabled {
		publisher = service.PublisherFunc(orch.Publish)
	}
	svc := service.NewLog(service.NewService(ledgerStore, bookings, publisher, s.logger), s.logger)
	orch.AttachLifecycle(svc)

	if s.cfg.Sync.Enabled {
		if err := orch.Start(ctx); err != nil {
			return err
		}
		defer orch.Stop()
	}

	router := s.router(db, svc, channels, orch)
	return apphttp.ServeAndWait(ctx, router, s.logger, &s.cfg.Server)
}

func (s *Server) router(db *bun.DB, svc service.Service, channels channelstore.Store, orch *syncer.Orchestrator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	// Webhooks authenticate with per-channel HMAC signatures, not API tokens.
	registerWebhookRoutes(r, orch, s.logger)

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.Auth.Enabled {
			validator := auth.NewJWTValidator(s.cfg.Auth.JWKSURL, s.cfg.Auth.Issuer)
			r.Use(auth.Middleware(validator, s.logger))
		}
		service.RegisterRoutes(r, svc, s.logger)
		registerConnectionRoutes(r, channels, s.logger)
	})

	return r
}

func loadCredentials(cfg config.ChannelsConfig) (channel.CredentialProvider, error) {
	if cfg.CredentialsFile == "" {
		return channel.StaticCredentials{}, nil
	}
	return channel.NewFileCredentialProvider(cfg.CredentialsFile)
}

func buildRegistry(catalog *config.ChannelCatalog, timeout time.Duration) (*channel.Registry, error) {
	registry := channel.NewRegistry()
	for channelType, settings := range catalog.Channels {
		if settings.BaseURL == "" {
			continue
		}
		if err := registry.Register(channel.NewRESTAdapter(channelType, settings.BaseURL, timeout)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
