package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiftsync/shiftsync/internal/api"
	"github.com/shiftsync/shiftsync/internal/calendar"
	"github.com/shiftsync/shiftsync/internal/config"
	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/db"
	"github.com/shiftsync/shiftsync/internal/notify"
	"github.com/shiftsync/shiftsync/internal/roster"
	"github.com/shiftsync/shiftsync/internal/store"
	"github.com/shiftsync/shiftsync/internal/sync"
	"github.com/shiftsync/shiftsync/internal/telemetry"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig builds a SyncApp using the builder pattern.
// It supports dependency injection for testing while providing sensible
// defaults for production.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	store           store.Store
	rosterClient    roster.Client
	calendarGateway calendar.Gateway
	notifySink      notify.Sink

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewSyncApp creates a new sync application with the given configuration
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.GetAddress()
	}

	// Single decision point for Postgres vs in-memory storage.
	var pool *pgxpool.Pool
	if cfg.store == nil {
		if cfg.config.Database != nil {
			pool, err = db.NewPool(ctx, cfg.config.Database)
			if err != nil {
				return nil, fmt.Errorf("failed to create database pool: %w", err)
			}
			cfg.store = store.NewPostgresStore(pool)
		} else {
			slog.Warn("no database configured, using in-memory storage")
			cfg.store = store.NewMemoryStore()
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded && pool != nil {
			pool.Close()
		}
	}()

	worker, scheduler, registry, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer := buildHTTPServer(cfg, worker, scheduler, registry)

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	return &SyncApp{
		config:     cfg.config,
		scheduler:  scheduler,
		pool:       pool,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) < 2 {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host := parts[0]
		port := parts[1]

		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStore allows injecting a custom store (for testing)
func WithStore(st store.Store) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.store = st
		return nil
	}
}

// WithRosterClient allows injecting a custom roster client (for testing)
func WithRosterClient(rc roster.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.rosterClient = rc
		return nil
	}
}

// WithCalendarGateway allows injecting a custom calendar gateway (for testing)
func WithCalendarGateway(gw calendar.Gateway) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.calendarGateway = gw
		return nil
	}
}

// WithNotifySink allows injecting a custom notification sink (for testing)
func WithNotifySink(sink notify.Sink) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.notifySink = sink
		return nil
	}
}

// buildSyncComponents builds the worker, the scheduler, and the metrics
// registry they report into.
func buildSyncComponents(
	ctx context.Context,
	b *syncAppConfig,
) (*sync.Worker, *sync.Scheduler, *prometheus.Registry, error) {
	slog.Info("Initializing sync components")

	key, err := b.config.Encryption.GetKey()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load encryption key: %w", err)
	}
	cipher, err := credentials.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create credential cipher: %w", err)
	}

	if b.rosterClient == nil {
		b.rosterClient = roster.NewClient(roster.Config{
			AuthURL:   b.config.Roster.AuthURL,
			RosterURL: b.config.Roster.RosterURL,
			Timeout:   b.config.Roster.GetHTTPTimeout(),
		})
	}

	timezone := time.UTC
	if b.calendarGateway == nil && b.config.Calendar != nil {
		secret, err := os.ReadFile(b.config.Calendar.ClientSecretFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to read calendar client secret: %w", err)
		}
		b.calendarGateway = calendar.NewGateway(ctx, calendar.Config{
			BaseURL:      b.config.Calendar.BaseURL,
			CalendarID:   b.config.Calendar.CalendarID,
			TokenURL:     b.config.Calendar.TokenURL,
			ClientID:     b.config.Calendar.ClientID,
			ClientSecret: strings.TrimSpace(string(secret)),
		})
		slog.Info("Calendar integration enabled", "calendar", b.config.Calendar.CalendarID)
	}
	if b.config.Calendar != nil && b.config.Calendar.Timezone != "" {
		timezone, err = time.LoadLocation(b.config.Calendar.Timezone)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid calendar timezone %q: %w", b.config.Calendar.Timezone, err)
		}
	}

	if b.notifySink == nil && b.config.Notifications != nil {
		b.notifySink = notify.NewNtfySink(b.config.Notifications.URL, b.config.Notifications.Topic)
		slog.Info("Notifications enabled", "topic", b.config.Notifications.Topic)
	}

	reconciler := sync.NewReconciler(b.store, b.calendarGateway, b.notifySink)
	worker := sync.NewWorker(b.store, b.rosterClient, cipher, reconciler, b.calendarGateway, sync.WorkerConfig{
		MaxRetries: b.config.Sync.GetMaxRetries(),
		RetryDelay: b.config.Sync.GetRetryDelay(),
		Timezone:   timezone,
	})

	registry := telemetry.NewRegistry()
	metrics := telemetry.NewSyncMetrics(registry)

	scheduler := sync.NewScheduler(b.store, worker, sync.SchedulerConfig{
		CycleInterval: b.config.Sync.GetCycleInterval(),
		SubjectDelay:  b.config.Sync.GetSubjectDelay(),
		ErrorCooldown: b.config.Sync.GetErrorCooldown(),
	}, sync.WithSyncMetrics(metrics))

	slog.Info("Sync components initialized successfully")
	return worker, scheduler, registry, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(
	b *syncAppConfig,
	worker *sync.Worker,
	scheduler *sync.Scheduler,
	registry *prometheus.Registry,
) *http.Server {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	handlers := api.NewHandlers(scheduler, worker, b.store, b.config.Payroll)
	router := api.NewServer(handlers,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(telemetry.Handler(registry)),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server
}
