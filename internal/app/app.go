// Package app wires BridgeCore's components together and runs the process
// in one of two modes: "api" serves the HTTP surface and runs the upstream
// session pool's idle sweep, "worker" runs the scheduler. Grounded on the
// teacher's internal/app.Run api/worker split.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/geniustep/bridgecore/internal/adminplane"
	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/authn"
	"github.com/geniustep/bridgecore/internal/config"
	"github.com/geniustep/bridgecore/internal/events"
	"github.com/geniustep/bridgecore/internal/handlers"
	"github.com/geniustep/bridgecore/internal/httpserver"
	"github.com/geniustep/bridgecore/internal/ledger"
	"github.com/geniustep/bridgecore/internal/platform"
	"github.com/geniustep/bridgecore/internal/ratelimit"
	"github.com/geniustep/bridgecore/internal/readcache"
	"github.com/geniustep/bridgecore/internal/rpcgateway"
	"github.com/geniustep/bridgecore/internal/scheduler"
	"github.com/geniustep/bridgecore/internal/syncengine"
	"github.com/geniustep/bridgecore/internal/telemetry"
	"github.com/geniustep/bridgecore/internal/tenantregistry"
	"github.com/geniustep/bridgecore/internal/upstreampool"
	"github.com/geniustep/bridgecore/internal/vault"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting bridgecore", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry()

	d, err := buildDeps(cfg, logger, db, rdb)
	if err != nil {
		return fmt.Errorf("building dependencies: %w", err)
	}

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg, d)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb, d)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// deps holds every component wired from config, shared between the api and
// worker modes.
type deps struct {
	registry   *tenantregistry.Registry
	admin      *adminplane.Service
	limiter    *ratelimit.Limiter
	cache      *readcache.Cache
	pool       *upstreampool.Pool
	ledgerW    *ledger.Writer
	gateway    *rpcgateway.Gateway
	tokens     *authn.TokenManager
	revocation *authn.RevocationStore
	pipeline   *admission.Pipeline
	eventStore *events.Store
	syncEngine *syncengine.Engine
}

func buildDeps(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) (*deps, error) {
	cred, err := vault.New([]vault.Key{{Generation: cfg.CredentialKeyGen, Secret: []byte(cfg.CredentialKey)}})
	if err != nil {
		return nil, fmt.Errorf("building credential vault: %w", err)
	}

	registry := tenantregistry.New(db, cred)
	admin := adminplane.NewService(db, cred, registry)
	limiter := ratelimit.New(rdb)
	cache := readcache.New(rdb, logger, time.Duration(cfg.CacheDefaultTTLSeconds)*time.Second)
	pool := upstreampool.New(
		time.Duration(cfg.UpstreamDefaultTimeoutSeconds)*time.Second,
		time.Duration(cfg.SessionIdleTTLSeconds)*time.Second,
	)
	ledgerW := ledger.New(db, logger, cfg.UsageQueueDepth)
	gateway := rpcgateway.New(cache, pool, ledgerW)

	tokens := authn.NewTokenManager([]byte(cfg.TenantJWTSecret), []byte(cfg.AdminJWTSecret))
	revocation := authn.NewRevocationStore(rdb)
	pipeline := admission.New(tokens, registry, limiter, revocation)

	eventStore := events.NewStore(db)
	cursors := events.NewCursorStore(db)
	syncEngine := syncengine.New(eventStore, cursors)

	return &deps{
		registry:   registry,
		admin:      admin,
		limiter:    limiter,
		cache:      cache,
		pool:       pool,
		ledgerW:    ledgerW,
		gateway:    gateway,
		tokens:     tokens,
		revocation: revocation,
		pipeline:   pipeline,
		eventStore: eventStore,
		syncEngine: syncEngine,
	}, nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, d *deps) error {
	d.ledgerW.Start(ctx)
	defer d.ledgerW.Close()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := d.pool.Sweep(time.Now()); n > 0 {
					logger.Debug("upstream session pool swept idle handles", "count", n)
				}
			}
		}
	}()

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg)

	authHandler := handlers.NewAuthHandler(d.tokens, d.registry, d.revocation)
	srv.Router.Route("/api/v1/auth/tenant", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
	})
	srv.MountAdmissionGated("/api/v1/auth/tenant", d.pipeline, true, func(r chi.Router) {
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/me", authHandler.HandleMe)
	})

	odooHandler := handlers.NewOdooHandler(d.gateway, d.registry)
	srv.MountAdmissionGated("/api/v1/odoo", d.pipeline, false, func(r chi.Router) {
		r.Post("/{op}", odooHandler.HandleDispatch)
	})

	webhookHandler := handlers.NewWebhookHandler(d.eventStore)
	srv.MountAdmissionGated("/api/v1/webhooks", d.pipeline, false, func(r chi.Router) {
		r.Post("/push", webhookHandler.HandlePush)
		r.Get("/check-updates", webhookHandler.HandleCheckUpdates)
	})

	syncHandler := handlers.NewSyncHandler(d.syncEngine)
	srv.MountAdmissionGated("/api/v2/sync", d.pipeline, false, func(r chi.Router) {
		r.Post("/pull", syncHandler.HandlePull)
		r.Get("/state", syncHandler.HandleState)
		r.Post("/reset", syncHandler.HandleReset)
	})

	adminHandler := handlers.NewAdminHandler(d.admin, d.tokens)
	srv.Router.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(adminHandler.RequireAdmin)
		r.Post("/tenants", adminHandler.HandleCreateTenant)
		r.Post("/tenants/{id}/status", adminHandler.HandleSetTenantStatus)
		r.Get("/plans", adminHandler.HandleListPlans)
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		<-sweepDone
		return err
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, d *deps) error {
	logger.Info("worker started")

	d.ledgerW.Start(ctx)
	defer d.ledgerW.Close()

	sched := scheduler.New(rdb, logger, []scheduler.Job{
		scheduler.NewHourlyAggregationJob(pool),
		scheduler.NewDailyAggregationJob(pool),
		scheduler.NewRetentionSweepJob(pool, d.eventStore, cfg.UsageRetentionDays),
		scheduler.NewEventPollJob(d.registry, d.pool, d.eventStore, time.Duration(cfg.EventPollIntervalSeconds)*time.Second, cfg.EventPollBatchSize),
		scheduler.NewMetricsSampleJob(d.ledgerW, d.eventStore, d.registry),
	})
	return sched.Run(ctx)
}
