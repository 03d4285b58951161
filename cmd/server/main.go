package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	adminhandler "civicportal/internal/admin/handler"
	dashboard "civicportal/internal/dashboard/service"
	"civicportal/internal/platform/config"
	"civicportal/internal/platform/database"
	"civicportal/internal/platform/health"
	"civicportal/internal/platform/logger"
	recordhandler "civicportal/internal/records/handler"
	recordservice "civicportal/internal/records/service"
	"civicportal/internal/records/store/record"
	"civicportal/internal/seeder"
	sessionservice "civicportal/internal/session/service"
	"civicportal/internal/session/token"
	tenanthandler "civicportal/internal/tenant/handler"
	tenantmetrics "civicportal/internal/tenant/metrics"
	tenantmodels "civicportal/internal/tenant/models"
	tenantservice "civicportal/internal/tenant/service"
	tenantstore "civicportal/internal/tenant/store/tenant"
	transitionmetrics "civicportal/internal/transition/metrics"
	transition "civicportal/internal/transition/service"
	httptransport "civicportal/internal/transport/http"
	"civicportal/internal/viewcache"
	"civicportal/pkg/platform/circuit"
	request "civicportal/pkg/platform/middleware/request"
	"civicportal/pkg/platform/tracer"
)

type tenantStore interface {
	tenantservice.TenantStore
	seeder.TenantStore
}

type recordStore interface {
	recordservice.Store
	transition.Store
	dashboard.Counter
	seeder.RecordStore
}

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("PORTAL_CONFIG"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level)
	slog.SetDefault(log)

	log.Info("initializing civicportal",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"base_domain", cfg.Server.BaseDomain,
		"local_mode", cfg.LocalMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.Warn("closing database", "error", err)
		}
	}()

	fallback := tenantmodels.NewFallback(cfg.Tenant.FallbackSubdomain, cfg.Tenant.FallbackName)
	tenants, records, err := buildStores(ctx, cfg, pool, fallback, log)
	if err != nil {
		return err
	}

	resolver, err := tenantservice.NewResolver(tenants, fallback,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(tenantmetrics.New(reg)),
		tenantservice.WithBreaker(circuit.New("tenant-store", circuit.WithFailureThreshold(cfg.Tenant.BreakerFailures))),
	)
	if err != nil {
		return err
	}

	tokens := token.New(cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.Audience, cfg.Session.TTL)
	sessions := sessionservice.New(tokens, sessionservice.WithLogger(log))

	cacheMetrics := viewcache.NewMetrics(reg)
	cache, err := viewcache.New(cfg.ViewCache.MaxCost, cfg.ViewCache.TTL,
		viewcache.WithLogger(log),
		viewcache.WithMetrics(cacheMetrics),
	)
	if err != nil {
		return err
	}
	defer cache.Close()

	var invalidator viewcache.Invalidator = cache
	if cfg.NATS.URL != "" {
		fanout, err := viewcache.Connect(cfg.NATS.URL, cfg.NATS.Subject, cache,
			viewcache.WithFanoutLogger(log),
			viewcache.WithFanoutMetrics(cacheMetrics),
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := fanout.Close(); err != nil {
				log.Warn("closing nats", "error", err)
			}
		}()
		invalidator = fanout
	}

	applier, err := transition.New(records,
		transition.WithLogger(log),
		transition.WithMetrics(transitionmetrics.New(reg)),
		transition.WithTracer(tracer.NewOTel("civicportal/transition", otel.Tracer("civicportal/transition"))),
	)
	if err != nil {
		return err
	}
	recordSvc, err := recordservice.New(records,
		recordservice.WithLogger(log),
		recordservice.WithLocalMode(cfg.LocalMode),
	)
	if err != nil {
		return err
	}
	dashboardSvc, err := dashboard.New(records, dashboard.WithLogger(log))
	if err != nil {
		return err
	}

	probes := health.New(cfg.Server.Environment)
	probes.RegisterCheck("tenant_store", resolver.ReadinessCheck)
	if pool != nil {
		probes.RegisterCheck("database", pool.Health)
	}

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		BaseDomain:     cfg.Server.BaseDomain,
		TrustedProxies: trusted,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CookieName:     cfg.Session.CookieName,
		Tenants:        resolver,
		Sessions:       sessions,
		Metrics:        request.NewMetrics(reg),
		Gatherer:       reg,
		Probes:         []httptransport.Registrar{probes},
		Handlers: []httptransport.Registrar{
			tenanthandler.New(log),
			recordhandler.New(recordSvc, cache, invalidator, log),
			adminhandler.New(applier, recordSvc, dashboardSvc, cache, invalidator, log),
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// buildStores returns Postgres stores when a database is configured and
// in-memory stores otherwise. In local mode the in-memory stores are seeded
// with demo cities.
func buildStores(ctx context.Context, cfg *config.Config, pool *database.Pool, fallback *tenantmodels.Tenant, log *slog.Logger) (tenantStore, recordStore, error) {
	if pool != nil {
		if err := database.MigrateUp(ctx, pool.DB()); err != nil {
			return nil, nil, err
		}
		log.Info("database migrations applied")
		return tenantstore.NewPostgres(pool.DB()), record.NewPostgres(pool.DB()), nil
	}

	log.Warn("no database configured, using in-memory stores")
	tenants := tenantstore.NewInMemory()
	records := record.NewInMemory()
	if !cfg.LocalMode {
		return tenants, records, nil
	}
	cities, err := seeder.New(tenants, records, log).SeedAll(ctx, fallback)
	if err != nil {
		return nil, nil, err
	}
	for _, city := range cities {
		log.Info("demo city available", "host", city.Subdomain+"."+cfg.Server.BaseDomain)
	}
	return tenants, records, nil
}
