package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"civicportal/internal/sentinel"
	tenantmetrics "civicportal/internal/tenant/metrics"
	"civicportal/internal/tenant/models"
	"civicportal/pkg/platform/circuit"
	"civicportal/pkg/requestcontext"
)

// TenantStore is the lookup the resolver depends on. Subdomains passed in are
// already normalized.
type TenantStore interface {
	FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
}

// ErrStoreDegraded is reported by the readiness check while the breaker is open.
var ErrStoreDegraded = errors.New("tenant store degraded")

// Resolver maps a request subdomain to a tenant. It never fails: empty,
// unknown, and unreachable lookups all yield the fallback tenant.
type Resolver struct {
	store    TenantStore
	fallback models.Tenant
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *tenantmetrics.Metrics
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Resolver) {
		r.breaker = b
	}
}

func NewResolver(store TenantStore, fallback *models.Tenant, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("tenant store is required")
	}
	if fallback == nil {
		return nil, fmt.Errorf("fallback tenant is required")
	}
	r := &Resolver{
		store:    store,
		fallback: *fallback,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("tenant-store")
	}
	return r, nil
}

// Fallback returns a copy of the fallback tenant.
func (r *Resolver) Fallback() *models.Tenant {
	fb := r.fallback
	return &fb
}

// Resolve returns the tenant for subdomain, or the fallback tenant.
func (r *Resolver) Resolve(ctx context.Context, subdomain string) (tenant *models.Tenant) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "tenant lookup panicked",
				"panic", rec,
				"request_id", requestcontext.RequestID(ctx),
			)
			r.metrics.IncResolution(tenantmetrics.OutcomeStoreFailure)
			tenant = r.Fallback()
		}
	}()

	sub := models.NormalizeSubdomain(subdomain)
	if sub == "" {
		r.metrics.IncResolution(tenantmetrics.OutcomeEmpty)
		return r.Fallback()
	}

	found, err := r.store.FindBySubdomain(ctx, sub)
	switch {
	case err == nil && found != nil:
		r.record(ctx, nil)
		r.metrics.IncResolution(tenantmetrics.OutcomeResolved)
		return found
	case err == nil || errors.Is(err, sentinel.ErrNotFound):
		r.record(ctx, nil)
		r.metrics.IncResolution(tenantmetrics.OutcomeUnknown)
		return r.Fallback()
	default:
		r.record(ctx, err)
		r.logger.WarnContext(ctx, "tenant lookup failed, serving fallback tenant",
			"subdomain", sub,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		r.metrics.IncResolution(tenantmetrics.OutcomeStoreFailure)
		return r.Fallback()
	}
}

// record feeds the breaker and logs state changes. Lookups continue while
// open; the breaker only drives readiness and alerting.
func (r *Resolver) record(ctx context.Context, err error) {
	switch r.breaker.Record(err) {
	case circuit.Opened:
		r.logger.ErrorContext(ctx, "tenant store circuit opened", "breaker", r.breaker.Name())
		r.metrics.SetBreakerOpen(true)
	case circuit.Closed:
		r.logger.InfoContext(ctx, "tenant store circuit closed", "breaker", r.breaker.Name())
		r.metrics.SetBreakerOpen(false)
	}
}

// ReadinessCheck fails while the tenant store breaker is open.
func (r *Resolver) ReadinessCheck(context.Context) error {
	if r.breaker.IsOpen() {
		return ErrStoreDegraded
	}
	return nil
}
