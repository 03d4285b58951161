// Package httptransport assembles the portal's chi router. Handlers live in
// their domain packages; this package only orders the middleware.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sessionmw "civicportal/internal/session/middleware"
	tenantmw "civicportal/internal/tenant/middleware"
	request "civicportal/pkg/platform/middleware/request"
	"civicportal/pkg/platform/middleware/requesttime"
)

// Registrar is a handler that mounts its own routes.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries everything the router needs. Handlers are registered
// behind the tenant and session middleware; Probes are not.
type Config struct {
	Logger         *slog.Logger
	BaseDomain     string
	TrustedProxies []netip.Prefix
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CookieName     string

	Tenants  tenantmw.Resolver
	Sessions sessionmw.PrincipalResolver
	Metrics  *request.Metrics
	Gatherer prometheus.Gatherer

	Probes   []Registrar
	Handlers []Registrar
}

func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.ClientMetadata(cfg.TrustedProxies))
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Latency(cfg.Metrics))
	r.Use(requesttime.Middleware)

	for _, p := range cfg.Probes {
		p.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(request.BodyLimit(cfg.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)
		r.Use(tenantmw.Tenant(cfg.Tenants, cfg.BaseDomain))
		r.Use(sessionmw.Session(cfg.Sessions, cfg.CookieName))
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})

	return r
}
