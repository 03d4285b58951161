// Package middleware resolves the request's tenant from its Host header.
package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"civicportal/internal/tenant/models"
)

// Resolver never fails; unknown hosts resolve to the fallback tenant.
type Resolver interface {
	Resolve(ctx context.Context, subdomain string) *models.Tenant
}

type contextKeyTenant struct{}

// WithTenant stores the resolved tenant in ctx.
func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, contextKeyTenant{}, t)
}

// TenantFrom returns the tenant resolved for this request, or nil outside
// the middleware.
func TenantFrom(ctx context.Context) *models.Tenant {
	t, _ := ctx.Value(contextKeyTenant{}).(*models.Tenant)
	return t
}

// Subdomain extracts the left-most label of host below baseDomain.
// Hosts outside baseDomain, the bare base domain, localhost and IP
// literals all yield "".
func Subdomain(host, baseDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || host == "localhost" {
		return ""
	}
	if _, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return ""
	}

	base := "." + strings.TrimPrefix(strings.ToLower(baseDomain), ".")
	prefix, ok := strings.CutSuffix(host, base)
	if !ok || prefix == "" {
		return ""
	}
	// a.b.portal.example -> "b" would be ambiguous; only direct children count.
	if strings.Contains(prefix, ".") {
		return ""
	}
	return prefix
}

// Tenant resolves the host's tenant once per request.
func Tenant(resolver Resolver, baseDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			t := resolver.Resolve(ctx, Subdomain(r.Host, baseDomain))
			next.ServeHTTP(w, r.WithContext(WithTenant(ctx, t)))
		})
	}
}
