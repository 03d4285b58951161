// Package middleware attaches the session principal at the transport boundary.
// Handlers read it once with PrincipalFrom and pass it explicitly from there.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"civicportal/internal/session/models"
)

type PrincipalResolver interface {
	CurrentPrincipal(ctx context.Context, credential string) models.Principal
}

type contextKeyPrincipal struct{}

// PrincipalFrom returns the request principal, Unauthenticated if absent.
func PrincipalFrom(ctx context.Context) models.Principal {
	if p, ok := ctx.Value(contextKeyPrincipal{}).(models.Principal); ok {
		return p
	}
	return models.Unauthenticated()
}

// WithPrincipal is exported for handler tests.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, p)
}

// Credential reads a Bearer token, falling back to the session cookie.
func Credential(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Session resolves the principal for every request. It never rejects;
// authorization decisions belong to the guard.
func Session(resolver PrincipalResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := resolver.CurrentPrincipal(ctx, Credential(r, cookieName))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
		})
	}
}
