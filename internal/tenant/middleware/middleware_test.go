package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicportal/internal/tenant/models"
)

func TestSubdomain(t *testing.T) {
	const base = "portal.example.gov"
	tests := []struct {
		host     string
		expected string
	}{
		{"springfield.portal.example.gov", "springfield"},
		{"Springfield.Portal.Example.Gov:8443", "springfield"},
		{"springfield.portal.example.gov.", "springfield"},
		{"portal.example.gov", ""},
		{"a.b.portal.example.gov", ""},
		{"springfield.other.gov", ""},
		{"localhost:8080", ""},
		{"127.0.0.1:8080", ""},
		{"[::1]:8080", ""},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.host, func(t *testing.T) {
			assert.Equal(t, tc.expected, Subdomain(tc.host, base))
		})
	}
}

type recordingResolver struct {
	got []string
}

func (r *recordingResolver) Resolve(_ context.Context, subdomain string) *models.Tenant {
	r.got = append(r.got, subdomain)
	if subdomain == "" {
		return models.NewFallback("www", "Civic Portal")
	}
	return &models.Tenant{Subdomain: subdomain, Name: "City of " + subdomain}
}

func TestTenant_StoresResolvedTenant(t *testing.T) {
	resolver := &recordingResolver{}
	var seen *models.Tenant
	handler := Tenant(resolver, "portal.example.gov")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TenantFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/facilities", nil)
	req.Host = "shelbyville.portal.example.gov"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "shelbyville", seen.Subdomain)
	assert.Equal(t, []string{"shelbyville"}, resolver.got)
}

func TestTenantFrom_OutsideMiddleware(t *testing.T) {
	assert.Nil(t, TenantFrom(context.Background()))
}
