package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"civicportal/internal/session/models"
	id "civicportal/pkg/domain"
)

func TestCredential(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def") }, "abc.def"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc"},
		{"basic auth ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcg==") }, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "portal_session", Value: "from-cookie"}) }, "from-cookie"},
		{"header wins over cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer from-header")
			r.AddCookie(&http.Cookie{Name: "portal_session", Value: "from-cookie"})
		}, "from-header"},
		{"nothing", func(*http.Request) {}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(r)
			assert.Equal(t, tc.expected, Credential(r, "portal_session"))
		})
	}
}

type fixedResolver struct {
	principal models.Principal
	seen      string
}

func (f *fixedResolver) CurrentPrincipal(_ context.Context, credential string) models.Principal {
	f.seen = credential
	return f.principal
}

func TestSession_AttachesPrincipal(t *testing.T) {
	staff := models.Principal{UserID: id.UserID(uuid.New()), TenantID: id.TenantID(uuid.New()), Role: models.RoleStaff}
	resolver := &fixedResolver{principal: staff}

	var got models.Principal
	h := Session(resolver, "portal_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	r.Header.Set("Authorization", "Bearer token-1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, staff, got)
	assert.Equal(t, "token-1", resolver.seen)
}

func TestPrincipalFrom_DefaultsToUnauthenticated(t *testing.T) {
	assert.False(t, PrincipalFrom(context.Background()).IsAuthenticated())
}
