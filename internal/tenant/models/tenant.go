package models

import (
	"strings"
	"time"

	id "civicportal/pkg/domain"
)

// FallbackID identifies the tenant served when a subdomain does not resolve.
var FallbackID = id.MustTenantID("00000000-0000-0000-0000-000000000001")

// Tenant is a city served by the portal. Tenants are provisioned by
// migrations or seeding and are read-only to the application.
type Tenant struct {
	ID        id.TenantID `json:"id"`
	Subdomain string      `json:"subdomain"`
	Name      string      `json:"name"`
	Branding  Branding    `json:"branding"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type Branding struct {
	PrimaryColor string `json:"primary_color,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Locale       string `json:"locale,omitempty"`
}

// IsFallback reports whether t is the fallback tenant.
func (t *Tenant) IsFallback() bool {
	return t != nil && t.ID == FallbackID
}

// NewFallback builds the fallback tenant with a configurable subdomain and name.
func NewFallback(subdomain, name string) *Tenant {
	return &Tenant{
		ID:        FallbackID,
		Subdomain: NormalizeSubdomain(subdomain),
		Name:      name,
		Branding:  Branding{Locale: "en"},
	}
}

// NormalizeSubdomain trims surrounding whitespace and lowercases.
func NormalizeSubdomain(subdomain string) string {
	return strings.ToLower(strings.TrimSpace(subdomain))
}
