package tenant

import (
	"context"
	"fmt"
	"sync"

	"civicportal/internal/sentinel"
	"civicportal/internal/tenant/models"
	id "civicportal/pkg/domain"
)

// InMemory stores tenants in memory for local mode and tests.
type InMemory struct {
	mu          sync.RWMutex
	tenants     map[id.TenantID]*models.Tenant
	bySubdomain map[string]id.TenantID
}

func NewInMemory() *InMemory {
	return &InMemory{
		tenants:     make(map[id.TenantID]*models.Tenant),
		bySubdomain: make(map[string]id.TenantID),
	}
}

// Create adds a tenant. Subdomains are unique after normalization.
func (s *InMemory) Create(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := models.NormalizeSubdomain(t.Subdomain)
	if _, exists := s.bySubdomain[sub]; exists {
		return fmt.Errorf("subdomain %q taken: %w", sub, sentinel.ErrAlreadyUsed)
	}
	stored := *t
	stored.Subdomain = sub
	s.tenants[t.ID] = &stored
	s.bySubdomain[sub] = t.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[tenantID]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindBySubdomain expects an already normalized subdomain.
func (s *InMemory) FindBySubdomain(_ context.Context, subdomain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tid, ok := s.bySubdomain[subdomain]; ok {
		cp := *s.tenants[tid]
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}
