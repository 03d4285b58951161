package record

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	"civicportal/internal/sentinel"
	id "civicportal/pkg/domain"
)

// InMemory keeps records per kind for local mode and tests. Every write
// holds the lock for the whole read-modify-write, matching the single
// statement the Postgres store issues.
type InMemory struct {
	mu      sync.RWMutex
	records map[models.Kind]map[id.RecordID]*models.Record
	nextID  map[models.Kind]id.RecordID
}

func NewInMemory() *InMemory {
	s := &InMemory{
		records: make(map[models.Kind]map[id.RecordID]*models.Record),
		nextID:  make(map[models.Kind]id.RecordID),
	}
	for _, k := range models.Kinds() {
		s.records[k] = make(map[id.RecordID]*models.Record)
		s.nextID[k] = 1
	}
	return s
}

// Create assigns an ID and stores r under the scope's tenant.
func (s *InMemory) Create(_ context.Context, scope guard.Scope, r *models.Record) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.table(r.Kind)
	if err != nil {
		return err
	}
	r.ID = s.nextID[r.Kind]
	s.nextID[r.Kind]++
	r.TenantID = scope.TenantID()
	table[r.ID] = r.Clone()
	return nil
}

// TenantOf returns the owning tenant of a record, or ErrNotFound.
func (s *InMemory) TenantOf(_ context.Context, kind models.Kind, recordID id.RecordID) (id.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, err := s.table(kind)
	if err != nil {
		return id.TenantID{}, err
	}
	r, ok := table[recordID]
	if !ok {
		return id.TenantID{}, sentinel.ErrNotFound
	}
	return r.TenantID, nil
}

func (s *InMemory) FindScoped(ctx context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID) (*models.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.FindByTenant(ctx, scope.TenantID(), kind, recordID)
}

// FindByTenant is the read-only lookup used by public views.
func (s *InMemory) FindByTenant(_ context.Context, tenantID id.TenantID, kind models.Kind, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	r, ok := table[recordID]
	if !ok || r.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// UpdateStatus sets status and updated_at together and returns the new row.
func (s *InMemory) UpdateStatus(_ context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID, status models.Status, at time.Time) (*models.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	r, ok := table[recordID]
	if !ok || r.TenantID != scope.TenantID() {
		return nil, sentinel.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	return r.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.table(kind)
	if err != nil {
		return err
	}
	r, ok := table[recordID]
	if !ok || r.TenantID != scope.TenantID() {
		return sentinel.ErrNotFound
	}
	delete(table, recordID)
	return nil
}

// ListByTenant returns a tenant's records whose status is in statuses
// (all statuses when empty), newest first.
func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID, kind models.Kind, statuses []models.Status) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0)
	for _, r := range table {
		if r.TenantID != tenantID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, r.Status) {
			continue
		}
		out = append(out, r.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) ListScoped(ctx context.Context, scope guard.Scope, kind models.Kind, statuses []models.Status) ([]*models.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.ListByTenant(ctx, scope.TenantID(), kind, statuses)
}

func (s *InMemory) CountByStatus(_ context.Context, scope guard.Scope, kind models.Kind) (map[models.Status]int, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.Status]int)
	for _, r := range table {
		if r.TenantID == scope.TenantID() {
			counts[r.Status]++
		}
	}
	return counts, nil
}

// ListLocated returns up to limit service requests with coordinates, newest first.
func (s *InMemory) ListLocated(ctx context.Context, tenantID id.TenantID, limit int) ([]*models.Record, error) {
	all, err := s.ListByTenant(ctx, tenantID, models.KindServiceRequests, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0, min(limit, len(all)))
	for _, r := range all {
		if len(out) == limit {
			break
		}
		if r.Location != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemory) table(kind models.Kind) (map[id.RecordID]*models.Record, error) {
	table, ok := s.records[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q: %w", kind, sentinel.ErrBadRequest)
	}
	return table, nil
}

func sortNewestFirst(records []*models.Record) {
	slices.SortFunc(records, func(a, b *models.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
}
