// Package service implements record reads for public views and the
// guarded record mutations other than status changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	"civicportal/internal/sentinel"
	sessionmodels "civicportal/internal/session/models"
	"civicportal/internal/viewcache"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/requestcontext"
)

// MaxMapFeatures caps the GeoJSON export.
const MaxMapFeatures = 200

// Store is the record persistence used by the service.
type Store interface {
	Create(ctx context.Context, scope guard.Scope, r *models.Record) error
	TenantOf(ctx context.Context, kind models.Kind, recordID id.RecordID) (id.TenantID, error)
	FindByTenant(ctx context.Context, tenantID id.TenantID, kind models.Kind, recordID id.RecordID) (*models.Record, error)
	Delete(ctx context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID) error
	ListByTenant(ctx context.Context, tenantID id.TenantID, kind models.Kind, statuses []models.Status) ([]*models.Record, error)
	ListScoped(ctx context.Context, scope guard.Scope, kind models.Kind, statuses []models.Status) ([]*models.Record, error)
	ListLocated(ctx context.Context, tenantID id.TenantID, limit int) ([]*models.Record, error)
}

// Change is a persisted mutation and the views it made stale.
type Change struct {
	Record        *models.Record
	Invalidations []viewcache.Target
}

type Service struct {
	store     Store
	logger    *slog.Logger
	localMode bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLocalMode serves sample map data when the store is unreachable.
func WithLocalMode(enabled bool) Option {
	return func(s *Service) {
		s.localMode = enabled
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ReportIssue files a service request in the tenant serving the request.
// Reporter and tenant both come from the session; a citizen of another city
// cannot report into this one.
func (s *Service) ReportIssue(ctx context.Context, p sessionmodels.Principal, hostTenant id.TenantID, req *models.ReportIssueRequest, channel string) (*Change, error) {
	decision := guard.Authorize(p, guard.ActionReportIssue, hostTenant)
	if !decision.Allowed {
		return nil, decision.Err("tenant")
	}
	kind := models.KindServiceRequests
	now := requestcontext.Now(ctx)
	r := &models.Record{
		Kind:      kind,
		Title:     req.Title,
		Body:      req.Description,
		Category:  req.Category,
		Status:    kind.InitialStatus(),
		Location:  req.Location,
		Address:   req.Address,
		Channel:   channel,
		CreatedBy: p.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, decision.Scope(), r); err != nil {
		return nil, s.persistenceError(ctx, "create service request", err)
	}
	s.audit(ctx, "service request reported", p, kind, r.ID)
	return &Change{Record: r, Invalidations: kind.ViewTargets(r.TenantID, r.ID)}, nil
}

// CreateRecord adds a facility, handbook article or emergency alert to the
// principal's own tenant.
func (s *Service) CreateRecord(ctx context.Context, p sessionmodels.Principal, kind models.Kind, req *models.CreateRecordRequest) (*Change, error) {
	if !kind.Valid() {
		return nil, unknownKind(kind)
	}
	decision := guard.Authorize(p, guard.CreateAction(string(kind)), p.TenantID)
	if !decision.Allowed {
		return nil, decision.Err(kind.Resource())
	}

	status := req.Status
	if status == "" {
		status = kind.InitialStatus()
	}
	if !kind.IsValidStatus(status) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("status %q is not valid for %s", status, kind.Resource()))
	}
	if req.Location != nil && !kind.Located() {
		return nil, dErrors.New(dErrors.CodeValidation, kind.Resource()+" does not take a location")
	}

	now := requestcontext.Now(ctx)
	r := &models.Record{
		Kind:      kind,
		Title:     req.Title,
		Body:      req.Body,
		Category:  req.Category,
		Status:    status,
		Location:  req.Location,
		Address:   req.Address,
		CreatedBy: p.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, decision.Scope(), r); err != nil {
		return nil, s.persistenceError(ctx, "create "+kind.Resource(), err)
	}
	s.audit(ctx, "record created", p, kind, r.ID)
	return &Change{Record: r, Invalidations: kind.ViewTargets(r.TenantID, r.ID)}, nil
}

// DeleteRecord removes a record owned by the principal's tenant.
func (s *Service) DeleteRecord(ctx context.Context, p sessionmodels.Principal, kind models.Kind, recordID id.RecordID) ([]viewcache.Target, error) {
	if !kind.Valid() {
		return nil, unknownKind(kind)
	}
	var owner id.TenantID
	if p.IsAuthenticated() {
		var err error
		owner, err = s.store.TenantOf(ctx, kind, recordID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.persistenceError(ctx, "look up record owner", err)
		}
	}
	decision := guard.Authorize(p, guard.ActionDelete, owner)
	if !decision.Allowed {
		return nil, decision.Err(kind.Resource())
	}
	if err := s.store.Delete(ctx, decision.Scope(), kind, recordID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, guard.NotFound(kind.Resource())
		}
		return nil, s.persistenceError(ctx, "delete "+kind.Resource(), err)
	}
	s.audit(ctx, "record deleted", p, kind, recordID)
	return kind.ViewTargets(owner, recordID), nil
}

// ListPublic returns a tenant's records in public statuses, newest first.
func (s *Service) ListPublic(ctx context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Record, error) {
	if !kind.Valid() {
		return nil, unknownKind(kind)
	}
	records, err := s.store.ListByTenant(ctx, tenantID, kind, kind.PublicStatuses())
	if err != nil {
		return nil, s.persistenceError(ctx, "list "+kind.Resource(), err)
	}
	return records, nil
}

// GetPublic returns one record if it is publicly visible in the tenant.
func (s *Service) GetPublic(ctx context.Context, tenantID id.TenantID, kind models.Kind, recordID id.RecordID) (*models.Record, error) {
	if !kind.Valid() {
		return nil, unknownKind(kind)
	}
	r, err := s.store.FindByTenant(ctx, tenantID, kind, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, guard.NotFound(kind.Resource())
		}
		return nil, s.persistenceError(ctx, "load "+kind.Resource(), err)
	}
	if !kind.IsPublic(r.Status) {
		return nil, guard.NotFound(kind.Resource())
	}
	return r, nil
}

// ListAdmin returns every record of kind in the principal's tenant,
// optionally filtered to one status.
func (s *Service) ListAdmin(ctx context.Context, p sessionmodels.Principal, kind models.Kind, status models.Status) ([]*models.Record, error) {
	if !kind.Valid() {
		return nil, unknownKind(kind)
	}
	decision := guard.Authorize(p, guard.ActionAdminView, p.TenantID)
	if !decision.Allowed {
		return nil, decision.Err(kind.Resource())
	}
	var statuses []models.Status
	if status != "" {
		if !kind.IsValidStatus(status) {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("status %q is not valid for %s", status, kind.Resource()))
		}
		statuses = []models.Status{status}
	}
	records, err := s.store.ListScoped(ctx, decision.Scope(), kind, statuses)
	if err != nil {
		return nil, s.persistenceError(ctx, "list "+kind.Resource(), err)
	}
	return records, nil
}

// ExportGeoJSON returns the most recent located service requests of a
// tenant. In local mode a store failure yields the sample collection.
func (s *Service) ExportGeoJSON(ctx context.Context, tenantID id.TenantID) (*models.FeatureCollection, error) {
	records, err := s.store.ListLocated(ctx, tenantID, MaxMapFeatures)
	if err != nil {
		if s.localMode {
			s.logger.WarnContext(ctx, "serving sample map data",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			return models.SampleFeatureCollection(), nil
		}
		return nil, s.persistenceError(ctx, "export request map", err)
	}
	return models.NewFeatureCollection(records), nil
}

func (s *Service) persistenceError(ctx context.Context, op string, err error) error {
	if errors.Is(err, sentinel.ErrBadRequest) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record kind")
	}
	s.logger.ErrorContext(ctx, "record store failed",
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op)
}

func (s *Service) audit(ctx context.Context, event string, p sessionmodels.Principal, kind models.Kind, recordID id.RecordID) {
	s.logger.InfoContext(ctx, event,
		"log_type", "audit",
		"kind", kind,
		"record_id", recordID,
		"user_id", p.UserID,
		"tenant_id", p.TenantID,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func unknownKind(kind models.Kind) error {
	return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown record kind %q", kind))
}
