// Package service applies status changes to tenant-scoped records.
//
// Every change runs the same pipeline: kind check, ownership lookup, guard
// decision, status validation, scoped re-read, then a single scoped update
// that writes status and updated_at together. The result lists the cached
// views the change made stale; callers hand them to a viewcache.Invalidator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	"civicportal/internal/sentinel"
	sessionmodels "civicportal/internal/session/models"
	transitionmetrics "civicportal/internal/transition/metrics"
	"civicportal/internal/viewcache"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/platform/tracer"
	"civicportal/pkg/requestcontext"
)

// Store is the persistence the applier needs. Scoped methods must reject a
// zero guard.Scope.
type Store interface {
	TenantOf(ctx context.Context, kind models.Kind, recordID id.RecordID) (id.TenantID, error)
	FindScoped(ctx context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID) (*models.Record, error)
	UpdateStatus(ctx context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID, status models.Status, at time.Time) (*models.Record, error)
}

// Applied describes a persisted status change.
type Applied struct {
	Record        *models.Record
	From          models.Status
	To            models.Status
	At            time.Time
	Invalidations []viewcache.Target
}

// Applier runs status changes through the guard.
type Applier struct {
	store   Store
	logger  *slog.Logger
	metrics *transitionmetrics.Metrics
	tracer  tracer.Tracer
}

type Option func(*Applier)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = logger
	}
}

func WithMetrics(m *transitionmetrics.Metrics) Option {
	return func(a *Applier) {
		a.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(a *Applier) {
		a.tracer = t
	}
}

func New(store Store, opts ...Option) (*Applier, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	a := &Applier{
		store:  store,
		logger: slog.Default(),
		tracer: tracer.Noop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ApplyStatusChange moves record recordID of kind to status on behalf of p.
// Denials and failures leave storage untouched. A record owned by another
// tenant is reported exactly like a missing one.
func (a *Applier) ApplyStatusChange(ctx context.Context, p sessionmodels.Principal, kind models.Kind, recordID id.RecordID, status models.Status) (applied *Applied, err error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "transition.apply_status_change",
		tracer.String("kind", string(kind)),
		tracer.Int64("record_id", int64(recordID)),
		tracer.String("status", string(status)),
	)
	defer func() { span.End(err) }()

	if !kind.Valid() {
		a.metrics.IncTransition(string(kind), transitionmetrics.OutcomeInvalid)
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown record kind %q", kind))
	}
	resource := kind.Resource()

	// Unauthenticated callers are denied below without touching the store.
	var owner id.TenantID
	if p.IsAuthenticated() {
		owner, err = a.store.TenantOf(ctx, kind, recordID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, a.persistenceError(ctx, kind, recordID, "look up record owner", err)
		}
	}

	decision := guard.Authorize(p, guard.UpdateStatusAction(string(kind)), owner)
	span.SetAttributes(tracer.String("decision", decision.Reason.String()))
	if !decision.Allowed {
		a.metrics.IncTransition(string(kind), transitionmetrics.OutcomeDenied)
		a.logger.InfoContext(ctx, "status change denied",
			"log_type", "audit",
			"kind", kind,
			"record_id", recordID,
			"reason", decision.Reason.String(),
			"user_id", p.UserID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, decision.Err(resource)
	}
	scope := decision.Scope()

	if !kind.IsValidStatus(status) {
		a.metrics.IncTransition(string(kind), transitionmetrics.OutcomeInvalid)
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("status %q is not valid for %s", status, resource))
	}

	current, err := a.store.FindScoped(ctx, scope, kind, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			a.metrics.IncTransition(string(kind), transitionmetrics.OutcomeNotFound)
			return nil, guard.NotFound(resource)
		}
		return nil, a.persistenceError(ctx, kind, recordID, "load record", err)
	}

	at := requestcontext.Now(ctx)
	updated, err := a.store.UpdateStatus(ctx, scope, kind, recordID, status, at)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			a.metrics.IncTransition(string(kind), transitionmetrics.OutcomeNotFound)
			return nil, guard.NotFound(resource)
		}
		return nil, a.persistenceError(ctx, kind, recordID, "update status", err)
	}

	a.metrics.IncTransition(string(kind), transitionmetrics.OutcomeApplied)
	a.metrics.ObserveLatency(string(kind), start)
	a.logger.InfoContext(ctx, "record status changed",
		"log_type", "audit",
		"kind", kind,
		"record_id", recordID,
		"from", current.Status,
		"to", updated.Status,
		"user_id", p.UserID,
		"tenant_id", scope.TenantID(),
		"request_id", requestcontext.RequestID(ctx),
	)

	return &Applied{
		Record:        updated,
		From:          current.Status,
		To:            updated.Status,
		At:            at,
		Invalidations: kind.ViewTargets(scope.TenantID(), recordID),
	}, nil
}

func (a *Applier) persistenceError(ctx context.Context, kind models.Kind, recordID id.RecordID, op string, err error) error {
	a.metrics.IncTransition(string(kind), transitionmetrics.OutcomeFailed)
	a.logger.ErrorContext(ctx, "status change failed",
		"operation", op,
		"kind", kind,
		"record_id", recordID,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op)
}
