// Package service builds the admin dashboard of a tenant.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	sessionmodels "civicportal/internal/session/models"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/requestcontext"
)

const countTimeout = 5 * time.Second

// Counter counts a tenant's records by status.
type Counter interface {
	CountByStatus(ctx context.Context, scope guard.Scope, kind models.Kind) (map[models.Status]int, error)
}

// KindSummary is one dashboard tile.
type KindSummary struct {
	Kind     models.Kind           `json:"kind"`
	Total    int                   `json:"total"`
	ByStatus map[models.Status]int `json:"by_status"`
}

type Dashboard struct {
	TenantID    id.TenantID   `json:"tenant_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Kinds       []KindSummary `json:"kinds"`
}

type Service struct {
	counter Counter
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(counter Counter, opts ...Option) (*Service, error) {
	if counter == nil {
		return nil, fmt.Errorf("record counter is required")
	}
	s := &Service{counter: counter, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Summary counts every record kind of the principal's tenant in parallel.
// The first failing count cancels the rest.
func (s *Service) Summary(ctx context.Context, p sessionmodels.Principal) (*Dashboard, error) {
	decision := guard.Authorize(p, guard.ActionAdminView, p.TenantID)
	if !decision.Allowed {
		return nil, decision.Err("dashboard")
	}
	scope := decision.Scope()

	gctx, cancel := context.WithTimeout(ctx, countTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(gctx)

	kinds := models.Kinds()
	// Each goroutine writes only its own slot.
	summaries := make([]KindSummary, len(kinds))
	for i, kind := range kinds {
		g.Go(func() error {
			counts, err := s.counter.CountByStatus(gctx, scope, kind)
			if err != nil {
				return fmt.Errorf("count %s: %w", kind, err)
			}
			summary := KindSummary{Kind: kind, ByStatus: make(map[models.Status]int, len(kind.Statuses()))}
			for _, status := range kind.Statuses() {
				summary.ByStatus[status] = counts[status]
				summary.Total += counts[status]
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "dashboard counts failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dashboard")
	}

	return &Dashboard{
		TenantID:    scope.TenantID(),
		GeneratedAt: requestcontext.Now(ctx),
		Kinds:       summaries,
	}, nil
}
