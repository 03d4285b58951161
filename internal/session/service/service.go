package service

import (
	"context"
	"log/slog"
	"strings"

	"civicportal/internal/session/models"
	id "civicportal/pkg/domain"
	"civicportal/pkg/requestcontext"
)

// Provider validates a credential with the session backend.
type Provider interface {
	Session(ctx context.Context, credential string) (*models.RawSession, error)
}

// Service turns request credentials into principals.
type Service struct {
	provider Provider
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(provider Provider, opts ...Option) *Service {
	s := &Service{provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentPrincipal never fails. A missing or rejected credential and any
// session with an unparsable identity or unknown role all yield
// Unauthenticated.
func (s *Service) CurrentPrincipal(ctx context.Context, credential string) models.Principal {
	credential = strings.TrimSpace(credential)
	if credential == "" || s.provider == nil {
		return models.Unauthenticated()
	}

	raw, err := s.provider.Session(ctx, credential)
	if err != nil {
		s.logger.DebugContext(ctx, "session rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Unauthenticated()
	}
	if raw == nil {
		return models.Unauthenticated()
	}

	userID, err := id.ParseUserID(raw.UserID)
	if err != nil {
		return s.malformed(ctx, "user_id")
	}
	tenantID, err := id.ParseTenantID(raw.TenantID)
	if err != nil {
		return s.malformed(ctx, "tenant_id")
	}
	role, ok := models.ParseRole(raw.Role)
	if !ok {
		return s.malformed(ctx, "role")
	}

	return models.Principal{UserID: userID, TenantID: tenantID, Role: role}
}

func (s *Service) malformed(ctx context.Context, field string) models.Principal {
	s.logger.WarnContext(ctx, "session carried malformed identity",
		"field", field,
		"request_id", requestcontext.RequestID(ctx),
	)
	return models.Unauthenticated()
}
