package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	tenantmw "civicportal/internal/tenant/middleware"
	"civicportal/internal/tenant/models"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/platform/httputil"
	"civicportal/pkg/requestcontext"
)

// Handler exposes the branding of the tenant serving the request.
type Handler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/tenant", h.HandleGetTenant)
}

// TenantResponse is the public view of a tenant.
type TenantResponse struct {
	Subdomain string          `json:"subdomain"`
	Name      string          `json:"name"`
	Branding  models.Branding `json:"branding"`
	Fallback  bool            `json:"fallback"`
}

func (h *Handler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := tenantmw.TenantFrom(ctx)
	if t == nil {
		h.logger.ErrorContext(ctx, "tenant missing from context despite tenant middleware",
			"request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "tenant context error"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TenantResponse{
		Subdomain: t.Subdomain,
		Name:      t.Name,
		Branding:  t.Branding,
		Fallback:  t.IsFallback(),
	})
}
