package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicportal/internal/records/models"
	recordservice "civicportal/internal/records/service"
	sessionmw "civicportal/internal/session/middleware"
	sessionmodels "civicportal/internal/session/models"
	tenantmw "civicportal/internal/tenant/middleware"
	tenantmodels "civicportal/internal/tenant/models"
	"civicportal/internal/viewcache"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/platform/device"
	"civicportal/pkg/platform/httputil"
	"civicportal/pkg/requestcontext"
)

// Service is the record service used by the public routes.
type Service interface {
	ListPublic(ctx context.Context, tenantID id.TenantID, kind models.Kind) ([]*models.Record, error)
	GetPublic(ctx context.Context, tenantID id.TenantID, kind models.Kind, recordID id.RecordID) (*models.Record, error)
	ExportGeoJSON(ctx context.Context, tenantID id.TenantID) (*models.FeatureCollection, error)
	ReportIssue(ctx context.Context, p sessionmodels.Principal, hostTenant id.TenantID, req *models.ReportIssueRequest, channel string) (*recordservice.Change, error)
}

// ViewCache stores rendered public views.
type ViewCache interface {
	Get(t viewcache.Target) ([]byte, bool)
	Generation(t viewcache.Target) uint64
	SetIfUnchanged(t viewcache.Target, gen uint64, body []byte) bool
}

// Handler serves the public, tenant-branded record views and issue reporting.
type Handler struct {
	service     Service
	cache       ViewCache
	invalidator viewcache.Invalidator
	logger      *slog.Logger
}

func New(service Service, cache ViewCache, invalidator viewcache.Invalidator, logger *slog.Logger) *Handler {
	return &Handler{service: service, cache: cache, invalidator: invalidator, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	for _, kind := range models.Kinds() {
		route := "/" + kind.Route()
		r.Get(route, h.handleList(kind))
		r.Get(route+"/{id}", h.handleGet(kind))
	}
	r.Get("/requests.geojson", h.HandleExportGeoJSON)
	r.Post("/requests", h.HandleReportIssue)
}

func (h *Handler) handleList(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := h.tenant(w, r)
		if !ok {
			return
		}
		target := viewcache.Target{TenantID: tenant.ID, View: viewcache.ListView(kind.Route())}
		h.serveCached(w, r, target, func(ctx context.Context) (any, error) {
			records, err := h.service.ListPublic(ctx, tenant.ID, kind)
			if err != nil {
				return nil, err
			}
			return ListResponse{Records: records, Total: len(records)}, nil
		})
	}
}

func (h *Handler) handleGet(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := h.tenant(w, r)
		if !ok {
			return
		}
		recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid record id"))
			return
		}
		target := viewcache.Target{TenantID: tenant.ID, View: viewcache.DetailView(kind.Route(), recordID)}
		h.serveCached(w, r, target, func(ctx context.Context) (any, error) {
			return h.service.GetPublic(ctx, tenant.ID, kind, recordID)
		})
	}
}

// HandleExportGeoJSON serves the request map of the host tenant.
func (h *Handler) HandleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	target := viewcache.Target{TenantID: tenant.ID, View: viewcache.ViewMap}
	h.serveCached(w, r, target, func(ctx context.Context) (any, error) {
		fc, err := h.service.ExportGeoJSON(ctx, tenant.ID)
		if err != nil {
			return nil, err
		}
		if fc.Sample {
			// Never cache placeholder data.
			return uncached{fc}, nil
		}
		return fc, nil
	})
}

// HandleReportIssue files a service request for the host tenant.
func (h *Handler) HandleReportIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	principal := sessionmw.PrincipalFrom(ctx)
	if !principal.IsAuthenticated() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.ReportIssueRequest](w, r, h.logger)
	if !ok {
		return
	}

	channel := device.ChannelFor(requestcontext.UserAgent(ctx))
	change, err := h.service.ReportIssue(ctx, principal, tenant.ID, req, string(channel))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.invalidator.Invalidate(ctx, change.Invalidations)
	httputil.WriteJSON(w, http.StatusCreated, change.Record)
}

// ListResponse is a public list page.
type ListResponse struct {
	Records []*models.Record `json:"records"`
	Total   int              `json:"total"`
}

type uncached struct {
	body any
}

// serveCached answers from the cache or renders, stores and writes the view.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, target viewcache.Target, render func(context.Context) (any, error)) {
	ctx := r.Context()
	if body, ok := h.cache.Get(target); ok {
		writeBody(w, body, "HIT")
		return
	}

	gen := h.cache.Generation(target)
	view, err := render(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	skip, isUncached := view.(uncached)
	if isUncached {
		view = skip.body
	}
	body, err := json.Marshal(view)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode view",
			"view", target.View,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to render view"))
		return
	}
	if !isUncached {
		h.cache.SetIfUnchanged(target, gen, body)
	}
	writeBody(w, body, "MISS")
}

func writeBody(w http.ResponseWriter, body []byte, cacheStatus string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (*tenantmodels.Tenant, bool) {
	ctx := r.Context()
	t := tenantmw.TenantFrom(ctx)
	if t == nil {
		h.logger.ErrorContext(ctx, "tenant missing from context despite tenant middleware",
			"request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "tenant context error"))
		return nil, false
	}
	return t, true
}
