// Package handler serves the staff and admin routes. Every route reads the
// session principal once and passes it to the guarded services.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dashboard "civicportal/internal/dashboard/service"
	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	recordservice "civicportal/internal/records/service"
	sessionmw "civicportal/internal/session/middleware"
	sessionmodels "civicportal/internal/session/models"
	transition "civicportal/internal/transition/service"
	"civicportal/internal/viewcache"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/platform/httputil"
	"civicportal/pkg/requestcontext"
)

type Applier interface {
	ApplyStatusChange(ctx context.Context, p sessionmodels.Principal, kind models.Kind, recordID id.RecordID, status models.Status) (*transition.Applied, error)
}

type RecordService interface {
	CreateRecord(ctx context.Context, p sessionmodels.Principal, kind models.Kind, req *models.CreateRecordRequest) (*recordservice.Change, error)
	DeleteRecord(ctx context.Context, p sessionmodels.Principal, kind models.Kind, recordID id.RecordID) ([]viewcache.Target, error)
	ListAdmin(ctx context.Context, p sessionmodels.Principal, kind models.Kind, status models.Status) ([]*models.Record, error)
}

type DashboardService interface {
	Summary(ctx context.Context, p sessionmodels.Principal) (*dashboard.Dashboard, error)
}

type ViewCache interface {
	Get(t viewcache.Target) ([]byte, bool)
	Generation(t viewcache.Target) uint64
	SetIfUnchanged(t viewcache.Target, gen uint64, body []byte) bool
}

type Handler struct {
	applier     Applier
	records     RecordService
	dashboard   DashboardService
	cache       ViewCache
	invalidator viewcache.Invalidator
	logger      *slog.Logger
}

func New(applier Applier, records RecordService, dash DashboardService, cache ViewCache, invalidator viewcache.Invalidator, logger *slog.Logger) *Handler {
	return &Handler{
		applier:     applier,
		records:     records,
		dashboard:   dash,
		cache:       cache,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/dashboard", h.HandleDashboard)
		r.Get("/{kind}", h.HandleList)
		r.Post("/{kind}", h.HandleCreate)
		r.Post("/{kind}/{id}/status", h.HandleStatusChange)
		r.Delete("/{kind}/{id}", h.HandleDelete)
	})
}

// StatusChangeResponse reports an applied status change.
type StatusChangeResponse struct {
	Record *models.Record `json:"record"`
	From   models.Status  `json:"from"`
	To     models.Status  `json:"to"`
	At     time.Time      `json:"at"`
}

type ListResponse struct {
	Records []*models.Record `json:"records"`
	Total   int              `json:"total"`
}

func (h *Handler) HandleStatusChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := sessionmw.PrincipalFrom(ctx)
	kind, recordID, ok := h.target(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.StatusChangeRequest](w, r, h.logger)
	if !ok {
		return
	}

	applied, err := h.applier.ApplyStatusChange(ctx, principal, kind, recordID, req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.invalidator.Invalidate(ctx, applied.Invalidations)
	httputil.WriteJSON(w, http.StatusOK, StatusChangeResponse{
		Record: applied.Record,
		From:   applied.From,
		To:     applied.To,
		At:     applied.At,
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := sessionmw.PrincipalFrom(ctx)
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateRecordRequest](w, r, h.logger)
	if !ok {
		return
	}

	change, err := h.records.CreateRecord(ctx, principal, kind, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.invalidator.Invalidate(ctx, change.Invalidations)
	httputil.WriteJSON(w, http.StatusCreated, change.Record)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := sessionmw.PrincipalFrom(ctx)
	kind, recordID, ok := h.target(w, r)
	if !ok {
		return
	}

	targets, err := h.records.DeleteRecord(ctx, principal, kind, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.invalidator.Invalidate(ctx, targets)
	w.WriteHeader(http.StatusNoContent)
}

// HandleList serves the admin list of a kind. Only the unfiltered list is
// cached, and only after the guard allowed the principal.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := sessionmw.PrincipalFrom(ctx)
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	status := models.Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))

	decision := guard.Authorize(principal, guard.ActionAdminView, principal.TenantID)
	if !decision.Allowed {
		httputil.WriteError(w, decision.Err(kind.Resource()))
		return
	}
	target := viewcache.Target{TenantID: decision.Scope().TenantID(), View: viewcache.AdminListView(string(kind))}
	if status == "" {
		if body, ok := h.cache.Get(target); ok {
			writeBody(w, body)
			return
		}
	}
	gen := h.cache.Generation(target)

	records, err := h.records.ListAdmin(ctx, principal, kind, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	response := ListResponse{Records: records, Total: len(records)}
	if status != "" {
		httputil.WriteJSON(w, http.StatusOK, response)
		return
	}
	h.render(w, r, target, gen, response)
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := sessionmw.PrincipalFrom(ctx)

	decision := guard.Authorize(principal, guard.ActionAdminView, principal.TenantID)
	if !decision.Allowed {
		httputil.WriteError(w, decision.Err("dashboard"))
		return
	}
	target := viewcache.Target{TenantID: decision.Scope().TenantID(), View: viewcache.ViewDashboard}
	if body, ok := h.cache.Get(target); ok {
		writeBody(w, body)
		return
	}
	gen := h.cache.Generation(target)

	d, err := h.dashboard.Summary(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.render(w, r, target, gen, d)
}

// render writes view and caches it unless target was invalidated after gen
// was read.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, target viewcache.Target, gen uint64, view any) {
	body, err := json.Marshal(view)
	if err != nil {
		ctx := r.Context()
		h.logger.ErrorContext(ctx, "failed to encode view",
			"view", target.View,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to render view"))
		return
	}
	h.cache.SetIfUnchanged(target, gen, body)
	writeBody(w, body)
}

func writeBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// kind accepts either the table name ("service_requests") or the public
// route ("requests").
func (h *Handler) kind(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	raw := chi.URLParam(r, "kind")
	if kind, ok := models.ParseKind(raw); ok {
		return kind, true
	}
	if kind, ok := models.KindForRoute(raw); ok {
		return kind, true
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown record kind"))
	return "", false
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (models.Kind, id.RecordID, bool) {
	kind, ok := h.kind(w, r)
	if !ok {
		return "", 0, false
	}
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid record id"))
		return "", 0, false
	}
	return kind, recordID, true
}
