package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civicportal/internal/records/models"
	recordservice "civicportal/internal/records/service"
	"civicportal/internal/records/store/record"
	sessionmw "civicportal/internal/session/middleware"
	sessionmodels "civicportal/internal/session/models"
	tenantmw "civicportal/internal/tenant/middleware"
	tenantmodels "civicportal/internal/tenant/models"
	tenantservice "civicportal/internal/tenant/service"
	tenantstore "civicportal/internal/tenant/store/tenant"
	"civicportal/internal/viewcache"
	id "civicportal/pkg/domain"
	"civicportal/pkg/platform/httputil"
	"civicportal/pkg/requestcontext"
)

const baseDomain = "portal.example.gov"

type PublicHandlerSuite struct {
	suite.Suite
	router    http.Handler
	cache     *viewcache.Cache
	service   *recordservice.Service
	tenantID  id.TenantID
	principal sessionmodels.Principal
}

func TestPublicHandlerSuite(t *testing.T) {
	suite.Run(t, new(PublicHandlerSuite))
}

func (s *PublicHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.tenantID = id.TenantID(uuid.New())

	tenants := tenantstore.NewInMemory()
	s.Require().NoError(tenants.Create(context.Background(), &tenantmodels.Tenant{
		ID: s.tenantID, Subdomain: "springfield", Name: "City of Springfield",
	}))
	resolver, err := tenantservice.NewResolver(tenants, tenantmodels.NewFallback("www", "Civic Portal"), tenantservice.WithLogger(logger))
	s.Require().NoError(err)

	s.service, err = recordservice.New(record.NewInMemory(), recordservice.WithLogger(logger))
	s.Require().NoError(err)
	s.cache, err = viewcache.New(100, time.Minute, viewcache.WithLogger(logger))
	s.Require().NoError(err)

	s.principal = sessionmodels.Unauthenticated()
	r := chi.NewRouter()
	r.Use(tenantmw.Tenant(resolver, baseDomain))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := sessionmw.WithPrincipal(req.Context(), s.principal)
			ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", req.UserAgent())
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(s.service, s.cache, s.cache, logger).Register(r)
	s.router = r
}

func (s *PublicHandlerSuite) TearDownTest() {
	s.cache.Close()
}

func (s *PublicHandlerSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Host = "springfield." + baseDomain
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PublicHandlerSuite) citizen() {
	s.principal = sessionmodels.Principal{UserID: id.UserID(uuid.New()), TenantID: s.tenantID, Role: sessionmodels.RoleCitizen}
}

func (s *PublicHandlerSuite) TestReportIssueRequiresSession() {
	rec := s.do(http.MethodPost, "/requests", `{"title":"Pothole","category":"roads"}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *PublicHandlerSuite) TestReportIssueRecordsChannelAndInvalidates() {
	s.citizen()

	rec := s.do(http.MethodGet, "/requests", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("MISS", rec.Header().Get("X-Cache"))
	s.Equal("HIT", s.do(http.MethodGet, "/requests", "", nil).Header().Get("X-Cache"))

	rec = s.do(http.MethodPost, "/requests",
		`{"title":"Pothole","category":"roads","location":{"lat":44.05,"lng":-123.09}}`,
		map[string]string{"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Record
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.Equal(models.Status("submitted"), created.Status)
	s.Equal("mobile", created.Channel)

	rec = s.do(http.MethodGet, "/requests", "", nil)
	s.Equal("MISS", rec.Header().Get("X-Cache"), "report invalidated the list")
	var list ListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Equal(1, list.Total)

	rec = s.do(http.MethodGet, "/requests.geojson", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var fc models.FeatureCollection
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &fc))
	s.Len(fc.Features, 1)
}

func (s *PublicHandlerSuite) TestReportIssueValidation() {
	s.citizen()
	rec := s.do(http.MethodPost, "/requests", `{"title":"","category":"roads"}`, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	var body httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("validation_failed", body.Error)
	s.Equal("title is required", body.Description)
}

func (s *PublicHandlerSuite) TestDetailViews() {
	s.citizen()
	rec := s.do(http.MethodPost, "/requests", `{"title":"Broken bench","category":"parks"}`, nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created models.Record
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.do(http.MethodGet, "/requests/"+created.ID.String(), "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Broken bench")

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/requests/9999", "", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/requests/abc", "", nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/alerts", "", nil).Code)
}

func (s *PublicHandlerSuite) TestMissingTenantMiddleware() {
	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	New(s.service, s.cache, s.cache, logger).Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/facilities", nil))
	s.Equal(http.StatusInternalServerError, rec.Code)
}
