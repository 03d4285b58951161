package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	tenantmw "civicportal/internal/tenant/middleware"
	"civicportal/internal/tenant/models"
	"civicportal/internal/tenant/service"
	tenantstore "civicportal/internal/tenant/store/tenant"
	id "civicportal/pkg/domain"
)

const baseDomain = "portal.example.gov"

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	store := tenantstore.NewInMemory()
	s.Require().NoError(store.Create(context.Background(), &models.Tenant{
		ID:        id.TenantID(uuid.New()),
		Subdomain: "springfield",
		Name:      "City of Springfield",
		Branding:  models.Branding{PrimaryColor: "#0b5394", Locale: "en"},
	}))
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	resolver, err := service.NewResolver(store, models.NewFallback("www", "Civic Portal"), service.WithLogger(logger))
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(tenantmw.Tenant(resolver, baseDomain))
	New(logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) get(host string) TenantResponse {
	req := httptest.NewRequest(http.MethodGet, "/tenant", nil)
	req.Host = host
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body TenantResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *HandlerSuite) TestKnownCityBranding() {
	body := s.get("springfield." + baseDomain)
	s.Equal("City of Springfield", body.Name)
	s.Equal("#0b5394", body.Branding.PrimaryColor)
	s.False(body.Fallback)
}

func (s *HandlerSuite) TestUnknownCityGetsFallback() {
	body := s.get("atlantis." + baseDomain)
	s.Equal("Civic Portal", body.Name)
	s.True(body.Fallback)
}

func (s *HandlerSuite) TestMissingMiddlewareIsInternalError() {
	r := chi.NewRouter()
	New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tenant", nil))
	s.Equal(http.StatusInternalServerError, rec.Code)
}
