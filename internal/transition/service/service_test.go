package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	"civicportal/internal/sentinel"
	sessionmodels "civicportal/internal/session/models"
	transitionmetrics "civicportal/internal/transition/metrics"
	"civicportal/internal/transition/service/mocks"
	"civicportal/internal/viewcache"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
	"civicportal/pkg/requestcontext"
)

type ApplierSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	metrics *transitionmetrics.Metrics
	applier *Applier

	tenant id.TenantID
	staff  sessionmodels.Principal
	admin  sessionmodels.Principal
}

func TestApplierSuite(t *testing.T) {
	suite.Run(t, new(ApplierSuite))
}

func (s *ApplierSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.metrics = transitionmetrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.applier, err = New(s.store, WithLogger(logger), WithMetrics(s.metrics))
	s.Require().NoError(err)

	s.tenant = id.TenantID(uuid.New())
	s.staff = sessionmodels.Principal{UserID: id.UserID(uuid.New()), TenantID: s.tenant, Role: sessionmodels.RoleStaff}
	s.admin = sessionmodels.Principal{UserID: id.UserID(uuid.New()), TenantID: s.tenant, Role: sessionmodels.RoleAdmin}
}

func (s *ApplierSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ApplierSuite) scope(p sessionmodels.Principal, kind models.Kind) guard.Scope {
	return guard.Authorize(p, guard.UpdateStatusAction(string(kind)), p.TenantID).Scope()
}

func (s *ApplierSuite) count(kind models.Kind, outcome string) float64 {
	return testutil.ToFloat64(s.metrics.Transitions.WithLabelValues(string(kind), outcome))
}

func (s *ApplierSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "record store is required")
	})
}

func (s *ApplierSuite) TestAppliesStatusChange() {
	kind := models.KindServiceRequests
	requestTime := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), requestTime)
	scope := s.scope(s.staff, kind)
	current := &models.Record{ID: 42, Kind: kind, TenantID: s.tenant, Status: "submitted"}
	updated := &models.Record{ID: 42, Kind: kind, TenantID: s.tenant, Status: "acknowledged", UpdatedAt: requestTime}

	gomock.InOrder(
		s.store.EXPECT().TenantOf(gomock.Any(), kind, id.RecordID(42)).Return(s.tenant, nil),
		s.store.EXPECT().FindScoped(gomock.Any(), scope, kind, id.RecordID(42)).Return(current, nil),
		s.store.EXPECT().UpdateStatus(gomock.Any(), scope, kind, id.RecordID(42), models.Status("acknowledged"), requestTime).Return(updated, nil),
	)

	applied, err := s.applier.ApplyStatusChange(ctx, s.staff, kind, 42, "acknowledged")
	s.Require().NoError(err)
	s.Equal(models.Status("submitted"), applied.From)
	s.Equal(models.Status("acknowledged"), applied.To)
	s.Equal(requestTime, applied.At)
	s.Equal(updated, applied.Record)
	s.Contains(applied.Invalidations, viewcache.Target{TenantID: s.tenant, View: viewcache.ViewMap})
	s.Contains(applied.Invalidations, viewcache.Target{TenantID: s.tenant, View: viewcache.DetailView("requests", 42)})
	s.Equal(1.0, s.count(kind, transitionmetrics.OutcomeApplied))
}

func (s *ApplierSuite) TestUnknownKindTouchesNothing() {
	_, err := s.applier.ApplyStatusChange(context.Background(), s.admin, models.Kind("parking_tickets"), 1, "closed")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ApplierSuite) TestUnauthenticatedMakesNoStoreCalls() {
	// No expectations: any store call fails the test.
	_, err := s.applier.ApplyStatusChange(context.Background(), sessionmodels.Unauthenticated(), models.KindFacilities, 7, "closed")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(1.0, s.count(models.KindFacilities, transitionmetrics.OutcomeDenied))
}

func (s *ApplierSuite) TestInsufficientRoleIsForbidden() {
	s.store.EXPECT().TenantOf(gomock.Any(), models.KindFacilities, id.RecordID(7)).Return(s.tenant, nil)

	_, err := s.applier.ApplyStatusChange(context.Background(), s.staff, models.KindFacilities, 7, "closed")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ApplierSuite) TestCrossTenantReadsLikeMissing() {
	other := id.TenantID(uuid.New())

	s.Run("record owned by another tenant", func() {
		s.store.EXPECT().TenantOf(gomock.Any(), models.KindFacilities, id.RecordID(7)).Return(other, nil)
		_, err := s.applier.ApplyStatusChange(context.Background(), s.admin, models.KindFacilities, 7, "closed")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.EqualError(err, "facility not found")
	})

	s.Run("record that does not exist", func() {
		s.store.EXPECT().TenantOf(gomock.Any(), models.KindFacilities, id.RecordID(8)).Return(id.TenantID{}, sentinel.ErrNotFound)
		_, err := s.applier.ApplyStatusChange(context.Background(), s.admin, models.KindFacilities, 8, "closed")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.EqualError(err, "facility not found")
	})
}

func (s *ApplierSuite) TestInvalidStatusIsRejectedBeforeWrite() {
	s.store.EXPECT().TenantOf(gomock.Any(), models.KindHandbookArticles, id.RecordID(3)).Return(s.tenant, nil)

	_, err := s.applier.ApplyStatusChange(context.Background(), s.staff, models.KindHandbookArticles, 3, "acknowledged")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(1.0, s.count(models.KindHandbookArticles, transitionmetrics.OutcomeInvalid))
}

func (s *ApplierSuite) TestDeletedBetweenLookupAndRead() {
	kind := models.KindEmergencyAlerts
	s.store.EXPECT().TenantOf(gomock.Any(), kind, id.RecordID(5)).Return(s.tenant, nil)
	s.store.EXPECT().FindScoped(gomock.Any(), s.scope(s.admin, kind), kind, id.RecordID(5)).Return(nil, sentinel.ErrNotFound)

	_, err := s.applier.ApplyStatusChange(context.Background(), s.admin, kind, 5, "resolved")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ApplierSuite) TestUpdateMatchingNoRows() {
	kind := models.KindEmergencyAlerts
	s.store.EXPECT().TenantOf(gomock.Any(), kind, id.RecordID(5)).Return(s.tenant, nil)
	s.store.EXPECT().FindScoped(gomock.Any(), gomock.Any(), kind, id.RecordID(5)).Return(&models.Record{ID: 5, Status: "active"}, nil)
	s.store.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), kind, id.RecordID(5), models.Status("resolved"), gomock.Any()).Return(nil, sentinel.ErrNotFound)

	_, err := s.applier.ApplyStatusChange(context.Background(), s.admin, kind, 5, "resolved")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.EqualError(err, "emergency alert not found")
}

func (s *ApplierSuite) TestPersistenceFailures() {
	kind := models.KindServiceRequests
	boom := errors.New("connection reset")

	s.Run("owner lookup", func() {
		s.store.EXPECT().TenantOf(gomock.Any(), kind, id.RecordID(1)).Return(id.TenantID{}, boom)
		_, err := s.applier.ApplyStatusChange(context.Background(), s.staff, kind, 1, "closed")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorIs(err, boom)
	})

	s.Run("update is not retried", func() {
		s.store.EXPECT().TenantOf(gomock.Any(), kind, id.RecordID(1)).Return(s.tenant, nil)
		s.store.EXPECT().FindScoped(gomock.Any(), gomock.Any(), kind, id.RecordID(1)).Return(&models.Record{ID: 1, Status: "submitted"}, nil)
		s.store.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), kind, id.RecordID(1), models.Status("closed"), gomock.Any()).Return(nil, boom).Times(1)
		_, err := s.applier.ApplyStatusChange(context.Background(), s.staff, kind, 1, "closed")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Equal(2.0, s.count(kind, transitionmetrics.OutcomeFailed))
}
