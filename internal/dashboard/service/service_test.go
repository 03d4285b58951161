package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	"civicportal/internal/records/store/record"
	sessionmodels "civicportal/internal/session/models"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
)

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) CountByStatus(ctx context.Context, scope guard.Scope, kind models.Kind) (map[models.Status]int, error) {
	args := m.Called(ctx, scope, kind)
	counts, _ := args.Get(0).(map[models.Status]int)
	return counts, args.Error(1)
}

func staff(tenantID id.TenantID) sessionmodels.Principal {
	return sessionmodels.Principal{UserID: id.UserID(uuid.New()), TenantID: tenantID, Role: sessionmodels.RoleStaff}
}

func TestSummary_CountsEveryKind(t *testing.T) {
	store := record.NewInMemory()
	tenant := id.TenantID(uuid.New())
	admin := sessionmodels.Principal{UserID: id.UserID(uuid.New()), TenantID: tenant, Role: sessionmodels.RoleAdmin}
	scope := guard.Authorize(admin, guard.ActionDelete, tenant).Scope()
	for _, r := range []*models.Record{
		{Kind: models.KindServiceRequests, Title: "a", Status: "submitted"},
		{Kind: models.KindServiceRequests, Title: "b", Status: "closed"},
		{Kind: models.KindFacilities, Title: "c", Status: "open"},
	} {
		require.NoError(t, store.Create(context.Background(), scope, r))
	}

	svc, err := New(store)
	require.NoError(t, err)
	d, err := svc.Summary(context.Background(), staff(tenant))
	require.NoError(t, err)

	require.Len(t, d.Kinds, 4)
	assert.Equal(t, models.KindServiceRequests, d.Kinds[0].Kind)
	assert.Equal(t, 2, d.Kinds[0].Total)
	assert.Equal(t, 1, d.Kinds[0].ByStatus["closed"])
	assert.Equal(t, 0, d.Kinds[0].ByStatus["rejected"])
	assert.Equal(t, 1, d.Kinds[1].Total)
	assert.Equal(t, tenant, d.TenantID)
	assert.WithinDuration(t, time.Now(), d.GeneratedAt, time.Minute)
}

func TestSummary_Denials(t *testing.T) {
	counter := new(mockCounter)
	svc, err := New(counter)
	require.NoError(t, err)
	tenant := id.TenantID(uuid.New())

	_, err = svc.Summary(context.Background(), sessionmodels.Unauthenticated())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	citizen := sessionmodels.Principal{UserID: id.UserID(uuid.New()), TenantID: tenant, Role: sessionmodels.RoleCitizen}
	_, err = svc.Summary(context.Background(), citizen)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	counter.AssertNotCalled(t, "CountByStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSummary_CountFailure(t *testing.T) {
	counter := new(mockCounter)
	counter.On("CountByStatus", mock.Anything, mock.Anything, models.KindFacilities).
		Return(nil, errors.New("connection reset"))
	counter.On("CountByStatus", mock.Anything, mock.Anything, mock.Anything).
		Return(map[models.Status]int{}, nil).Maybe()

	svc, err := New(counter)
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), staff(id.TenantID(uuid.New())))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}
