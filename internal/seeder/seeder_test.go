package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recordmodels "civicportal/internal/records/models"
	"civicportal/internal/records/store/record"
	tenantmodels "civicportal/internal/tenant/models"
	tenantstore "civicportal/internal/tenant/store/tenant"
	id "civicportal/pkg/domain"
)

func TestSeedAll(t *testing.T) {
	ctx := context.Background()
	tenants := tenantstore.NewInMemory()
	records := record.NewInMemory()
	s := New(tenants, records, slog.New(slog.NewTextHandler(io.Discard, nil)))

	cities, err := s.SeedAll(ctx, tenantmodels.NewFallback("www", "Civic Portal"))
	require.NoError(t, err)
	require.Len(t, cities, 2)

	fb, err := tenants.FindBySubdomain(ctx, "www")
	require.NoError(t, err)
	assert.True(t, fb.IsFallback())

	springfield, err := tenants.FindBySubdomain(ctx, "springfield")
	require.NoError(t, err)
	located, err := records.ListLocated(ctx, springfield.ID, 200)
	require.NoError(t, err)
	assert.Len(t, located, 2)
	for _, r := range located {
		assert.Equal(t, springfield.ID, r.TenantID)
		assert.Equal(t, id.UserID{}, r.CreatedBy, "seeded records have no author")
	}

	published, err := records.ListByTenant(ctx, springfield.ID, recordmodels.KindHandbookArticles, []recordmodels.Status{"published"})
	require.NoError(t, err)
	assert.Len(t, published, 1)
}
