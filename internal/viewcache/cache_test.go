package viewcache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civicportal/pkg/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(100, time.Minute, append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func store(t *testing.T, c *Cache, target Target, body string) {
	t.Helper()
	require.True(t, c.SetIfUnchanged(target, c.Generation(target), []byte(body)))
}

func TestNew_RejectsInvalidBounds(t *testing.T) {
	_, err := New(0, time.Minute)
	assert.Error(t, err)
	_, err = New(10, 0)
	assert.Error(t, err)
}

func TestCache_SetGetInvalidate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	c := newTestCache(t, WithMetrics(m))
	tenant := id.TenantID(uuid.New())
	list := Target{TenantID: tenant, View: ListView("facilities")}
	detail := Target{TenantID: tenant, View: DetailView("facilities", 3)}

	_, ok := c.Get(list)
	assert.False(t, ok)

	store(t, c, list, `[]`)
	store(t, c, detail, `{"id":3}`)
	body, ok := c.Get(list)
	require.True(t, ok)
	assert.Equal(t, `[]`, string(body))

	c.Invalidate(context.Background(), []Target{list})
	_, ok = c.Get(list)
	assert.False(t, ok)
	_, ok = c.Get(detail)
	assert.True(t, ok, "untouched views stay cached")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invalidations))
}

func TestCache_TenantsDoNotShareEntries(t *testing.T) {
	c := newTestCache(t)
	a := Target{TenantID: id.TenantID(uuid.New()), View: ViewMap}
	b := Target{TenantID: id.TenantID(uuid.New()), View: ViewMap}

	store(t, c, a, "a")
	_, ok := c.Get(b)
	assert.False(t, ok)
}

func TestCache_InvalidationDuringRenderDiscardsWrite(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	c := newTestCache(t, WithMetrics(m))
	list := Target{TenantID: id.TenantID(uuid.New()), View: ListView("alerts")}

	gen := c.Generation(list)
	c.Invalidate(context.Background(), []Target{list})

	assert.False(t, c.SetIfUnchanged(list, gen, []byte(`{"status":"active"}`)))
	_, ok := c.Get(list)
	assert.False(t, ok, "body rendered before the invalidation is not served")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleWrites))

	store(t, c, list, `{"status":"resolved"}`)
	body, ok := c.Get(list)
	require.True(t, ok)
	assert.Equal(t, `{"status":"resolved"}`, string(body))
}

func TestCache_GenerationAdvancesOnlyForInvalidatedTargets(t *testing.T) {
	c := newTestCache(t)
	tenant := id.TenantID(uuid.New())
	list := Target{TenantID: tenant, View: ListView("alerts")}

	before := c.Generation(list)
	c.Invalidate(context.Background(), nil)
	assert.Equal(t, before, c.Generation(list))

	c.Invalidate(context.Background(), []Target{list})
	assert.Equal(t, before+1, c.Generation(list))
}

func TestTarget_Key(t *testing.T) {
	tenant := id.MustTenantID("00000000-0000-0000-0000-000000000001")
	assert.Equal(t, "00000000-0000-0000-0000-000000000001:requests:detail:42",
		Target{TenantID: tenant, View: DetailView("requests", 42)}.Key())
	assert.Equal(t, "00000000-0000-0000-0000-000000000001:admin:facilities",
		Target{TenantID: tenant, View: AdminListView("facilities")}.String())
}
