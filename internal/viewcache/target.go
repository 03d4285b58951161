// Package viewcache caches rendered public views per tenant and drops them
// when a mutation reports them stale.
package viewcache

import (
	"context"
	"fmt"

	id "civicportal/pkg/domain"
)

// Target names one cached view of one tenant.
type Target struct {
	TenantID id.TenantID `json:"tenant_id"`
	View     string      `json:"view"`
}

// Key is the cache key "<tenant>:<view>".
func (t Target) Key() string {
	return t.TenantID.String() + ":" + t.View
}

func (t Target) String() string {
	return t.Key()
}

// Well-known views. Record-specific views are built with ListView and DetailView.
const (
	ViewMap       = "requests:map"
	ViewDashboard = "admin:dashboard"
)

// ListView is the public list of a route such as "facilities".
func ListView(route string) string {
	return route + ":list"
}

// DetailView is the public detail page of one record.
func DetailView(route string, recordID id.RecordID) string {
	return fmt.Sprintf("%s:detail:%d", route, recordID)
}

// AdminListView is the admin list of a record kind.
func AdminListView(kind string) string {
	return "admin:" + kind
}

// Invalidator drops stale views. Implementations must not block the caller
// on remote delivery.
type Invalidator interface {
	Invalidate(ctx context.Context, targets []Target)
}
