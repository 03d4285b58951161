package models

import (
	"slices"

	"civicportal/internal/viewcache"
	id "civicportal/pkg/domain"
)

// Kind is a tenant-scoped record table.
type Kind string

const (
	KindServiceRequests  Kind = "service_requests"
	KindFacilities       Kind = "facilities"
	KindHandbookArticles Kind = "handbook_articles"
	KindEmergencyAlerts  Kind = "emergency_alerts"
)

// Status is a record lifecycle value. Valid values depend on the kind.
type Status string

type kindSpec struct {
	resource string
	route    string
	statuses []Status
	initial  Status
	public   []Status
	located  bool
}

var kinds = map[Kind]kindSpec{
	KindServiceRequests: {
		resource: "service request",
		route:    "requests",
		statuses: []Status{"submitted", "acknowledged", "in_progress", "closed", "rejected"},
		initial:  "submitted",
		public:   []Status{"submitted", "acknowledged", "in_progress", "closed", "rejected"},
		located:  true,
	},
	KindFacilities: {
		resource: "facility",
		route:    "facilities",
		statuses: []Status{"open", "temporarily_closed", "closed"},
		initial:  "open",
		public:   []Status{"open", "temporarily_closed", "closed"},
		located:  true,
	},
	KindHandbookArticles: {
		resource: "handbook article",
		route:    "handbook",
		statuses: []Status{"draft", "published", "archived"},
		initial:  "draft",
		public:   []Status{"published"},
	},
	KindEmergencyAlerts: {
		resource: "emergency alert",
		route:    "alerts",
		statuses: []Status{"draft", "active", "resolved"},
		initial:  "active",
		public:   []Status{"active"},
	},
}

// Kinds lists every record kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindServiceRequests, KindFacilities, KindHandbookArticles, KindEmergencyAlerts}
}

// ParseKind accepts the table name of a record kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kinds[k]
	return k, ok
}

// KindForRoute maps a public route segment ("alerts") back to its kind.
func KindForRoute(route string) (Kind, bool) {
	for k, spec := range kinds {
		if spec.route == route {
			return k, true
		}
	}
	return "", false
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Resource is the human name used in error messages.
func (k Kind) Resource() string {
	if spec, ok := kinds[k]; ok {
		return spec.resource
	}
	return "record"
}

func (k Kind) Route() string {
	return kinds[k].route
}

func (k Kind) Statuses() []Status {
	return slices.Clone(kinds[k].statuses)
}

func (k Kind) InitialStatus() Status {
	return kinds[k].initial
}

func (k Kind) PublicStatuses() []Status {
	return slices.Clone(kinds[k].public)
}

// Located kinds carry coordinates and appear on maps.
func (k Kind) Located() bool {
	return kinds[k].located
}

func (k Kind) IsValidStatus(s Status) bool {
	return slices.Contains(kinds[k].statuses, s)
}

func (k Kind) IsPublic(s Status) bool {
	return slices.Contains(kinds[k].public, s)
}

// ViewTargets lists the cached views that go stale when a record of this
// kind changes: its public list and detail, the admin list and dashboard,
// and the request map for service requests.
func (k Kind) ViewTargets(tenantID id.TenantID, recordID id.RecordID) []viewcache.Target {
	route := k.Route()
	targets := []viewcache.Target{
		{TenantID: tenantID, View: viewcache.ListView(route)},
		{TenantID: tenantID, View: viewcache.DetailView(route, recordID)},
		{TenantID: tenantID, View: viewcache.AdminListView(string(k))},
		{TenantID: tenantID, View: viewcache.ViewDashboard},
	}
	if k == KindServiceRequests {
		targets = append(targets, viewcache.Target{TenantID: tenantID, View: viewcache.ViewMap})
	}
	return targets
}
