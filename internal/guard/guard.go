// Package guard decides whether a principal may mutate a tenant's data and,
// when it may, mints the Scope every store write must carry.
package guard

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"civicportal/internal/session/models"
	id "civicportal/pkg/domain"
	dErrors "civicportal/pkg/domain-errors"
)

// Action names a guarded operation as "<resource>.<verb>".
type Action string

const (
	ActionReportIssue Action = "service_requests.report"
	ActionDelete      Action = "records.delete"
	ActionAdminView   Action = "admin.view"
)

// UpdateStatusAction is the status-change action for a record kind.
func UpdateStatusAction(kind string) Action {
	return Action(kind + ".update_status")
}

// CreateAction is the admin creation action for a record kind.
func CreateAction(kind string) Action {
	return Action(kind + ".create")
}

var (
	staffAndAdmin = []models.Role{models.RoleStaff, models.RoleAdmin}
	adminOnly     = []models.Role{models.RoleAdmin}
)

// policy lists the roles allowed per action. Actions not listed are denied.
var policy = map[Action][]models.Role{
	ActionReportIssue: {models.RoleCitizen, models.RoleStaff, models.RoleAdmin},

	UpdateStatusAction("service_requests"):  staffAndAdmin,
	UpdateStatusAction("facilities"):        adminOnly,
	UpdateStatusAction("handbook_articles"): staffAndAdmin,
	UpdateStatusAction("emergency_alerts"):  adminOnly,

	CreateAction("facilities"):        adminOnly,
	CreateAction("handbook_articles"): adminOnly,
	CreateAction("emergency_alerts"):  adminOnly,

	ActionDelete:    adminOnly,
	ActionAdminView: staffAndAdmin,
}

// Reason explains a decision.
type Reason int

const (
	ReasonAllowed Reason = iota
	ReasonUnauthenticated
	ReasonInsufficientRole
	ReasonTenantMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonAllowed:
		return "allowed"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonInsufficientRole:
		return "insufficient_role"
	case ReasonTenantMismatch:
		return "tenant_mismatch"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Decision is the guard's verdict. Only an allowed decision carries a scope.
type Decision struct {
	Allowed bool
	Reason  Reason
	scope   Scope
}

// Scope returns the mutation scope; zero unless Allowed.
func (d Decision) Scope() Scope {
	return d.scope
}

// Err converts a denial into the error returned to the caller. A tenant
// mismatch reads exactly like a missing entity so that other tenants'
// record IDs cannot be probed.
func (d Decision) Err(resource string) error {
	switch d.Reason {
	case ReasonAllowed:
		return nil
	case ReasonUnauthenticated:
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	case ReasonInsufficientRole:
		return dErrors.New(dErrors.CodeForbidden, "insufficient role for this action")
	default:
		return NotFound(resource)
	}
}

// NotFound is the message used for absent entities and cross-tenant targets alike.
func NotFound(resource string) error {
	return dErrors.New(dErrors.CodeNotFound, resource+" not found")
}

// Authorize evaluates principal against action on a record owned by target.
// Checks run in order: authentication, role, tenant. The role check does not
// depend on the target, so a denied role learns nothing about other tenants.
// A zero target (entity absent) is a tenant mismatch.
func Authorize(p models.Principal, action Action, target id.TenantID) Decision {
	if !p.IsAuthenticated() {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if !slices.Contains(policy[action], p.Role) {
		return Decision{Reason: ReasonInsufficientRole}
	}
	if target.IsNil() || target != p.TenantID {
		return Decision{Reason: ReasonTenantMismatch}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed, scope: Scope{tenantID: p.TenantID}}
}

// ErrUnscoped is returned by stores handed a zero Scope.
var ErrUnscoped = errors.New("mutation attempted without tenant scope")

// Scope restricts a store operation to one tenant. It can only be obtained
// from an allowed Decision.
type Scope struct {
	tenantID id.TenantID
}

func (s Scope) TenantID() id.TenantID {
	return s.tenantID
}

func (s Scope) IsZero() bool {
	return s.tenantID.IsNil()
}

// Predicate renders the SQL filter for positional parameter n together with
// its argument.
func (s Scope) Predicate(n int) (string, any) {
	return fmt.Sprintf("tenant_id = $%d", n), uuid.UUID(s.tenantID)
}

// ProvisioningScope returns the scope of tenantID for provisioning code that
// runs outside any request, such as demo seeding. Request paths obtain scopes
// from Authorize only.
func ProvisioningScope(tenantID id.TenantID) Scope {
	return Scope{tenantID: tenantID}
}

// Validate returns ErrUnscoped for a zero scope.
func (s Scope) Validate() error {
	if s.IsZero() {
		return ErrUnscoped
	}
	return nil
}
