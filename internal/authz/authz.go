// Package authz holds the static role/capability model shared by the API
// server and the client core. The table is fixed at compile time and is only
// reachable through the resolver functions.
package authz

// Role is a named bundle of capabilities assigned to an identity. It is
// immutable for the lifetime of a session.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleHR       Role = "HR"
	RoleSecurity Role = "SECURITY"
	RoleUser     Role = "USER"
)

// Capability is a single permission atom gating one action.
type Capability string

const (
	CapCreateUser           Capability = "CREATE_USER"
	CapViewUsers            Capability = "VIEW_USERS"
	CapLockUser             Capability = "LOCK_USER"
	CapUnlockUser           Capability = "UNLOCK_USER"
	CapUnactiveUser         Capability = "UNACTIVE_USER"
	CapApproveVisitor       Capability = "APPROVE_VISITOR"
	CapViewAllVisitors      Capability = "VIEW_ALL_VISITORS"
	CapViewMyEntries        Capability = "VIEW_MY_ENTRIES"
	CapViewPendingApprovals Capability = "VIEW_PENDING_APPROVALS"
	CapCheckoutVisitor      Capability = "CHECKOUT_VISITOR"
	CapCreateVisitorEntry   Capability = "CREATE_VISITOR_ENTRY"
	CapViewReports          Capability = "VIEW_REPORTS"
	CapManageMasterData     Capability = "MANAGE_MASTER_DATA"
)

// Status is the single-letter account state used across the system.
type Status string

const (
	StatusActive   Status = "A"
	StatusLocked   Status = "L"
	StatusInactive Status = "I"
)

// Identity describes the authenticated actor as returned by the login
// collaborator and restored from persisted state.
type Identity struct {
	EmployeeID  string `json:"empid"`
	DisplayName string `json:"empname"`
	Role        Role   `json:"user_role"`
	Status      Status `json:"status,omitempty"`
}

// grants is the single source of truth for every permission gate. Every
// declared role maps to some capability set; the table is never mutated.
var grants = map[Role]map[Capability]struct{}{
	RoleAdmin: capSet(
		CapCreateUser, CapViewUsers, CapUnlockUser, CapApproveVisitor,
		CapViewAllVisitors, CapCheckoutVisitor, CapViewReports,
		CapCreateVisitorEntry, CapManageMasterData, CapLockUser,
	),
	RoleHR: capSet(
		CapCreateUser, CapViewUsers, CapUnlockUser, CapLockUser,
		CapUnactiveUser, CapApproveVisitor, CapViewMyEntries,
	),
	RoleSecurity: capSet(
		CapCreateVisitorEntry, CapViewAllVisitors, CapCheckoutVisitor,
		CapViewPendingApprovals, CapViewReports,
	),
	RoleUser: capSet(CapApproveVisitor, CapViewMyEntries),
}

func capSet(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// HasCapability reports whether the identity's role grants the capability.
// A nil identity or an unknown role resolves to false, never an error.
func HasCapability(id *Identity, cap Capability) bool {
	if id == nil {
		return false
	}
	return RoleHasCapability(id.Role, cap)
}

// RoleHasCapability is the identity-free form used by the server middleware.
func RoleHasCapability(role Role, cap Capability) bool {
	set, ok := grants[role]
	if !ok {
		return false
	}
	_, ok = set[cap]
	return ok
}

// ValidRole reports whether the role is one of the declared values.
func ValidRole(role Role) bool {
	_, ok := grants[role]
	return ok
}

// Roles returns the declared roles in a stable order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleHR, RoleSecurity, RoleUser}
}

// Capabilities returns a copy of the role's capability set.
func Capabilities(role Role) []Capability {
	set := grants[role]
	caps := make([]Capability, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	return caps
}

// Elevated reports whether mutating an account with this role requires the
// master password step-up.
func Elevated(role Role) bool {
	return role == RoleAdmin || role == RoleHR
}
