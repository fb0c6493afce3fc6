package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableIsTotalOverRoles(t *testing.T) {
	for _, role := range Roles() {
		_, ok := grants[role]
		require.Truef(t, ok, "role %s has no capability set", role)
	}
	require.Len(t, grants, len(Roles()))
}

func TestHasCapabilityMatchesTable(t *testing.T) {
	allCaps := []Capability{
		CapCreateUser, CapViewUsers, CapLockUser, CapUnlockUser,
		CapUnactiveUser, CapApproveVisitor, CapViewAllVisitors,
		CapViewMyEntries, CapViewPendingApprovals, CapCheckoutVisitor,
		CapCreateVisitorEntry, CapViewReports, CapManageMasterData,
	}
	for _, role := range Roles() {
		id := &Identity{EmployeeID: "E1", Role: role}
		for _, cap := range allCaps {
			_, inTable := grants[role][cap]
			require.Equalf(t, inTable, HasCapability(id, cap),
				"role %s capability %s", role, cap)
		}
	}
}

func TestHasCapabilityDeniesOutsiders(t *testing.T) {
	require.False(t, HasCapability(nil, CapViewUsers))
	require.False(t, HasCapability(&Identity{Role: "INTERN"}, CapViewUsers))
	require.False(t, HasCapability(&Identity{}, CapViewUsers))
	require.False(t, RoleHasCapability("", CapViewUsers))
}

func TestSecurityScenario(t *testing.T) {
	sec := &Identity{EmployeeID: "S1", Role: RoleSecurity}
	require.False(t, HasCapability(sec, CapCreateUser))
	require.False(t, HasCapability(sec, CapViewUsers))
	// SECURITY reaches the approvals screen through VIEW_PENDING_APPROVALS,
	// not APPROVE_VISITOR.
	require.False(t, HasCapability(sec, CapApproveVisitor))
	require.True(t, HasCapability(sec, CapViewPendingApprovals))
	require.True(t, HasCapability(sec, CapCheckoutVisitor))
	require.True(t, HasCapability(sec, CapCreateVisitorEntry))
}

func TestElevated(t *testing.T) {
	require.True(t, Elevated(RoleAdmin))
	require.True(t, Elevated(RoleHR))
	require.False(t, Elevated(RoleSecurity))
	require.False(t, Elevated(RoleUser))
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	caps := Capabilities(RoleUser)
	require.ElementsMatch(t, []Capability{CapApproveVisitor, CapViewMyEntries}, caps)
	caps[0] = "TAMPERED"
	require.True(t, HasCapability(&Identity{Role: RoleUser}, CapApproveVisitor))
}
