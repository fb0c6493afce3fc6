package views

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
)

func identity(role authz.Role) *authz.Identity {
	return &authz.Identity{EmployeeID: "E1", Role: role}
}

func TestSecurityViews(t *testing.T) {
	views := For(identity(authz.RoleSecurity))
	require.Equal(t, []View{ViewNewEntry, ViewApprovals, ViewAllVisitors, ViewCheckout, ViewReports}, views)

	// The approvals view is reachable through VIEW_PENDING_APPROVALS even
	// though SECURITY cannot decide anything there.
	require.True(t, Allowed(identity(authz.RoleSecurity), ViewApprovals))
	require.False(t, Allowed(identity(authz.RoleSecurity), ViewUserList))
}

func TestUserViews(t *testing.T) {
	views := For(identity(authz.RoleUser))
	require.Equal(t, []View{ViewApprovals, ViewMyEntries}, views)
}

func TestAdminHasNoMyEntriesView(t *testing.T) {
	views := For(identity(authz.RoleAdmin))
	require.Contains(t, views, ViewUserList)
	require.Contains(t, views, ViewCreateUser)
	require.Contains(t, views, ViewReports)
	require.NotContains(t, views, ViewMyEntries)
}

func TestApprovalsViewNotDuplicated(t *testing.T) {
	// HR holds APPROVE_VISITOR only; a hypothetical role with both routes
	// still gets the view once.
	for _, role := range authz.Roles() {
		seen := make(map[View]int)
		for _, v := range For(identity(role)) {
			seen[v]++
		}
		for view, count := range seen {
			require.Equal(t, 1, count, "role %s view %s duplicated", role, view)
		}
	}
}

func TestNilAndUnknownIdentities(t *testing.T) {
	require.Empty(t, For(nil))
	require.Empty(t, For(&authz.Identity{EmployeeID: "X", Role: "WIZARD"}))

	_, ok := Default(nil)
	require.False(t, ok)

	view, ok := Default(identity(authz.RoleUser))
	require.True(t, ok)
	require.Equal(t, ViewApprovals, view)
}
