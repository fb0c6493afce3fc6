// Package views maps a resolved capability set to the workflow views the
// shell offers. It carries no logic of its own; the capability table decides
// everything.
package views

import (
	"github.com/gatehouse-vms/gatehouse/internal/authz"
)

// View names one selectable workflow screen.
type View string

const (
	ViewNewEntry    View = "new-entry"
	ViewApprovals   View = "approvals"
	ViewMyEntries   View = "my-entries"
	ViewAllVisitors View = "all-visitors"
	ViewCheckout    View = "checkout"
	ViewUserList    View = "user-list"
	ViewCreateUser  View = "create-user"
	ViewReports     View = "reports"
)

// routes binds capabilities to views in display order. Row-level capabilities
// (LOCK_USER, UNLOCK_USER, UNACTIVE_USER, MANAGE_MASTER_DATA) gate buttons
// inside other views and never produce an entry of their own. APPROVE_VISITOR
// and VIEW_PENDING_APPROVALS both open the approvals view: one can act there,
// the other can only watch.
var routes = []struct {
	cap  authz.Capability
	view View
}{
	{authz.CapCreateVisitorEntry, ViewNewEntry},
	{authz.CapApproveVisitor, ViewApprovals},
	{authz.CapViewPendingApprovals, ViewApprovals},
	{authz.CapViewMyEntries, ViewMyEntries},
	{authz.CapViewAllVisitors, ViewAllVisitors},
	{authz.CapCheckoutVisitor, ViewCheckout},
	{authz.CapViewUsers, ViewUserList},
	{authz.CapCreateUser, ViewCreateUser},
	{authz.CapViewReports, ViewReports},
}

// For returns the views selectable by the identity, deduplicated, in display
// order. A nil identity gets nothing.
func For(id *authz.Identity) []View {
	var out []View
	seen := make(map[View]struct{})
	for _, r := range routes {
		if !authz.HasCapability(id, r.cap) {
			continue
		}
		if _, ok := seen[r.view]; ok {
			continue
		}
		seen[r.view] = struct{}{}
		out = append(out, r.view)
	}
	return out
}

// Allowed reports whether the identity may open the view.
func Allowed(id *authz.Identity, view View) bool {
	for _, v := range For(id) {
		if v == view {
			return true
		}
	}
	return false
}

// Default picks the view the shell lands on after login: the first one the
// identity can open.
func Default(id *authz.Identity) (View, bool) {
	views := For(id)
	if len(views) == 0 {
		return "", false
	}
	return views[0], true
}
