package visitors

import (
	"fmt"
	"time"

	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Approval is the single-letter workflow state of a visitor entry.
type Approval string

const (
	ApprovalPending  Approval = "P"
	ApprovalApproved Approval = "A"
	ApprovalRejected Approval = "R"
)

// maxRejectionReasonLen bounds the free-text rejection reason, in runes.
const maxRejectionReasonLen = 300

// FellowVisitor is one accompanying visitor.
type FellowVisitor struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

// Entry represents a visitor entry for its whole lifecycle. CheckedOut is not
// a stored state letter; an entry is checked out when OutTime is set, which
// is only reachable from Approved and happens at most once.
type Entry struct {
	CardNo          string          `json:"card_no"`
	Name            string          `json:"name"`
	Mobile          string          `json:"mobile"`
	Email           string          `json:"email,omitempty"`
	IDType          string          `json:"id_type"`
	IDNumber        string          `json:"id_number"`
	Representing    string          `json:"representing,omitempty"`
	Purpose         string          `json:"purpose"`
	Category        string          `json:"visitor_category"`
	HostEmployeeID  string          `json:"emp_id"`
	HostName        string          `json:"emp_name"`
	HostMobile      string          `json:"emp_mobile_no"`
	FellowCount     int             `json:"fellow_visitors"`
	FellowVisitors  []FellowVisitor `json:"fellow_visitors_details,omitempty"`
	Approval        Approval        `json:"approve"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	EntryAt         time.Time       `json:"entry_date"`
	ApprovedAt      *time.Time      `json:"approve_dt,omitempty"`
	OutTime         *time.Time      `json:"out_time,omitempty"`
	CreatedBy       string          `json:"created_by,omitempty"`
}

// CheckedOut reports whether the entry has left the premises.
func (e Entry) CheckedOut() bool {
	return e.OutTime != nil
}

// Workflow failure details, surfaced verbatim to clients.
var (
	ErrEntryNotFound    = fmt.Errorf("%w: Visitor entry not found", httpx.ErrNotFound)
	ErrAlreadyProcessed = fmt.Errorf("%w: Entry already processed", httpx.ErrConflict)
	ErrNotInside        = fmt.Errorf("%w: No active visitor found with that card number", httpx.ErrNotFound)
)

// decide is the transition function for the approval step. Only Pending
// entries can move, and only to Approved or Rejected.
func decide(current Approval, target Approval) error {
	if target != ApprovalApproved && target != ApprovalRejected {
		return fmt.Errorf("%w: Invalid action. Use 'A' for approve or 'R' for reject", httpx.ErrValidation)
	}
	if current != ApprovalPending {
		return ErrAlreadyProcessed
	}
	return nil
}

// checkoutGuard is the transition function for the checkout step. Approved
// and not yet checked out is the only state it accepts, which makes the
// transition exactly-once.
func checkoutGuard(e Entry) error {
	if e.Approval != ApprovalApproved || e.CheckedOut() {
		return ErrNotInside
	}
	return nil
}
