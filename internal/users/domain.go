package users

import (
	"context"
	"fmt"
	"time"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Account represents a managed user account.
type Account struct {
	ID             int64        `json:"-"`
	EmployeeID     string       `json:"empid"`
	Name           string       `json:"empname"`
	Mobile         string       `json:"emp_mobile_no"`
	Role           authz.Role   `json:"user_role"`
	Status         authz.Status `json:"status"`
	FailedAttempts int          `json:"failed_attempts"`
	LastLogin      *time.Time   `json:"last_login,omitempty"`
	CreatedBy      string       `json:"created_by,omitempty"`
}

// LifecycleAction enumerates the transitions this service exposes. Moving an
// account into or out of Inactive is deliberately absent; that belongs to an
// administrative back-office process, not this API.
type LifecycleAction string

const (
	ActionLock   LifecycleAction = "LOCK"
	ActionUnlock LifecycleAction = "UNLOCK"
)

// Transition failure details, surfaced verbatim to clients.
var (
	ErrAlreadyLocked = fmt.Errorf("%w: Account is already locked", httpx.ErrConflict)
	ErrAlreadyActive = fmt.Errorf("%w: Account is already active", httpx.ErrConflict)
)

// nextStatus is the total transition function over the account lifecycle.
// Any pair not enumerated here is rejected with a typed error rather than
// falling through to ad hoc branching.
func nextStatus(current authz.Status, action LifecycleAction) (authz.Status, error) {
	switch action {
	case ActionLock:
		switch current {
		case authz.StatusActive:
			return authz.StatusLocked, nil
		case authz.StatusLocked:
			return "", ErrAlreadyLocked
		default:
			return "", fmt.Errorf("%w: Account is inactive", httpx.ErrConflict)
		}
	case ActionUnlock:
		switch current {
		case authz.StatusLocked, authz.StatusInactive:
			return authz.StatusActive, nil
		default:
			return "", ErrAlreadyActive
		}
	default:
		return "", fmt.Errorf("%w: unknown lifecycle action %q", httpx.ErrValidation, action)
	}
}

// HostMatch is the advisory result of a host lookup by mobile number.
type HostMatch struct {
	Found      bool   `json:"found"`
	EmployeeID string `json:"empid,omitempty"`
	Name       string `json:"empname,omitempty"`
}

// HostDirectory resolves host employees for visitor entries.
type HostDirectory interface {
	LookupHostByMobile(ctx context.Context, mobile string) (HostMatch, error)
}
