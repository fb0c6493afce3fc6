package auth

import (
	"time"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
)

// maxFailedAttempts is the consecutive-failure allowance before an account is
// locked server-side.
const maxFailedAttempts = 5

// Credential is the slice of an account the login flow needs.
type Credential struct {
	ID             int64
	EmployeeID     string
	Name           string
	Role           authz.Role
	Status         authz.Status
	PasswordHash   string
	FailedAttempts int
	LastLogin      *time.Time
}
