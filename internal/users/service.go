package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

// Service handles managed-account business logic, including the lock/unlock
// lifecycle and its master-password step-up.
type Service struct {
	repo               RepositoryPort
	masterPasswordHash string
}

// NewService builds a Service instance. masterPasswordHash is the bcrypt hash
// of the step-up credential for elevated targets.
func NewService(repo RepositoryPort, masterPasswordHash string) *Service {
	return &Service{repo: repo, masterPasswordHash: masterPasswordHash}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// CreateParams carries the fields for a new account.
type CreateParams struct {
	EmployeeID string
	Name       string
	Mobile     string
	Password   string
	Role       authz.Role
}

// Create registers a new account in Active state.
func (s *Service) Create(ctx context.Context, p CreateParams, createdBy string) error {
	p.EmployeeID = strings.ToUpper(strings.TrimSpace(p.EmployeeID))
	p.Name = strings.TrimSpace(p.Name)
	if p.EmployeeID == "" || p.Name == "" {
		return fmt.Errorf("%w: Employee ID and name are required", httpx.ErrValidation)
	}
	if !authz.ValidRole(p.Role) {
		return fmt.Errorf("%w: Invalid user role", httpx.ErrValidation)
	}
	if !mobilePattern.MatchString(p.Mobile) {
		return fmt.Errorf("%w: Mobile number must be 10 digits", httpx.ErrValidation)
	}
	if startsWithDigit(p.Name) {
		return fmt.Errorf("%w: Name should not start with a number", httpx.ErrValidation)
	}
	if len(p.Password) < 6 {
		return fmt.Errorf("%w: Password must be at least 6 characters long", httpx.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, Account{
		EmployeeID: p.EmployeeID,
		Name:       p.Name,
		Mobile:     p.Mobile,
		Role:       p.Role,
		CreatedBy:  createdBy,
	}, string(hash))
}

// Lock moves an account from Active to Locked. Elevated targets (ADMIN, HR)
// require the master password; the server check is authoritative regardless
// of whatever gate the client applied.
func (s *Service) Lock(ctx context.Context, empid, masterPassword, actor string) (*Account, error) {
	return s.transition(ctx, empid, masterPassword, actor, ActionLock)
}

// Unlock moves an account back to Active and clears its failure counter.
func (s *Service) Unlock(ctx context.Context, empid, masterPassword, actor string) (*Account, error) {
	return s.transition(ctx, empid, masterPassword, actor, ActionUnlock)
}

func (s *Service) transition(ctx context.Context, empid, masterPassword, actor string, action LifecycleAction) (*Account, error) {
	empid = strings.ToUpper(strings.TrimSpace(empid))
	acct, err := s.repo.Get(ctx, empid)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: Employee ID not found", httpx.ErrNotFound)
		}
		return nil, err
	}

	next, err := nextStatus(acct.Status, action)
	if err != nil {
		return nil, err
	}

	if authz.Elevated(acct.Role) {
		if masterPassword == "" {
			return nil, fmt.Errorf("%w: Master password required to modify ADMIN or HR", httpx.ErrUnauthorized)
		}
		if bcrypt.CompareHashAndPassword([]byte(s.masterPasswordHash), []byte(masterPassword)) != nil {
			return nil, fmt.Errorf("%w: Invalid master password", httpx.ErrUnauthorized)
		}
	}

	resetAttempts := action == ActionUnlock
	if err := s.repo.SetStatus(ctx, empid, next, actor, resetAttempts); err != nil {
		return nil, err
	}
	acct.Status = next
	if resetAttempts {
		acct.FailedAttempts = 0
	}
	return acct, nil
}

// LookupHostByMobile resolves a host employee by mobile number. The result is
// advisory; callers display it but do not block on it.
func (s *Service) LookupHostByMobile(ctx context.Context, mobile string) (HostMatch, error) {
	if !mobilePattern.MatchString(mobile) {
		return HostMatch{}, fmt.Errorf("%w: Mobile number must be 10 digits", httpx.ErrValidation)
	}
	acct, err := s.repo.FindActiveByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return HostMatch{Found: false}, nil
		}
		return HostMatch{}, err
	}
	return HostMatch{Found: true, EmployeeID: acct.EmployeeID, Name: acct.Name}, nil
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}
