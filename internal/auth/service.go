package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Login failure details, surfaced verbatim to clients.
var (
	ErrEmployeeNotFound  = fmt.Errorf("%w: Employee ID not found", httpx.ErrUnauthorized)
	ErrAccountUnusable   = fmt.Errorf("%w: Account locked or inactive", httpx.ErrUnauthorized)
	ErrIncorrectPassword = fmt.Errorf("%w: Incorrect password", httpx.ErrUnauthorized)
	ErrAttemptsExhausted = fmt.Errorf("%w: Account locked due to failed attempts", httpx.ErrUnauthorized)
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates employee ID and password. Five consecutive failures
// lock the account; a success resets the counter and stamps the last login.
func (s *Service) Authenticate(ctx context.Context, empid, password string) (*authz.Identity, error) {
	empid = strings.ToUpper(strings.TrimSpace(empid))
	cred, err := s.repo.FindByEmployeeID(ctx, empid)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}

	if cred.Status == authz.StatusLocked || cred.Status == authz.StatusInactive {
		return nil, ErrAccountUnusable
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		attempts := cred.FailedAttempts + 1
		locked := attempts >= maxFailedAttempts
		if err := s.repo.RecordFailedAttempt(ctx, cred.ID, attempts, locked); err != nil {
			return nil, err
		}
		if locked {
			return nil, ErrAttemptsExhausted
		}
		return nil, ErrIncorrectPassword
	}

	if err := s.repo.RecordLogin(ctx, cred.ID, time.Now()); err != nil {
		return nil, err
	}

	return &authz.Identity{
		EmployeeID:  cred.EmployeeID,
		DisplayName: cred.Name,
		Role:        cred.Role,
		Status:      authz.StatusActive,
	}, nil
}
