package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

type memoryCredentialRepo struct {
	creds map[string]*Credential
}

func newMemoryCredentialRepo() *memoryCredentialRepo {
	return &memoryCredentialRepo{creds: make(map[string]*Credential)}
}

func (r *memoryCredentialRepo) FindByEmployeeID(ctx context.Context, empid string) (*Credential, error) {
	c, ok := r.creds[empid]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memoryCredentialRepo) RecordFailedAttempt(ctx context.Context, id int64, attempts int, lock bool) error {
	for _, c := range r.creds {
		if c.ID == id {
			c.FailedAttempts = attempts
			if lock {
				c.Status = authz.StatusLocked
			}
			return nil
		}
	}
	return httpx.ErrNotFound
}

func (r *memoryCredentialRepo) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	for _, c := range r.creds {
		if c.ID == id {
			c.FailedAttempts = 0
			c.LastLogin = &at
			return nil
		}
	}
	return httpx.ErrNotFound
}

func seedCredential(t *testing.T, repo *memoryCredentialRepo, empid, password string, status authz.Status) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo.creds[empid] = &Credential{
		ID:           int64(len(repo.creds) + 1),
		EmployeeID:   empid,
		Name:         "Account " + empid,
		Role:         authz.RoleUser,
		Status:       status,
		PasswordHash: string(hash),
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newMemoryCredentialRepo()
	seedCredential(t, repo, "EMP01", "hunter22", authz.StatusActive)
	repo.creds["EMP01"].FailedAttempts = 3
	svc := NewService(repo)

	id, err := svc.Authenticate(context.Background(), "  emp01 ", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "EMP01", id.EmployeeID)
	require.Equal(t, authz.RoleUser, id.Role)
	require.Equal(t, authz.StatusActive, id.Status)

	// A success resets the failure counter and stamps the last login.
	require.Zero(t, repo.creds["EMP01"].FailedAttempts)
	require.NotNil(t, repo.creds["EMP01"].LastLogin)
}

func TestAuthenticateUnknownEmployee(t *testing.T) {
	svc := NewService(newMemoryCredentialRepo())
	_, err := svc.Authenticate(context.Background(), "GHOST", "whatever")
	require.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestAuthenticateRejectsLockedAndInactive(t *testing.T) {
	repo := newMemoryCredentialRepo()
	seedCredential(t, repo, "LOCKED", "hunter22", authz.StatusLocked)
	seedCredential(t, repo, "GONE", "hunter22", authz.StatusInactive)
	svc := NewService(repo)

	_, err := svc.Authenticate(context.Background(), "LOCKED", "hunter22")
	require.ErrorIs(t, err, ErrAccountUnusable)

	_, err = svc.Authenticate(context.Background(), "GONE", "hunter22")
	require.ErrorIs(t, err, ErrAccountUnusable)
}

func TestAuthenticateLocksAfterFiveFailures(t *testing.T) {
	repo := newMemoryCredentialRepo()
	seedCredential(t, repo, "EMP01", "hunter22", authz.StatusActive)
	svc := NewService(repo)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := svc.Authenticate(ctx, "EMP01", "wrong")
		require.ErrorIs(t, err, ErrIncorrectPassword)
		require.Equal(t, i, repo.creds["EMP01"].FailedAttempts)
		require.Equal(t, authz.StatusActive, repo.creds["EMP01"].Status)
	}

	_, err := svc.Authenticate(ctx, "EMP01", "wrong")
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.Equal(t, authz.StatusLocked, repo.creds["EMP01"].Status)

	// Even the right password is refused once locked.
	_, err = svc.Authenticate(ctx, "EMP01", "hunter22")
	require.ErrorIs(t, err, ErrAccountUnusable)
}
