package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

type memoryAccountRepo struct {
	accounts map[string]*Account
	hashes   map[string]string
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{
		accounts: make(map[string]*Account),
		hashes:   make(map[string]string),
	}
}

func (r *memoryAccountRepo) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (r *memoryAccountRepo) Get(ctx context.Context, empid string) (*Account, error) {
	a, ok := r.accounts[empid]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memoryAccountRepo) Create(ctx context.Context, acct Account, passwordHash string) error {
	if _, ok := r.accounts[acct.EmployeeID]; ok {
		return httpx.ErrDuplicate
	}
	acct.Status = authz.StatusActive
	r.accounts[acct.EmployeeID] = &acct
	r.hashes[acct.EmployeeID] = passwordHash
	return nil
}

func (r *memoryAccountRepo) SetStatus(ctx context.Context, empid string, status authz.Status, modifyBy string, resetAttempts bool) error {
	a, ok := r.accounts[empid]
	if !ok {
		return httpx.ErrNotFound
	}
	a.Status = status
	if resetAttempts {
		a.FailedAttempts = 0
	}
	return nil
}

func (r *memoryAccountRepo) FindActiveByMobile(ctx context.Context, mobile string) (*Account, error) {
	for _, a := range r.accounts {
		if a.Mobile == mobile && a.Status == authz.StatusActive {
			copied := *a
			return &copied, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *memoryAccountRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("step-up-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newMemoryAccountRepo()
	return NewService(repo, string(hash)), repo
}

func seedAccount(repo *memoryAccountRepo, empid string, role authz.Role, status authz.Status) {
	repo.accounts[empid] = &Account{
		EmployeeID: empid,
		Name:       "Account " + empid,
		Mobile:     "9876543210",
		Role:       role,
		Status:     status,
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params CreateParams
		want   string
	}{
		{"short mobile", CreateParams{EmployeeID: "E1", Name: "Pat", Mobile: "12345", Password: "secret1", Role: authz.RoleUser}, "10 digits"},
		{"short password", CreateParams{EmployeeID: "E1", Name: "Pat", Mobile: "1234567890", Password: "abc", Role: authz.RoleUser}, "at least 6"},
		{"digit-leading name", CreateParams{EmployeeID: "E1", Name: "1Pat", Mobile: "1234567890", Password: "secret1", Role: authz.RoleUser}, "start with a number"},
		{"unknown role", CreateParams{EmployeeID: "E1", Name: "Pat", Mobile: "1234567890", Password: "secret1", Role: "INTERN"}, "Invalid user role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Create(ctx, tc.params, "ADMIN1")
			require.ErrorIs(t, err, httpx.ErrValidation)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCreateUppercasesEmployeeID(t *testing.T) {
	svc, repo := newTestService(t)
	err := svc.Create(context.Background(), CreateParams{
		EmployeeID: "emp42", Name: "Pat", Mobile: "1234567890",
		Password: "secret1", Role: authz.RoleUser,
	}, "ADMIN1")
	require.NoError(t, err)
	_, ok := repo.accounts["EMP42"]
	require.True(t, ok)
}

func TestLockPlainTargetNeedsNoMasterPassword(t *testing.T) {
	svc, repo := newTestService(t)
	seedAccount(repo, "SEC1", authz.RoleSecurity, authz.StatusActive)

	acct, err := svc.Lock(context.Background(), "sec1", "", "HR1")
	require.NoError(t, err)
	require.Equal(t, authz.StatusLocked, acct.Status)
	require.Equal(t, authz.StatusLocked, repo.accounts["SEC1"].Status)
}

func TestLockElevatedTargetRequiresMasterPassword(t *testing.T) {
	svc, repo := newTestService(t)
	seedAccount(repo, "HR9", authz.RoleHR, authz.StatusActive)

	_, err := svc.Lock(context.Background(), "HR9", "", "ADMIN1")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
	require.Equal(t, authz.StatusActive, repo.accounts["HR9"].Status)

	_, err = svc.Lock(context.Background(), "HR9", "wrong", "ADMIN1")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
	require.Contains(t, err.Error(), "Invalid master password")

	acct, err := svc.Lock(context.Background(), "HR9", "step-up-secret", "ADMIN1")
	require.NoError(t, err)
	require.Equal(t, authz.StatusLocked, acct.Status)
}

func TestLockRejectsNonActiveStates(t *testing.T) {
	svc, repo := newTestService(t)
	seedAccount(repo, "U1", authz.RoleUser, authz.StatusLocked)
	seedAccount(repo, "U2", authz.RoleUser, authz.StatusInactive)

	_, err := svc.Lock(context.Background(), "U1", "", "HR1")
	require.ErrorIs(t, err, ErrAlreadyLocked)

	_, err = svc.Lock(context.Background(), "U2", "", "HR1")
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestUnlockResetsFailedAttempts(t *testing.T) {
	svc, repo := newTestService(t)
	seedAccount(repo, "U1", authz.RoleUser, authz.StatusLocked)
	repo.accounts["U1"].FailedAttempts = 5

	acct, err := svc.Unlock(context.Background(), "U1", "", "HR1")
	require.NoError(t, err)
	require.Equal(t, authz.StatusActive, acct.Status)
	require.Zero(t, repo.accounts["U1"].FailedAttempts)

	_, err = svc.Unlock(context.Background(), "U1", "", "HR1")
	require.ErrorIs(t, err, ErrAlreadyActive)
}

func TestTransitionUnknownTarget(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Lock(context.Background(), "GHOST", "", "HR1")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestHostLookup(t *testing.T) {
	svc, repo := newTestService(t)
	seedAccount(repo, "H1", authz.RoleUser, authz.StatusActive)
	seedAccount(repo, "H2", authz.RoleUser, authz.StatusLocked)
	repo.accounts["H2"].Mobile = "1112223334"

	match, err := svc.LookupHostByMobile(context.Background(), "9876543210")
	require.NoError(t, err)
	require.True(t, match.Found)
	require.Equal(t, "H1", match.EmployeeID)

	// Locked hosts do not resolve.
	match, err = svc.LookupHostByMobile(context.Background(), "1112223334")
	require.NoError(t, err)
	require.False(t, match.Found)

	_, err = svc.LookupHostByMobile(context.Background(), "12345")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestNextStatusIsTotal(t *testing.T) {
	for _, status := range []authz.Status{authz.StatusActive, authz.StatusLocked, authz.StatusInactive} {
		for _, action := range []LifecycleAction{ActionLock, ActionUnlock} {
			next, err := nextStatus(status, action)
			if err == nil {
				require.NotEmpty(t, next)
			} else {
				require.True(t, strings.Contains(err.Error(), "Account") || strings.Contains(err.Error(), "lifecycle"))
			}
		}
	}
	_, err := nextStatus(authz.StatusActive, "PROMOTE")
	require.ErrorIs(t, err, httpx.ErrValidation)
}
