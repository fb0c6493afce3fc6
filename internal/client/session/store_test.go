package session

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/client/api"
)

type fakeCollaborator struct {
	loginResult *api.LoginResult
	loginErr    error
	loginCalls  int
	logoutCalls int
	token       string
}

func (f *fakeCollaborator) Login(ctx context.Context, empid, password string) (*api.LoginResult, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeCollaborator) Logout(ctx context.Context) error {
	f.logoutCalls++
	return nil
}

func (f *fakeCollaborator) SetToken(token string) {
	f.token = token
}

func goodLogin() *api.LoginResult {
	return &api.LoginResult{
		AccessToken: "token-123",
		TokenType:   "bearer",
		UserInfo: authz.Identity{
			EmployeeID:  "EMP01",
			DisplayName: "Pat",
			Role:        authz.RoleSecurity,
			Status:      authz.StatusActive,
		},
	}
}

func newTestManager(collab *fakeCollaborator) (*Manager, *MemoryStore) {
	store := &MemoryStore{}
	return NewManager(collab, store, slog.Default()), store
}

func TestLoginInstallsSession(t *testing.T) {
	collab := &fakeCollaborator{loginResult: goodLogin()}
	mgr, store := newTestManager(collab)

	before := mgr.Epoch()
	id, err := mgr.Login(context.Background(), "EMP01", "secret")
	require.NoError(t, err)
	require.Equal(t, "EMP01", id.EmployeeID)
	require.Equal(t, "token-123", collab.token)
	require.NotEqual(t, before, mgr.Epoch())
	require.Equal(t, maxLoginAttempts, mgr.AttemptsLeft())

	cred, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.Equal(t, "token-123", cred.Token)
	require.Equal(t, authz.RoleSecurity, cred.Identity.Role)
}

func TestLoginThrottlesAfterFiveRejections(t *testing.T) {
	collab := &fakeCollaborator{loginErr: &api.Error{Status: http.StatusUnauthorized, Detail: "Incorrect password"}}
	mgr, _ := newTestManager(collab)
	ctx := context.Background()

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := mgr.Login(ctx, "EMP01", "wrong")
		require.EqualError(t, err, "Incorrect password")
	}
	require.Equal(t, maxLoginAttempts, collab.loginCalls)
	require.Zero(t, mgr.AttemptsLeft())

	// The sixth attempt never reaches the collaborator.
	_, err := mgr.Login(ctx, "EMP01", "wrong")
	require.ErrorIs(t, err, ErrThrottled)
	require.Equal(t, maxLoginAttempts, collab.loginCalls)
}

func TestLoginUnreachableServerDoesNotConsumeAllowance(t *testing.T) {
	collab := &fakeCollaborator{loginErr: api.ErrUnreachable}
	mgr, _ := newTestManager(collab)

	_, err := mgr.Login(context.Background(), "EMP01", "secret")
	require.ErrorIs(t, err, api.ErrUnreachable)
	require.Equal(t, maxLoginAttempts, mgr.AttemptsLeft())
}

func TestSuccessResetsAllowance(t *testing.T) {
	collab := &fakeCollaborator{loginErr: &api.Error{Status: http.StatusUnauthorized, Detail: "Incorrect password"}}
	mgr, _ := newTestManager(collab)
	ctx := context.Background()

	_, err := mgr.Login(ctx, "EMP01", "wrong")
	require.Error(t, err)
	require.Equal(t, maxLoginAttempts-1, mgr.AttemptsLeft())

	collab.loginErr = nil
	collab.loginResult = goodLogin()
	_, err = mgr.Login(ctx, "EMP01", "right")
	require.NoError(t, err)
	require.Equal(t, maxLoginAttempts, mgr.AttemptsLeft())
}

func TestRestoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "credential.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(Credential{Token: "token-123", Identity: goodLogin().UserInfo}))

	collab := &fakeCollaborator{}
	mgr := NewManager(collab, store, slog.Default())
	id, err := mgr.Restore()
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, "EMP01", id.EmployeeID)
	require.Equal(t, "token-123", collab.token)
	require.NotNil(t, mgr.Identity())
}

func TestRestoreClearsMalformedState(t *testing.T) {
	cases := []struct {
		name string
		cred Credential
	}{
		{"missing token", Credential{Identity: goodLogin().UserInfo}},
		{"unknown role", Credential{Token: "t", Identity: authz.Identity{EmployeeID: "E", Role: "WIZARD"}}},
		{"missing empid", Credential{Token: "t", Identity: authz.Identity{Role: authz.RoleUser}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &MemoryStore{}
			require.NoError(t, store.Save(tc.cred))
			mgr := NewManager(&fakeCollaborator{}, store, slog.Default())

			id, err := mgr.Restore()
			require.NoError(t, err)
			require.Nil(t, id)

			// Never half-restored: the bad credential is gone.
			left, err := store.Load()
			require.NoError(t, err)
			require.Nil(t, left)
		})
	}
}

func TestRestoreOfNothing(t *testing.T) {
	mgr, _ := newTestManager(&fakeCollaborator{})
	id, err := mgr.Restore()
	require.NoError(t, err)
	require.Nil(t, id)
}

func TestLogoutIsIdempotent(t *testing.T) {
	collab := &fakeCollaborator{loginResult: goodLogin()}
	mgr, store := newTestManager(collab)
	ctx := context.Background()

	_, err := mgr.Login(ctx, "EMP01", "secret")
	require.NoError(t, err)

	mgr.Logout(ctx)
	require.Nil(t, mgr.Identity())
	require.Empty(t, collab.token)
	cred, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, cred)
	require.Equal(t, 1, collab.logoutCalls)

	// A second logout does not call the server again.
	mgr.Logout(ctx)
	require.Equal(t, 1, collab.logoutCalls)
}

func TestEpochInvalidatesLateResponses(t *testing.T) {
	collab := &fakeCollaborator{loginResult: goodLogin()}
	mgr, _ := newTestManager(collab)

	_, err := mgr.Login(context.Background(), "EMP01", "secret")
	require.NoError(t, err)

	epoch := mgr.Epoch()
	require.True(t, mgr.Valid(epoch))

	mgr.Expire()
	require.False(t, mgr.Valid(epoch))
	require.Nil(t, mgr.Identity())
}

func TestReloadFlagKeepsCredential(t *testing.T) {
	collab := &fakeCollaborator{loginResult: goodLogin()}
	mgr, store := newTestManager(collab)
	_, err := mgr.Login(context.Background(), "EMP01", "secret")
	require.NoError(t, err)

	mgr.MarkReload()
	mgr.HandleUnload()
	cred, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)

	// The flag is consumed: the next unload is a genuine close.
	mgr.HandleUnload()
	cred, err = store.Load()
	require.NoError(t, err)
	require.Nil(t, cred)
}
