// Package accounts drives the user lock/unlock workflow on the client side.
// Every gate here is a convenience; the server re-validates all of them.
package accounts

import (
	"context"
	"errors"
	"sync"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/client/api"
	"github.com/gatehouse-vms/gatehouse/internal/users"
)

// Local gate failures. None of these produce a server request.
var (
	ErrPermissionDenied       = errors.New("You don't have permission to perform this action")
	ErrMasterPasswordRequired = errors.New("Master password required to modify ADMIN or HR")
	ErrNotConfirmed           = errors.New("Action not confirmed")
	ErrInvalidTransition      = errors.New("Account is not in a state that allows this action")
	ErrUnknownAccount         = errors.New("Account not found")
)

// ErrSessionExpired reports that the session ended while a request was in
// flight. The response is discarded; nothing from it reaches the cache or the
// caller.
var ErrSessionExpired = errors.New("Session expired. Please log in again.")

// Collaborator is the slice of the API client the machine depends on.
type Collaborator interface {
	ListUsers(ctx context.Context) ([]users.Account, error)
	CreateUser(ctx context.Context, params api.CreateUserParams) error
	LockUser(ctx context.Context, empid, masterPassword string) error
	UnlockUser(ctx context.Context, empid, masterPassword string) error
}

// IdentitySource yields the active identity and its session generation. The
// epoch is captured before each collaborator call and checked afterwards so a
// response that outlives its session is dropped.
type IdentitySource interface {
	Identity() *authz.Identity
	Epoch() uint64
	Valid(epoch uint64) bool
}

// Machine holds the account list and runs the lifecycle transitions against
// it. The cached list is refreshed after every successful mutation so the
// caller always renders post-transition state.
type Machine struct {
	api     Collaborator
	session IdentitySource

	mu       sync.Mutex
	accounts []users.Account
}

// NewMachine wires a Machine.
func NewMachine(collaborator Collaborator, session IdentitySource) *Machine {
	return &Machine{api: collaborator, session: session}
}

// Refresh reloads the account list. Requires VIEW_USERS.
func (m *Machine) Refresh(ctx context.Context) ([]users.Account, error) {
	if !authz.HasCapability(m.session.Identity(), authz.CapViewUsers) {
		return nil, ErrPermissionDenied
	}
	epoch := m.session.Epoch()
	accounts, err := m.api.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	m.mu.Lock()
	m.accounts = accounts
	m.mu.Unlock()
	return accounts, nil
}

// Accounts returns the cached list from the last refresh.
func (m *Machine) Accounts() []users.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.Account, len(m.accounts))
	copy(out, m.accounts)
	return out
}

// Create registers a new account and refreshes the list. Requires
// CREATE_USER.
func (m *Machine) Create(ctx context.Context, params api.CreateUserParams) error {
	if !authz.HasCapability(m.session.Identity(), authz.CapCreateUser) {
		return ErrPermissionDenied
	}
	epoch := m.session.Epoch()
	if err := m.api.CreateUser(ctx, params); err != nil {
		return err
	}
	if !m.session.Valid(epoch) {
		return ErrSessionExpired
	}
	_, err := m.Refresh(ctx)
	return err
}

// Lock moves an Active account to Locked.
func (m *Machine) Lock(ctx context.Context, target, masterPassword string, confirmed bool) error {
	return m.transition(ctx, target, masterPassword, confirmed,
		authz.CapLockUser, authz.StatusActive, m.api.LockUser)
}

// Unlock moves a Locked or Inactive account back to Active.
func (m *Machine) Unlock(ctx context.Context, target, masterPassword string, confirmed bool) error {
	return m.transition(ctx, target, masterPassword, confirmed,
		authz.CapUnlockUser, authz.StatusLocked, m.api.UnlockUser)
}

// transition runs the shared gate sequence: capability, known target, state,
// step-up or confirmation, then the request and a refetch. Gate failures stop
// before any network traffic.
func (m *Machine) transition(ctx context.Context, target, masterPassword string, confirmed bool,
	cap authz.Capability, from authz.Status,
	op func(ctx context.Context, empid, masterPassword string) error) error {

	if !authz.HasCapability(m.session.Identity(), cap) {
		return ErrPermissionDenied
	}

	account, err := m.lookup(ctx, target)
	if err != nil {
		return err
	}
	if !allowedFrom(account.Status, from) {
		return ErrInvalidTransition
	}

	if authz.Elevated(account.Role) {
		if masterPassword == "" {
			return ErrMasterPasswordRequired
		}
	} else if !confirmed {
		return ErrNotConfirmed
	}

	epoch := m.session.Epoch()
	if err := op(ctx, target, masterPassword); err != nil {
		return err
	}
	if !m.session.Valid(epoch) {
		return ErrSessionExpired
	}
	_, err = m.Refresh(ctx)
	return err
}

// allowedFrom mirrors the server's lifecycle table: locking needs Active,
// unlocking accepts Locked and Inactive.
func allowedFrom(current, from authz.Status) bool {
	if from == authz.StatusLocked {
		return current == authz.StatusLocked || current == authz.StatusInactive
	}
	return current == from
}

func (m *Machine) lookup(ctx context.Context, empid string) (*users.Account, error) {
	m.mu.Lock()
	for i := range m.accounts {
		if m.accounts[i].EmployeeID == empid {
			account := m.accounts[i]
			m.mu.Unlock()
			return &account, nil
		}
	}
	m.mu.Unlock()

	// Cache miss: the list may be stale or never loaded.
	if _, err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.accounts {
		if m.accounts[i].EmployeeID == empid {
			account := m.accounts[i]
			return &account, nil
		}
	}
	return nil, ErrUnknownAccount
}
