// Package session owns the client-side session lifecycle: login and logout
// against the API collaborator, credential persistence across restarts, the
// reload-versus-close discrimination, and the inactivity watchdog.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/client/api"
)

// maxLoginAttempts is the local allowance before Login refuses to contact the
// server at all.
const maxLoginAttempts = 5

// ErrThrottled reports that the local login allowance is exhausted. Only a
// successful login or a process restart resets it; the server keeps its own
// counter and locks the account independently.
var ErrThrottled = errors.New("Maximum login attempts reached. Please restart the application.")

// Credential is the persisted session state.
type Credential struct {
	Token    string         `json:"access_token"`
	Identity authz.Identity `json:"user_info"`
}

// CredentialStore persists the session across process restarts.
type CredentialStore interface {
	Load() (*Credential, error)
	Save(Credential) error
	Clear() error
}

// FileStore keeps the credential in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore builds a FileStore rooted at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted credential. A missing file is not an error; it
// returns nil.
func (s *FileStore) Load() (*Credential, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read credential: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("session: parse credential: %w", err)
	}
	return &cred, nil
}

// Save writes the credential, creating parent directories as needed.
func (s *FileStore) Save(cred Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("session: marshal credential: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create credential dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("session: write credential: %w", err)
	}
	return nil
}

// Clear removes the persisted credential. Clearing an absent file is a no-op.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: clear credential: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory CredentialStore for tests.
type MemoryStore struct {
	mu   sync.Mutex
	cred *Credential
}

func (s *MemoryStore) Load() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, nil
	}
	copied := *s.cred
	return &copied, nil
}

func (s *MemoryStore) Save(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}

// Collaborator is the slice of the API client the session layer depends on.
type Collaborator interface {
	Login(ctx context.Context, empid, password string) (*api.LoginResult, error)
	Logout(ctx context.Context) error
	SetToken(token string)
}

// Manager tracks the active session. All state transitions bump the epoch so
// work started under an earlier session can detect it is stale.
type Manager struct {
	api    Collaborator
	creds  CredentialStore
	logger *slog.Logger

	mu           sync.Mutex
	identity     *authz.Identity
	epoch        uint64
	attemptsLeft int
	reloadFlag   bool
}

// NewManager wires a Manager.
func NewManager(collaborator Collaborator, creds CredentialStore, logger *slog.Logger) *Manager {
	return &Manager{
		api:          collaborator,
		creds:        creds,
		logger:       logger,
		attemptsLeft: maxLoginAttempts,
	}
}

// Login authenticates and installs the session. Authentication failures
// consume the local allowance; once it reaches zero Login refuses without
// contacting the server.
func (m *Manager) Login(ctx context.Context, empid, password string) (*authz.Identity, error) {
	m.mu.Lock()
	if m.attemptsLeft <= 0 {
		m.mu.Unlock()
		return nil, ErrThrottled
	}
	m.mu.Unlock()

	result, err := m.api.Login(ctx, empid, password)
	if err != nil {
		if api.IsUnauthorized(err) {
			m.mu.Lock()
			m.attemptsLeft--
			left := m.attemptsLeft
			m.mu.Unlock()
			m.logger.Warn("login rejected", slog.Int("attempts_left", left))
		}
		return nil, err
	}

	cred := Credential{Token: result.AccessToken, Identity: result.UserInfo}
	if err := m.creds.Save(cred); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.attemptsLeft = maxLoginAttempts
	m.identity = &result.UserInfo
	m.epoch++
	m.mu.Unlock()
	m.api.SetToken(result.AccessToken)

	return &result.UserInfo, nil
}

// Restore rebuilds the session from the persisted credential. A malformed or
// incomplete credential clears all persisted state and restores nothing.
func (m *Manager) Restore() (*authz.Identity, error) {
	cred, err := m.creds.Load()
	if err != nil {
		m.logger.Warn("credential restore failed", slog.Any("error", err))
		if clearErr := m.creds.Clear(); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	if cred == nil {
		return nil, nil
	}
	if cred.Token == "" || !authz.ValidRole(cred.Identity.Role) || cred.Identity.EmployeeID == "" {
		if err := m.creds.Clear(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	identity := cred.Identity
	m.mu.Lock()
	m.identity = &identity
	m.epoch++
	m.mu.Unlock()
	m.api.SetToken(cred.Token)

	return &identity, nil
}

// Logout revokes the token best-effort and clears all session state. Safe to
// call repeatedly.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	active := m.identity != nil
	m.mu.Unlock()
	if active {
		if err := m.api.Logout(ctx); err != nil {
			m.logger.Warn("server logout failed", slog.Any("error", err))
		}
	}
	m.clear()
}

// Expire drops the session without the server round trip. The watchdog calls
// this when the inactivity limit is reached.
func (m *Manager) Expire() {
	m.clear()
}

func (m *Manager) clear() {
	if err := m.creds.Clear(); err != nil {
		m.logger.Warn("credential clear failed", slog.Any("error", err))
	}
	m.api.SetToken("")
	m.mu.Lock()
	m.identity = nil
	m.epoch++
	m.mu.Unlock()
}

// Identity returns the active identity, nil when logged out.
func (m *Manager) Identity() *authz.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Epoch identifies the current session generation. Capture it before starting
// work and check it with Valid before applying the result.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Valid reports whether the captured epoch still names the live session.
func (m *Manager) Valid(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity != nil && m.epoch == epoch
}

// AttemptsLeft exposes the remaining local login allowance.
func (m *Manager) AttemptsLeft() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attemptsLeft
}

// MarkReload flags the pending unload as a reload so HandleUnload keeps the
// persisted credential. The flag lives only in process memory.
func (m *Manager) MarkReload() {
	m.mu.Lock()
	m.reloadFlag = true
	m.mu.Unlock()
}

// HandleUnload runs on shutdown. A genuine close clears the credential; a
// reload consumes the flag and leaves it in place for Restore. If the process
// dies before Restore runs, the credential survives until its token expires
// server-side; that window is inherent to the flag handshake.
func (m *Manager) HandleUnload() {
	m.mu.Lock()
	reload := m.reloadFlag
	m.reloadFlag = false
	m.mu.Unlock()
	if reload {
		return
	}
	if err := m.creds.Clear(); err != nil {
		m.logger.Warn("credential clear failed", slog.Any("error", err))
	}
}
