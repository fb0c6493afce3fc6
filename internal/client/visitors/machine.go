// Package visitors drives the visitor entry workflow on the client side:
// entry submission with local validation, the approval decision, and
// checkout. Gates here avoid pointless round trips; the server re-validates
// everything.
package visitors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/users"
	"github.com/gatehouse-vms/gatehouse/internal/visitors"
)

const maxRejectionReasonLen = 300

// Local gate failures. None of these produce a server request.
var (
	ErrPermissionDenied = errors.New("You don't have permission to perform this action")
	ErrAlreadyProcessed = errors.New("Entry already processed")
)

// ErrSessionExpired reports that the session ended while a request was in
// flight. The response is discarded; nothing from it reaches the caches or
// the caller.
var ErrSessionExpired = errors.New("Session expired. Please log in again.")

// ValidationError is a local precondition failure, reported before any
// request is made.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

func invalid(format string, args ...any) error {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

// Collaborator is the slice of the API client the machine depends on.
type Collaborator interface {
	MasterData(ctx context.Context, kind string) ([]string, error)
	LookupHost(ctx context.Context, mobile string) (*users.HostMatch, error)
	SubmitVisitor(ctx context.Context, params visitors.SubmitParams) (*visitors.Entry, error)
	ListVisitors(ctx context.Context) ([]visitors.Entry, error)
	ListPendingVisitors(ctx context.Context) ([]visitors.Entry, error)
	ListActiveVisitors(ctx context.Context) ([]visitors.Entry, error)
	DecideVisitor(ctx context.Context, cardNo, action, reason string) (*visitors.Entry, error)
	CheckoutVisitor(ctx context.Context, cardNo string) (*visitors.Entry, error)
}

// IdentitySource yields the active identity and its session generation. The
// epoch is captured before each collaborator call and checked afterwards so a
// response that outlives its session is dropped.
type IdentitySource interface {
	Identity() *authz.Identity
	Epoch() uint64
	Valid(epoch uint64) bool
}

// FormData holds the reference lists backing the entry form.
type FormData struct {
	Categories []string
	Purposes   []string
	IDTypes    []string
}

// Machine runs the visitor workflow against the collaborator.
type Machine struct {
	api      Collaborator
	session  IdentitySource
	validate *validator.Validate

	mu      sync.Mutex
	entries []visitors.Entry
	pending []visitors.Entry
	active  []visitors.Entry
}

// NewMachine wires a Machine.
func NewMachine(collaborator Collaborator, session IdentitySource) *Machine {
	return &Machine{api: collaborator, session: session, validate: validator.New()}
}

// LoadFormData fetches the three reference lists concurrently. Requires
// CREATE_VISITOR_ENTRY since only the entry form consumes them.
func (m *Machine) LoadFormData(ctx context.Context) (*FormData, error) {
	if !authz.HasCapability(m.session.Identity(), authz.CapCreateVisitorEntry) {
		return nil, ErrPermissionDenied
	}
	epoch := m.session.Epoch()
	var data FormData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := m.api.MasterData(gctx, "category")
		data.Categories = values
		return err
	})
	g.Go(func() error {
		values, err := m.api.MasterData(gctx, "purpose")
		data.Purposes = values
		return err
	})
	g.Go(func() error {
		values, err := m.api.MasterData(gctx, "idType")
		data.IDTypes = values
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	return &data, nil
}

// LookupHost resolves a host name by mobile for display. Advisory only; a
// lookup miss does not block submission, the server is the judge.
func (m *Machine) LookupHost(ctx context.Context, mobile string) (*users.HostMatch, error) {
	if !mobileOK(mobile) {
		return nil, invalid("Mobile number must be exactly 10 digits")
	}
	return m.api.LookupHost(ctx, mobile)
}

// submitForm mirrors the entry form fields for tag-based validation.
type submitForm struct {
	Name       string `validate:"required"`
	Mobile     string `validate:"required,len=10,numeric"`
	Email      string `validate:"omitempty,email"`
	IDType     string `validate:"required"`
	IDNumber   string `validate:"required"`
	Purpose    string `validate:"required"`
	Category   string `validate:"required"`
	HostMobile string `validate:"required,len=10,numeric"`
}

// SubmitEntry validates locally and submits a new entry. The fellow detail
// list is truncated to the declared count before anything leaves the client.
func (m *Machine) SubmitEntry(ctx context.Context, params visitors.SubmitParams) (*visitors.Entry, error) {
	if !authz.HasCapability(m.session.Identity(), authz.CapCreateVisitorEntry) {
		return nil, ErrPermissionDenied
	}

	params.Name = strings.TrimSpace(params.Name)
	if err := m.validate.Struct(submitForm{
		Name:       params.Name,
		Mobile:     params.Mobile,
		Email:      params.Email,
		IDType:     params.IDType,
		IDNumber:   params.IDNumber,
		Purpose:    params.Purpose,
		Category:   params.Category,
		HostMobile: params.HostMobile,
	}); err != nil {
		return nil, &ValidationError{Detail: submitDetail(err)}
	}
	if first, _ := utf8.DecodeRuneInString(params.Name); unicode.IsDigit(first) {
		return nil, invalid("Name cannot start with a number")
	}
	if params.FellowCount < 0 {
		return nil, invalid("Fellow visitor count cannot be negative")
	}
	if len(params.FellowVisitors) > params.FellowCount {
		params.FellowVisitors = params.FellowVisitors[:params.FellowCount]
	}
	for i, fv := range params.FellowVisitors {
		if strings.TrimSpace(fv.Name) == "" {
			return nil, invalid("Fellow visitor %d is missing a name", i+1)
		}
		if fv.Mobile != "" && !mobileOK(fv.Mobile) {
			return nil, invalid("Fellow visitor %d has an invalid mobile number", i+1)
		}
	}

	epoch := m.session.Epoch()
	entry, err := m.api.SubmitVisitor(ctx, params)
	if err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	m.refreshEntries(ctx)
	return entry, nil
}

// Approve marks a pending entry approved.
func (m *Machine) Approve(ctx context.Context, cardNo string) (*visitors.Entry, error) {
	return m.decide(ctx, cardNo, string(visitors.ApprovalApproved), "")
}

// Reject marks a pending entry rejected. The reason is optional but bounded.
func (m *Machine) Reject(ctx context.Context, cardNo, reason string) (*visitors.Entry, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxRejectionReasonLen {
		return nil, invalid("Rejection reason cannot exceed %d characters", maxRejectionReasonLen)
	}
	return m.decide(ctx, cardNo, string(visitors.ApprovalRejected), reason)
}

func (m *Machine) decide(ctx context.Context, cardNo, action, reason string) (*visitors.Entry, error) {
	id := m.session.Identity()
	if !authz.HasCapability(id, authz.CapApproveVisitor) {
		return nil, ErrPermissionDenied
	}
	if cached := m.cachedEntry(cardNo); cached != nil && cached.Approval != visitors.ApprovalPending {
		return nil, ErrAlreadyProcessed
	}

	epoch := m.session.Epoch()
	entry, err := m.api.DecideVisitor(ctx, cardNo, action, reason)
	if err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	m.remember(entry)
	m.refreshPending(ctx)
	return entry, nil
}

// Checkout stamps the out time for an approved entry still inside.
func (m *Machine) Checkout(ctx context.Context, cardNo string) (*visitors.Entry, error) {
	if !authz.HasCapability(m.session.Identity(), authz.CapCheckoutVisitor) {
		return nil, ErrPermissionDenied
	}
	if cached := m.cachedEntry(cardNo); cached != nil &&
		(cached.Approval != visitors.ApprovalApproved || cached.CheckedOut()) {
		return nil, invalid("No active visitor found with that card number")
	}

	epoch := m.session.Epoch()
	entry, err := m.api.CheckoutVisitor(ctx, cardNo)
	if err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	m.remember(entry)
	m.refreshActive(ctx)
	return entry, nil
}

// Entries returns the visible entry list, fetching when the cache is empty.
// The server scopes the result to the caller's own hosted visitors unless
// their role can see everything.
func (m *Machine) Entries(ctx context.Context) ([]visitors.Entry, error) {
	epoch := m.session.Epoch()
	entries, err := m.api.ListVisitors(ctx)
	if err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return entries, nil
}

// Pending returns the visible pending approvals.
func (m *Machine) Pending(ctx context.Context) ([]visitors.Entry, error) {
	epoch := m.session.Epoch()
	entries, err := m.api.ListPendingVisitors(ctx)
	if err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	m.mu.Lock()
	m.pending = entries
	m.mu.Unlock()
	return entries, nil
}

// Active returns the approved entries still inside. Requires
// CHECKOUT_VISITOR.
func (m *Machine) Active(ctx context.Context) ([]visitors.Entry, error) {
	if !authz.HasCapability(m.session.Identity(), authz.CapCheckoutVisitor) {
		return nil, ErrPermissionDenied
	}
	epoch := m.session.Epoch()
	entries, err := m.api.ListActiveVisitors(ctx)
	if err != nil {
		return nil, err
	}
	if !m.session.Valid(epoch) {
		return nil, ErrSessionExpired
	}
	m.mu.Lock()
	m.active = entries
	m.mu.Unlock()
	return entries, nil
}

// remember upserts a mutated entry into the main cache so later local gates
// see its new state even before the next list refresh.
func (m *Machine) remember(entry *visitors.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].CardNo == entry.CardNo {
			m.entries[i] = *entry
			return
		}
	}
	m.entries = append(m.entries, *entry)
}

func (m *Machine) cachedEntry(cardNo string) *visitors.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range [][]visitors.Entry{m.pending, m.active, m.entries} {
		for i := range list {
			if list[i].CardNo == cardNo {
				entry := list[i]
				return &entry
			}
		}
	}
	return nil
}

// refreshEntries repopulates the entry cache after a mutation, best-effort.
// A refresh response from an earlier session is dropped.
func (m *Machine) refreshEntries(ctx context.Context) {
	epoch := m.session.Epoch()
	if entries, err := m.api.ListVisitors(ctx); err == nil && m.session.Valid(epoch) {
		m.mu.Lock()
		m.entries = entries
		m.mu.Unlock()
	}
}

func (m *Machine) refreshPending(ctx context.Context) {
	epoch := m.session.Epoch()
	if entries, err := m.api.ListPendingVisitors(ctx); err == nil && m.session.Valid(epoch) {
		m.mu.Lock()
		m.pending = entries
		m.mu.Unlock()
	}
}

func (m *Machine) refreshActive(ctx context.Context) {
	epoch := m.session.Epoch()
	if entries, err := m.api.ListActiveVisitors(ctx); err == nil && m.session.Valid(epoch) {
		m.mu.Lock()
		m.active = entries
		m.mu.Unlock()
	}
}

func mobileOK(mobile string) bool {
	if len(mobile) != 10 {
		return false
	}
	for _, r := range mobile {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// submitDetail turns the first tag failure into the message the form shows.
func submitDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid entry form"
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "Name":
		return "Visitor name is required"
	case "Mobile":
		return "Mobile number must be exactly 10 digits"
	case "Email":
		return "Invalid email format"
	case "IDType", "IDNumber":
		return "ID type and ID number are required"
	case "Purpose", "Category":
		return "Purpose and visitor category are required"
	case "HostMobile":
		return "Host mobile number must be exactly 10 digits"
	default:
		return "Invalid entry form"
	}
}
