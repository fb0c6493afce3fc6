package visitors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-vms/gatehouse/internal/users"
)

const (
	listLimit    = 50
	pendingLimit = 20
	activeLimit  = 200
)

var (
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// SubmitParams carries a new visitor entry request.
type SubmitParams struct {
	Name           string          `json:"name"`
	Mobile         string          `json:"mobile"`
	Email          string          `json:"email"`
	IDType         string          `json:"id_type"`
	IDNumber       string          `json:"id_number"`
	Representing   string          `json:"representing"`
	Purpose        string          `json:"purpose"`
	Category       string          `json:"visitor_category"`
	HostMobile     string          `json:"emp_mobile_no"`
	FellowCount    int             `json:"fellow_visitors"`
	FellowVisitors []FellowVisitor `json:"fellow_visitors_details"`
}

// Service implements the visitor entry workflow on top of a repository.
type Service struct {
	repo  RepositoryPort
	hosts users.HostDirectory
	now   func() time.Time
}

// NewService wires a Service.
func NewService(repo RepositoryPort, hosts users.HostDirectory) *Service {
	return &Service{repo: repo, hosts: hosts, now: time.Now}
}

// Submit validates and stores a new Pending entry, assigning the day's next
// card number.
func (s *Service) Submit(ctx context.Context, p SubmitParams, actor string) (*Entry, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: Visitor name is required", httpx.ErrValidation)
	}
	if first, _ := utf8.DecodeRuneInString(p.Name); unicode.IsDigit(first) {
		return nil, fmt.Errorf("%w: Name cannot start with a number", httpx.ErrValidation)
	}
	if !mobilePattern.MatchString(p.Mobile) {
		return nil, fmt.Errorf("%w: Mobile number must be exactly 10 digits", httpx.ErrValidation)
	}
	if p.Email != "" && !emailPattern.MatchString(p.Email) {
		return nil, fmt.Errorf("%w: Invalid email format", httpx.ErrValidation)
	}
	if p.IDType == "" || p.IDNumber == "" {
		return nil, fmt.Errorf("%w: ID type and ID number are required", httpx.ErrValidation)
	}
	if p.Purpose == "" || p.Category == "" {
		return nil, fmt.Errorf("%w: Purpose and visitor category are required", httpx.ErrValidation)
	}
	if p.FellowCount < 0 {
		return nil, fmt.Errorf("%w: Fellow visitor count cannot be negative", httpx.ErrValidation)
	}
	if len(p.FellowVisitors) > p.FellowCount {
		// Extra detail rows beyond the declared count are dropped.
		p.FellowVisitors = p.FellowVisitors[:p.FellowCount]
	}
	for i, fv := range p.FellowVisitors {
		if strings.TrimSpace(fv.Name) == "" {
			return nil, fmt.Errorf("%w: Fellow visitor %d is missing a name", httpx.ErrValidation, i+1)
		}
		if fv.Mobile != "" && !mobilePattern.MatchString(fv.Mobile) {
			return nil, fmt.Errorf("%w: Fellow visitor %d has an invalid mobile number", httpx.ErrValidation, i+1)
		}
	}

	host, err := s.hosts.LookupHostByMobile(ctx, p.HostMobile)
	if err != nil {
		return nil, err
	}
	if !host.Found {
		return nil, fmt.Errorf("%w: Host employee not found", httpx.ErrNotFound)
	}

	now := s.now()
	cardNo, err := s.nextCardNo(ctx, now)
	if err != nil {
		return nil, err
	}

	entry := Entry{
		CardNo:         cardNo,
		Name:           p.Name,
		Mobile:         p.Mobile,
		Email:          p.Email,
		IDType:         p.IDType,
		IDNumber:       p.IDNumber,
		Representing:   p.Representing,
		Purpose:        p.Purpose,
		Category:       p.Category,
		HostEmployeeID: host.EmployeeID,
		HostName:       host.Name,
		HostMobile:     p.HostMobile,
		FellowCount:    p.FellowCount,
		FellowVisitors: p.FellowVisitors,
		Approval:       ApprovalPending,
		EntryAt:        now,
		CreatedBy:      actor,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// nextCardNo assigns the day-scoped sequential card number, formatted as
// YYYYMMDD-NNN.
func (s *Service) nextCardNo(ctx context.Context, day time.Time) (string, error) {
	count, err := s.repo.CountForDay(ctx, day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", day.Format("20060102"), count+1), nil
}

// Decide approves or rejects a Pending entry. A rejection reason is optional
// but bounded.
func (s *Service) Decide(ctx context.Context, cardNo string, decision Approval, reason string, actor *authz.Identity) (*Entry, error) {
	entry, err := s.repo.Get(ctx, cardNo)
	if err != nil {
		return nil, err
	}
	if err := decide(entry.Approval, decision); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if decision == ApprovalRejected {
		if utf8.RuneCountInString(reason) > maxRejectionReasonLen {
			return nil, fmt.Errorf("%w: Rejection reason cannot exceed %d characters", httpx.ErrValidation, maxRejectionReasonLen)
		}
	} else {
		reason = ""
	}

	now := s.now()
	ok, err := s.repo.SetDecision(ctx, cardNo, decision, reason, actor.EmployeeID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race against another approver.
		return nil, ErrAlreadyProcessed
	}
	entry.Approval = decision
	entry.RejectionReason = reason
	entry.ApprovedBy = actor.EmployeeID
	entry.ApprovedAt = &now
	return entry, nil
}

// Checkout stamps the out time for an Approved entry still inside.
func (s *Service) Checkout(ctx context.Context, cardNo string, actor *authz.Identity) (*Entry, error) {
	entry, err := s.repo.Get(ctx, cardNo)
	if err != nil {
		return nil, err
	}
	if err := checkoutGuard(*entry); err != nil {
		return nil, err
	}
	now := s.now()
	ok, err := s.repo.Checkout(ctx, cardNo, actor.EmployeeID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInside
	}
	entry.OutTime = &now
	return entry, nil
}

// List returns visitor entries visible to the caller. Callers without the
// broad view capability only see entries hosted by themselves.
func (s *Service) List(ctx context.Context, caller *authz.Identity) ([]Entry, error) {
	scope := s.hostScope(caller)
	entries, err := s.repo.List(ctx, scope, listLimit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListPending returns Pending entries visible to the caller.
func (s *Service) ListPending(ctx context.Context, caller *authz.Identity) ([]Entry, error) {
	scope := s.hostScope(caller)
	entries, err := s.repo.ListPending(ctx, scope, pendingLimit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListActive returns Approved entries currently inside.
func (s *Service) ListActive(ctx context.Context) ([]Entry, error) {
	return s.repo.ListActive(ctx, activeLimit)
}

// hostScope narrows list queries for callers who may only see their own
// hosted visitors.
func (s *Service) hostScope(caller *authz.Identity) string {
	if authz.HasCapability(caller, authz.CapViewAllVisitors) {
		return ""
	}
	return caller.EmployeeID
}
