package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/users"
	"github.com/gatehouse-vms/gatehouse/internal/visitors"
)

// LoginResult is the payload of a successful login.
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	UserInfo    authz.Identity `json:"user_info"`
}

// Login exchanges credentials for a bearer token. The token is not installed
// on the client; the session layer decides when a login becomes the active
// session.
func (c *Client) Login(ctx context.Context, empid, password string) (*LoginResult, error) {
	body := map[string]string{"empid": empid, "password": password}
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout revokes the current bearer token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

// ListUsers fetches all managed accounts.
func (c *Client) ListUsers(ctx context.Context) ([]users.Account, error) {
	var accounts []users.Account
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateUserParams carries a new account request.
type CreateUserParams struct {
	EmployeeID string `json:"empid"`
	Name       string `json:"empname"`
	Mobile     string `json:"emp_mobile_no"`
	Password   string `json:"password"`
	Role       string `json:"user_role"`
}

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) error {
	return c.do(ctx, http.MethodPost, "/api/users", nil, params, nil)
}

type lifecycleBody struct {
	EmployeeID     string `json:"empid"`
	MasterPassword string `json:"master_password,omitempty"`
}

// LockUser locks an account, passing the step-up credential when the caller
// supplied one.
func (c *Client) LockUser(ctx context.Context, empid, masterPassword string) error {
	return c.do(ctx, http.MethodPost, "/api/users/lock", nil,
		lifecycleBody{EmployeeID: empid, MasterPassword: masterPassword}, nil)
}

// UnlockUser unlocks an account.
func (c *Client) UnlockUser(ctx context.Context, empid, masterPassword string) error {
	return c.do(ctx, http.MethodPost, "/api/users/unlock", nil,
		lifecycleBody{EmployeeID: empid, MasterPassword: masterPassword}, nil)
}

// LookupHost resolves a host employee by mobile number. Advisory only; the
// server re-validates on submission.
func (c *Client) LookupHost(ctx context.Context, mobile string) (*users.HostMatch, error) {
	query := url.Values{"number": {mobile}}
	var match users.HostMatch
	if err := c.do(ctx, http.MethodGet, "/api/users/host_lookup", query, nil, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// MasterData fetches one reference list for the entry form.
func (c *Client) MasterData(ctx context.Context, kind string) ([]string, error) {
	var values []string
	if err := c.do(ctx, http.MethodGet, "/api/master-data/"+kind, nil, nil, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// SubmitVisitor creates a new visitor entry.
func (c *Client) SubmitVisitor(ctx context.Context, params visitors.SubmitParams) (*visitors.Entry, error) {
	var entry visitors.Entry
	if err := c.do(ctx, http.MethodPost, "/api/visitors", nil, params, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListVisitors fetches the entries visible to the caller.
func (c *Client) ListVisitors(ctx context.Context) ([]visitors.Entry, error) {
	var entries []visitors.Entry
	if err := c.do(ctx, http.MethodGet, "/api/visitors", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListPendingVisitors fetches the pending entries visible to the caller.
func (c *Client) ListPendingVisitors(ctx context.Context) ([]visitors.Entry, error) {
	var entries []visitors.Entry
	if err := c.do(ctx, http.MethodGet, "/api/visitors/pending", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListActiveVisitors fetches approved entries still inside.
func (c *Client) ListActiveVisitors(ctx context.Context) ([]visitors.Entry, error) {
	var entries []visitors.Entry
	if err := c.do(ctx, http.MethodGet, "/api/visitors/active", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

type decideBody struct {
	CardNo          string `json:"card_no"`
	Action          string `json:"action"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// DecideVisitor approves or rejects a pending entry.
func (c *Client) DecideVisitor(ctx context.Context, cardNo, action, reason string) (*visitors.Entry, error) {
	var entry visitors.Entry
	body := decideBody{CardNo: cardNo, Action: action, RejectionReason: reason}
	if err := c.do(ctx, http.MethodPost, "/api/visitors/approve", nil, body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CheckoutVisitor stamps the out time for an approved entry.
func (c *Client) CheckoutVisitor(ctx context.Context, cardNo string) (*visitors.Entry, error) {
	var entry visitors.Entry
	if err := c.do(ctx, http.MethodPost, "/api/visitors/"+url.PathEscape(cardNo)+"/checkout", nil, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DailyReport fetches per-day visitor counts.
func (c *Client) DailyReport(ctx context.Context, date string) (*visitors.DailyReport, error) {
	query := url.Values{"date": {date}}
	var report visitors.DailyReport
	if err := c.do(ctx, http.MethodGet, "/api/reports/daily", query, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SummaryReport fetches the rolling 30-day counts.
func (c *Client) SummaryReport(ctx context.Context) (*visitors.SummaryReport, error) {
	var report visitors.SummaryReport
	if err := c.do(ctx, http.MethodGet, "/api/reports/summary", nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// FrequentReport fetches the repeat-visitor list.
func (c *Client) FrequentReport(ctx context.Context) ([]visitors.FrequentVisitor, error) {
	var rows []visitors.FrequentVisitor
	if err := c.do(ctx, http.MethodGet, "/api/reports/frequent", nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
