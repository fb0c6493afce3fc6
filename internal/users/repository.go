package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// RepositoryPort defines data access methods for managed accounts.
type RepositoryPort interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, empid string) (*Account, error)
	Create(ctx context.Context, acct Account, passwordHash string) error
	SetStatus(ctx context.Context, empid string, status authz.Status, modifyBy string, resetAttempts bool) error
	FindActiveByMobile(ctx context.Context, mobile string) (*Account, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all accounts ordered by name.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	const query = `SELECT id, empid, empname, emp_mobile_no, user_role, status,
COALESCE(failed_attempts, 0), last_login, COALESCE(created_by, '')
FROM accounts ORDER BY empname`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.Name, &a.Mobile, &a.Role,
			&a.Status, &a.FailedAttempts, &a.LastLogin, &a.CreatedBy); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Get fetches one account by employee ID.
func (r *Repository) Get(ctx context.Context, empid string) (*Account, error) {
	const query = `SELECT id, empid, empname, emp_mobile_no, user_role, status,
COALESCE(failed_attempts, 0), last_login, COALESCE(created_by, '')
FROM accounts WHERE empid = $1`
	var a Account
	err := r.pool.QueryRow(ctx, query, empid).Scan(&a.ID, &a.EmployeeID, &a.Name,
		&a.Mobile, &a.Role, &a.Status, &a.FailedAttempts, &a.LastLogin, &a.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account. Unique violations on empid or mobile map to
// the duplicate sentinel with the column spelled out.
func (r *Repository) Create(ctx context.Context, acct Account, passwordHash string) error {
	const query = `INSERT INTO accounts
(empid, empname, emp_mobile_no, password_hash, user_role, status, created_by, created_date)
VALUES ($1, $2, $3, $4, $5, 'A', $6, NOW())`
	_, err := r.pool.Exec(ctx, query, acct.EmployeeID, acct.Name, acct.Mobile,
		passwordHash, acct.Role, acct.CreatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "accounts_emp_mobile_no_key" {
				return fmt.Errorf("%w: Mobile number already exists", httpx.ErrDuplicate)
			}
			return fmt.Errorf("%w: Employee ID already exists", httpx.ErrDuplicate)
		}
		return err
	}
	return nil
}

// SetStatus updates the account status and audit columns.
func (r *Repository) SetStatus(ctx context.Context, empid string, status authz.Status, modifyBy string, resetAttempts bool) error {
	query := `UPDATE accounts SET status = $1, modify_by = $2, modify_date = NOW() WHERE empid = $3`
	if resetAttempts {
		query = `UPDATE accounts SET status = $1, failed_attempts = 0, modify_by = $2, modify_date = NOW() WHERE empid = $3`
	}
	tag, err := r.pool.Exec(ctx, query, status, modifyBy, empid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// FindActiveByMobile locates an active account by its 10-digit mobile number.
func (r *Repository) FindActiveByMobile(ctx context.Context, mobile string) (*Account, error) {
	const query = `SELECT id, empid, empname, emp_mobile_no, user_role, status,
COALESCE(failed_attempts, 0), last_login, COALESCE(created_by, '')
FROM accounts WHERE emp_mobile_no = $1 AND status = 'A'`
	var a Account
	err := r.pool.QueryRow(ctx, query, mobile).Scan(&a.ID, &a.EmployeeID, &a.Name,
		&a.Mobile, &a.Role, &a.Status, &a.FailedAttempts, &a.LastLogin, &a.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

var _ RepositoryPort = (*Repository)(nil)
