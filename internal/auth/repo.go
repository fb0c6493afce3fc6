package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Repository defines persistence operations for the login flow.
type Repository interface {
	FindByEmployeeID(ctx context.Context, empid string) (*Credential, error)
	RecordFailedAttempt(ctx context.Context, id int64, attempts int, lock bool) error
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmployeeID fetches login credentials by employee ID.
func (r *PGRepository) FindByEmployeeID(ctx context.Context, empid string) (*Credential, error) {
	const query = `SELECT id, empid, empname, user_role, status, password_hash,
COALESCE(failed_attempts, 0), last_login
FROM accounts WHERE empid = $1`
	var c Credential
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(empid)).Scan(
		&c.ID, &c.EmployeeID, &c.Name, &c.Role, &c.Status,
		&c.PasswordHash, &c.FailedAttempts, &c.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// RecordFailedAttempt bumps the failure counter and optionally locks the
// account in the same statement.
func (r *PGRepository) RecordFailedAttempt(ctx context.Context, id int64, attempts int, lock bool) error {
	if lock {
		_, err := r.pool.Exec(ctx,
			`UPDATE accounts SET failed_attempts = $1, status = 'L' WHERE id = $2`,
			attempts, id)
		return err
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET failed_attempts = $1 WHERE id = $2`, attempts, id)
	return err
}

// RecordLogin resets the failure counter and stamps the last login.
func (r *PGRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET failed_attempts = 0, last_login = $1 WHERE id = $2`,
		at.UTC(), id)
	return err
}

var _ Repository = (*PGRepository)(nil)
