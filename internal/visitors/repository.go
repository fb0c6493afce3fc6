package visitors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// RepositoryPort defines data access methods for visitor entries. The
// mutating methods are conditional updates; zero affected rows means the
// entry was not in the required state.
type RepositoryPort interface {
	Create(ctx context.Context, e Entry) error
	CountForDay(ctx context.Context, day time.Time) (int, error)
	Get(ctx context.Context, cardNo string) (*Entry, error)
	SetDecision(ctx context.Context, cardNo string, decision Approval, reason, actor string, at time.Time) (bool, error)
	Checkout(ctx context.Context, cardNo, actor string, at time.Time) (bool, error)
	List(ctx context.Context, hostEmployeeID string, limit int) ([]Entry, error)
	ListPending(ctx context.Context, hostEmployeeID string, limit int) ([]Entry, error)
	ListActive(ctx context.Context, limit int) ([]Entry, error)
	CountsBetween(ctx context.Context, from, to time.Time) (StatusCounts, error)
	FrequentVisitors(ctx context.Context, since time.Time, limit int) ([]FrequentVisitor, error)
}

const entryColumns = `card_no, name, mobile, COALESCE(email, ''), id_type, id_number,
COALESCE(representing, ''), purpose, visitor_category, emp_id, emp_name, emp_mobile_no,
COALESCE(fellow_visitors, 0), fellow_visitors_details, approve,
COALESCE(rejection_reason, ''), COALESCE(approved_by, ''), entry_date, approve_dt,
out_time, COALESCE(created_by, '')`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new Pending entry.
func (r *Repository) Create(ctx context.Context, e Entry) error {
	var fellows []byte
	if len(e.FellowVisitors) > 0 {
		data, err := json.Marshal(e.FellowVisitors)
		if err != nil {
			return fmt.Errorf("visitors: marshal fellows: %w", err)
		}
		fellows = data
	}
	const query = `INSERT INTO visitor_entries
(card_no, name, mobile, email, id_type, id_number, representing, purpose,
 visitor_category, emp_id, emp_name, emp_mobile_no, fellow_visitors,
 fellow_visitors_details, approve, created_by, entry_date)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, 'P', $15, NOW())`
	_, err := r.pool.Exec(ctx, query, e.CardNo, e.Name, e.Mobile, e.Email,
		e.IDType, e.IDNumber, e.Representing, e.Purpose, e.Category,
		e.HostEmployeeID, e.HostName, e.HostMobile, e.FellowCount, fellows, e.CreatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: Card number already assigned", httpx.ErrDuplicate)
		}
		return err
	}
	return nil
}

// CountForDay returns how many entries were created on the given day, used
// for card number assignment.
func (r *Repository) CountForDay(ctx context.Context, day time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM visitor_entries WHERE entry_date::date = $1::date`, day).Scan(&count)
	return count, err
}

// Get fetches one entry by card number.
func (r *Repository) Get(ctx context.Context, cardNo string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM visitor_entries WHERE card_no = $1`
	row := r.pool.QueryRow(ctx, query, cardNo)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// SetDecision applies an approve/reject decision iff the entry is still
// Pending. Returns false when no row matched the guard.
func (r *Repository) SetDecision(ctx context.Context, cardNo string, decision Approval, reason, actor string, at time.Time) (bool, error) {
	const query = `UPDATE visitor_entries
SET approve = $1, rejection_reason = NULLIF($2, ''), approve_dt = $3,
    approved_by = $4, modify_by = $4, modify_date = NOW()
WHERE card_no = $5 AND approve = 'P'`
	tag, err := r.pool.Exec(ctx, query, decision, reason, at.UTC(), actor, cardNo)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Checkout stamps the out time iff the entry is Approved and still inside.
func (r *Repository) Checkout(ctx context.Context, cardNo, actor string, at time.Time) (bool, error) {
	const query = `UPDATE visitor_entries
SET out_time = $1, modify_by = $2, modify_date = NOW()
WHERE card_no = $3 AND approve = 'A' AND out_time IS NULL`
	tag, err := r.pool.Exec(ctx, query, at.UTC(), actor, cardNo)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List returns entries newest first, optionally scoped to a host employee.
func (r *Repository) List(ctx context.Context, hostEmployeeID string, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM visitor_entries`
	args := []any{}
	if hostEmployeeID != "" {
		query += ` WHERE emp_id = $1`
		args = append(args, hostEmployeeID)
	}
	query += fmt.Sprintf(` ORDER BY entry_date DESC LIMIT %d`, limit)
	return r.queryEntries(ctx, query, args...)
}

// ListPending returns Pending entries newest first, optionally host-scoped.
func (r *Repository) ListPending(ctx context.Context, hostEmployeeID string, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM visitor_entries WHERE approve = 'P'`
	args := []any{}
	if hostEmployeeID != "" {
		query += ` AND emp_id = $1`
		args = append(args, hostEmployeeID)
	}
	query += fmt.Sprintf(` ORDER BY entry_date DESC LIMIT %d`, limit)
	return r.queryEntries(ctx, query, args...)
}

// ListActive returns Approved entries that have not checked out.
func (r *Repository) ListActive(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM visitor_entries
WHERE approve = 'A' AND out_time IS NULL ORDER BY approve_dt DESC`
	query += fmt.Sprintf(` LIMIT %d`, limit)
	return r.queryEntries(ctx, query)
}

// CountsBetween aggregates entry counts by workflow state for the window.
func (r *Repository) CountsBetween(ctx context.Context, from, to time.Time) (StatusCounts, error) {
	const query = `SELECT
COUNT(*),
COUNT(*) FILTER (WHERE approve = 'A'),
COUNT(*) FILTER (WHERE approve = 'P'),
COUNT(*) FILTER (WHERE approve = 'R'),
COUNT(*) FILTER (WHERE approve = 'A' AND out_time IS NULL),
COUNT(*) FILTER (WHERE out_time IS NOT NULL)
FROM visitor_entries WHERE entry_date >= $1 AND entry_date < $2`
	var c StatusCounts
	err := r.pool.QueryRow(ctx, query, from.UTC(), to.UTC()).Scan(
		&c.Total, &c.Approved, &c.Pending, &c.Rejected, &c.CurrentlyInside, &c.CheckedOut)
	return c, err
}

// FrequentVisitors returns repeat visitors since the cutoff, most frequent
// first.
func (r *Repository) FrequentVisitors(ctx context.Context, since time.Time, limit int) ([]FrequentVisitor, error) {
	const query = `SELECT name, mobile, COUNT(*) AS visit_count
FROM visitor_entries WHERE entry_date >= $1
GROUP BY mobile, name HAVING COUNT(*) > 1
ORDER BY visit_count DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FrequentVisitor
	for rows.Next() {
		var fv FrequentVisitor
		if err := rows.Scan(&fv.Name, &fv.Mobile, &fv.VisitCount); err != nil {
			return nil, err
		}
		out = append(out, fv)
	}
	return out, rows.Err()
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var fellows []byte
	err := row.Scan(&e.CardNo, &e.Name, &e.Mobile, &e.Email, &e.IDType,
		&e.IDNumber, &e.Representing, &e.Purpose, &e.Category,
		&e.HostEmployeeID, &e.HostName, &e.HostMobile, &e.FellowCount,
		&fellows, &e.Approval, &e.RejectionReason, &e.ApprovedBy,
		&e.EntryAt, &e.ApprovedAt, &e.OutTime, &e.CreatedBy)
	if err != nil {
		return nil, err
	}
	if len(fellows) > 0 {
		if err := json.Unmarshal(fellows, &e.FellowVisitors); err != nil {
			return nil, fmt.Errorf("visitors: unmarshal fellows for %s: %w", e.CardNo, err)
		}
	}
	return &e, nil
}

var _ RepositoryPort = (*Repository)(nil)
