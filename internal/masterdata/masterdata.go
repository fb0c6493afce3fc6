// Package masterdata serves the reference lists used by the visitor entry
// form: visitor categories, visit purposes and accepted ID types.
package masterdata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Kind names a master-data list.
type Kind string

const (
	KindCategory Kind = "category"
	KindPurpose  Kind = "purpose"
	KindIDType   Kind = "idType"
)

// tables maps each kind to its backing table and value column. Only active
// rows are served.
var tables = map[Kind]struct {
	table  string
	column string
}{
	KindCategory: {"visitor_category_master", "category_name"},
	KindPurpose:  {"purpose_master", "purpose_name"},
	KindIDType:   {"id_master", "id_type_name"},
}

// RepositoryPort defines data access for master data.
type RepositoryPort interface {
	List(ctx context.Context, kind Kind) ([]string, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns the active values for a kind, ordered by value.
func (r *Repository) List(ctx context.Context, kind Kind) ([]string, error) {
	spec, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: Invalid master data kind", httpx.ErrValidation)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE status = 'A' ORDER BY %s",
		spec.column, spec.table, spec.column)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
