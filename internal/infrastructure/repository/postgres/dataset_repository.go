package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

type DatasetRepository struct {
	db *sql.DB
}

func NewDatasetRepository(db *sql.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// ListByIDs returns only datasets owned by the tenant. Unknown or foreign
// ids are silently dropped.
func (r *DatasetRepository) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Dataset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, name, weight
FROM datasets
WHERE tenant_id = $1 AND id = ANY($2)
`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Dataset, 0, len(ids))
	for rows.Next() {
		var ds domain.Dataset
		if err := rows.Scan(&ds.ID, &ds.TenantID, &ds.Name, &ds.Weight); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return out, nil
}

// ListByTenant returns every dataset the tenant owns.
func (r *DatasetRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, name, weight
FROM datasets
WHERE tenant_id = $1
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tenant datasets: %w", err)
	}
	defer rows.Close()

	var out []domain.Dataset
	for rows.Next() {
		var ds domain.Dataset
		if err := rows.Scan(&ds.ID, &ds.TenantID, &ds.Name, &ds.Weight); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant datasets: %w", err)
	}
	return out, nil
}
