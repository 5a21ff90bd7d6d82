package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

// UsageRepository persists usage events consumed from the queue by the
// worker.
type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Insert(ctx context.Context, event domain.UsageEvent) error {
	createdAt, err := time.Parse(time.RFC3339Nano, event.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO usage_events (tenant_id, provider, model, feature_type, channel, input_tokens, output_tokens, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, event.TenantID, event.Provider, event.Model, event.FeatureType, event.Channel, event.InputTokens, event.OutputTokens, createdAt)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}
