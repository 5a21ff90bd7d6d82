package ports

import (
	"context"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

// ChatResponder is the inbound contract for the query-time response pipeline.
type ChatResponder interface {
	Respond(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
}

// PointsAdmission is the inbound contract for balance checks and mutations
// exposed to administrative surfaces.
type PointsAdmission interface {
	Validate(ctx context.Context, tenantID string, required int64) (domain.AdmissionDecision, error)
	Debit(ctx context.Context, tenantID string, amount int64, meta domain.TransactionMetadata) (*domain.PointsTransaction, error)
	Credit(ctx context.Context, tenantID string, amount int64, txType domain.TransactionType, meta domain.TransactionMetadata) (*domain.PointsTransaction, error)
	GrantTrial(ctx context.Context, tenantID string) (*domain.PointsTransaction, error)
}
