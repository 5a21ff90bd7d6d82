package ports

import (
	"context"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

// Embedder builds the query vector for dense retrieval.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs the dense similarity signal against one dataset.
type VectorSearcher interface {
	SearchDense(ctx context.Context, queryVector []float32, datasetID string, limit int) ([]domain.RetrievalCandidate, error)
}

// TextSearcher runs the sparse full-text signal against one dataset.
type TextSearcher interface {
	SearchSparse(ctx context.Context, query, datasetID string, limit int) ([]domain.RetrievalCandidate, error)
}

// DatasetStore reads tenant dataset configuration, including weights.
type DatasetStore interface {
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Dataset, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Dataset, error)
}

// LedgerStore is the atomic storage primitive behind the points ledger.
// DebitIfSufficient must decrement conditionally at the storage layer and
// report domain.ErrInsufficientPoints when the condition does not hold.
type LedgerStore interface {
	GetAccount(ctx context.Context, tenantID string) (*domain.PointsAccount, error)
	DebitIfSufficient(ctx context.Context, tenantID string, amount int64, tx domain.PointsTransaction) (*domain.PointsTransaction, error)
	Credit(ctx context.Context, tenantID string, amount int64, tx domain.PointsTransaction) (*domain.PointsTransaction, error)
	GrantTrialOnce(ctx context.Context, tenantID string, amount int64, tx domain.PointsTransaction) (*domain.PointsTransaction, error)
}

// ConversationStore persists session exchange history. Message counts drive
// first-turn detection.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, tenantID, sessionID string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, msg domain.ConversationMessage) error
}

// Provider is one interchangeable LLM backend in the fallback chain.
// Available must be cheap and side-effect free.
type Provider interface {
	Name() string
	Model() string
	Priority() int
	Available() bool
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts domain.GenerationOptions) (*domain.GenerationResult, error)
}

// UsageTracker records provider usage. Callers treat it as fire-and-forget;
// failures must never propagate into the reply path.
type UsageTracker interface {
	Track(ctx context.Context, event domain.UsageEvent) error
}
