package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mkoval/chatpoint/internal/core/domain"
	"github.com/mkoval/chatpoint/internal/core/ports"
)

type RetrievalConfig struct {
	TopK            int
	CandidateFactor int
	RRFK            int
}

// EvidenceRetriever fans dense and sparse queries out across the request's
// datasets, weights each dataset's contribution, and fuses the per-signal
// rankings into one candidate list.
type EvidenceRetriever struct {
	datasets ports.DatasetStore
	embedder ports.Embedder
	dense    ports.VectorSearcher
	sparse   ports.TextSearcher
	cfg      RetrievalConfig
}

func NewEvidenceRetriever(
	datasets ports.DatasetStore,
	embedder ports.Embedder,
	dense ports.VectorSearcher,
	sparse ports.TextSearcher,
	cfg RetrievalConfig,
) *EvidenceRetriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CandidateFactor <= 0 {
		cfg.CandidateFactor = 2
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = defaultRRFK
	}
	return &EvidenceRetriever{
		datasets: datasets,
		embedder: embedder,
		dense:    dense,
		sparse:   sparse,
		cfg:      cfg,
	}
}

// Retrieve returns the fused evidence set for a query. A failing signal on
// one dataset only excludes that contribution; the call errors with
// ErrRetrievalUnavailable only when every signal on every dataset failed.
func (r *EvidenceRetriever) Retrieve(
	ctx context.Context,
	tenantID, query string,
	datasetIDs []string,
	limit int,
) ([]domain.FusedResult, error) {
	if limit <= 0 {
		limit = r.cfg.TopK
	}

	// An omitted dataset list means search everything the tenant owns.
	var datasets []domain.Dataset
	var err error
	if len(datasetIDs) == 0 {
		datasets, err = r.datasets.ListByTenant(ctx, tenantID)
	} else {
		datasets, err = r.datasets.ListByIDs(ctx, tenantID, datasetIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	if len(datasets) == 0 {
		return []domain.FusedResult{}, nil
	}

	// Over-fetch per signal so fusion has enough material to reorder
	// without starving either side.
	perSignal := limit * r.cfg.CandidateFactor

	queryVector, embedErr := r.embedder.EmbedQuery(ctx, query)
	if embedErr != nil {
		slog.Warn("dense signal degraded: embed query failed", "tenant_id", tenantID, "error", embedErr)
	}

	var (
		mu        sync.Mutex
		dense     []domain.RetrievalCandidate
		sparse    []domain.RetrievalCandidate
		succeeded int
	)
	attempted := 2 * len(datasets)

	g, gctx := errgroup.WithContext(ctx)
	for _, dataset := range datasets {
		weight := dataset.ClampedWeight()
		datasetID := dataset.ID

		if embedErr == nil {
			g.Go(func() error {
				hits, searchErr := r.dense.SearchDense(gctx, queryVector, datasetID, perSignal)
				if searchErr != nil {
					slog.Warn("dense search failed", "dataset_id", datasetID, "error", searchErr)
					return nil
				}
				mu.Lock()
				dense = append(dense, weighted(hits, weight)...)
				succeeded++
				mu.Unlock()
				return nil
			})
		}

		g.Go(func() error {
			hits, searchErr := r.sparse.SearchSparse(gctx, query, datasetID, perSignal)
			if searchErr != nil {
				slog.Warn("sparse search failed", "dataset_id", datasetID, "error", searchErr)
				return nil
			}
			mu.Lock()
			sparse = append(sparse, weighted(hits, weight)...)
			succeeded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if succeeded == 0 {
		return nil, domain.WrapError(
			domain.ErrRetrievalUnavailable,
			"retrieve evidence",
			fmt.Errorf("all %d signal queries failed", attempted),
		)
	}

	sortByWeightedScore(dense)
	sortByWeightedScore(sparse)

	return fuseRRF([][]domain.RetrievalCandidate{dense, sparse}, r.cfg.RRFK, limit), nil
}

// weighted scales raw scores by the dataset relevance weight before
// cross-dataset ranking. Both signals of a dataset get the same factor.
func weighted(hits []domain.RetrievalCandidate, weight float64) []domain.RetrievalCandidate {
	if weight == 1.0 {
		return hits
	}
	out := make([]domain.RetrievalCandidate, len(hits))
	for i, hit := range hits {
		hit.RawScore *= weight
		out[i] = hit
	}
	return out
}

// sortByWeightedScore orders one signal's merged candidate pool best-first.
// Tie-breaks keep the ordering deterministic regardless of goroutine
// completion order.
func sortByWeightedScore(list []domain.RetrievalCandidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].RawScore != list[j].RawScore {
			return list[i].RawScore > list[j].RawScore
		}
		if list[i].DatasetID != list[j].DatasetID {
			return list[i].DatasetID < list[j].DatasetID
		}
		return list[i].ID < list[j].ID
	})
}
