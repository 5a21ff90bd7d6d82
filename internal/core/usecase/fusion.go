package usecase

import (
	"sort"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

const defaultRRFK = 60

type fusedAccumulator struct {
	result    domain.FusedResult
	score     float64
	firstSeen int
}

// fuseRRF merges independently ranked signal lists with reciprocal rank
// fusion: a candidate at zero-based rank r contributes 1/(k+r+1), and
// contributions for the same id are summed across signals. Lists are
// assumed already sorted best-first by their own signal's relevance.
// Ties keep first-encounter order, so output is deterministic for
// identical inputs.
func fuseRRF(signalLists [][]domain.RetrievalCandidate, rrfK, limit int) []domain.FusedResult {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}
	if limit <= 0 {
		return []domain.FusedResult{}
	}

	acc := make(map[string]*fusedAccumulator)
	order := 0
	for _, list := range signalLists {
		for rank, candidate := range dedupeLastSeen(list) {
			entry, ok := acc[candidate.ID]
			if !ok {
				entry = &fusedAccumulator{
					result: domain.FusedResult{
						ID:         candidate.ID,
						DatasetID:  candidate.DatasetID,
						DocumentID: candidate.DocumentID,
						Content:    candidate.Content,
						Source:     domain.SourceHybrid,
					},
					firstSeen: order,
				}
				order++
				acc[candidate.ID] = entry
			}
			entry.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	entries := make([]*fusedAccumulator, 0, len(acc))
	for _, entry := range acc {
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].firstSeen < entries[j].firstSeen
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.FusedResult, 0, len(entries))
	for _, entry := range entries {
		entry.result.FusedScore = entry.score
		out = append(out, entry.result)
	}
	return out
}

// dedupeLastSeen collapses duplicate ids within a single signal's list
// before fusion so they are not double-counted. The last occurrence wins
// both content and rank position.
func dedupeLastSeen(list []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if len(list) < 2 {
		return list
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]domain.RetrievalCandidate, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if _, dup := seen[list[i].ID]; dup {
			continue
		}
		seen[list[i].ID] = struct{}{}
		out = append(out, list[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
