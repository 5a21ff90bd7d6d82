package domain

// Signal identifies the retrieval source a candidate came from.
type Signal string

const (
	SignalDense  Signal = "dense"
	SignalSparse Signal = "sparse"
)

// SourceHybrid marks results whose per-signal provenance was collapsed by fusion.
const SourceHybrid = "hybrid"

// RetrievalCandidate is one evidence unit from a single signal.
// Created per query and discarded after fusion.
type RetrievalCandidate struct {
	ID         string  `json:"id"`
	DatasetID  string  `json:"dataset_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	RawScore   float64 `json:"raw_score"`
	Signal     Signal  `json:"signal"`
}

// FusedResult is the output of rank fusion. FusedScore is the sum of
// reciprocal-rank contributions across all signals that produced this id.
type FusedResult struct {
	ID         string  `json:"id"`
	DatasetID  string  `json:"dataset_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	FusedScore float64 `json:"fused_score"`
	Source     string  `json:"source"`
}

// Dataset is a tenant-linked knowledge source with a relevance weight
// that scales its contribution relative to other datasets.
type Dataset struct {
	ID       string
	TenantID string
	Name     string
	Weight   float64
}

const (
	DatasetWeightMin = 0.1
	DatasetWeightMax = 10.0
)

// ClampedWeight returns the configured weight bounded to the valid range.
// A zero value (unset) falls back to neutral weight 1.
func (d Dataset) ClampedWeight() float64 {
	if d.Weight == 0 {
		return 1.0
	}
	if d.Weight < DatasetWeightMin {
		return DatasetWeightMin
	}
	if d.Weight > DatasetWeightMax {
		return DatasetWeightMax
	}
	return d.Weight
}
