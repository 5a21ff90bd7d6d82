// Package neo4j runs the sparse full-text signal against a Lucene index on
// chunk nodes.
package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

const queryNodesCypher = `
CALL db.index.fulltext.queryNodes($index, $query, {limit: $fetch}) YIELD node, score
WHERE node.dataset_id = $dataset_id
RETURN node.chunk_id AS chunk_id, node.document_id AS document_id, node.text AS text, score
LIMIT $limit
`

type Searcher struct {
	driver   neo4j.DriverWithContext
	database string
	index    string
}

type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Index    string
	Timeout  time.Duration
}

func New(cfg Config) (*Searcher, error) {
	if cfg.Index == "" {
		cfg.Index = "chunk_text"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &Searcher{driver: driver, database: cfg.Database, index: cfg.Index}, nil
}

func (s *Searcher) SearchSparse(ctx context.Context, query, datasetID string, limit int) ([]domain.RetrievalCandidate, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	// The index spans all datasets, so over-fetch before the dataset filter
	// trims the result.
	params := map[string]any{
		"index":      s.index,
		"query":      escapeLucene(query),
		"dataset_id": datasetID,
		"fetch":      limit * 4,
		"limit":      limit,
	}

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, queryNodesCypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j fulltext search: %w", err)
	}

	rows, _ := records.([]*neo4j.Record)
	out := make([]domain.RetrievalCandidate, 0, len(rows))
	for _, record := range rows {
		score, _ := record.Get("score")
		out = append(out, domain.RetrievalCandidate{
			ID:         stringValue(record, "chunk_id"),
			DatasetID:  datasetID,
			DocumentID: stringValue(record, "document_id"),
			Content:    stringValue(record, "text"),
			RawScore:   floatValue(score),
			Signal:     domain.SignalSparse,
		})
	}
	return out, nil
}

func (s *Searcher) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func stringValue(record *neo4j.Record, key string) string {
	v, _ := record.Get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// escapeLucene neutralises full-text query syntax so user input is matched
// as plain terms.
func escapeLucene(query string) string {
	var b strings.Builder
	for _, r := range query {
		switch r {
		case '+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
