package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

func TestSearchDenseScopesCollectionByDataset(t *testing.T) {
	var requestedPath string
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[{"id":"p-1","score":0.91,"payload":{"document_id":"doc-1","text":"first chunk"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "ds_")
	got, err := client.SearchDense(context.Background(), []float32{0.1, 0.2}, "sales", 10)
	if err != nil {
		t.Fatalf("SearchDense() error = %v", err)
	}
	if requestedPath != "/collections/ds_sales/points/search" {
		t.Fatalf("unexpected path %q", requestedPath)
	}
	if payload["limit"] != float64(10) {
		t.Fatalf("expected limit in request, got %v", payload)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	c := got[0]
	if c.ID != "p-1" || c.DatasetID != "sales" || c.DocumentID != "doc-1" || c.Content != "first chunk" {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if c.Signal != domain.SignalDense || c.RawScore != 0.91 {
		t.Fatalf("expected dense signal with raw score, got %+v", c)
	}
}

func TestSearchDenseReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "")
	if _, err := client.SearchDense(context.Background(), []float32{0.1}, "missing", 5); err == nil {
		t.Fatalf("expected error for failed search")
	}
}
