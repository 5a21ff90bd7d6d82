package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

func TestGenerateSendsSystemAndPrompt(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":" grounded answer ","prompt_eval_count":42,"eval_count":17}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen-model", "embed-model", 2, nil)
	result, err := client.Generate(context.Background(), "system instructions", "user question", domain.GenerationOptions{MaxTokens: 256})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Text != "grounded answer" {
		t.Fatalf("expected trimmed response text, got %q", result.Text)
	}
	if result.InputTokens != 42 || result.OutputTokens != 17 {
		t.Fatalf("expected token counts from eval fields, got %d/%d", result.InputTokens, result.OutputTokens)
	}
	if payload["system"] != "system instructions" || payload["prompt"] != "user question" {
		t.Fatalf("unexpected request payload: %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["num_predict"] != float64(256) {
		t.Fatalf("expected num_predict option, got %v", options)
	}
}

func TestEmbedQueryIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen-model", "embed-model", 2, nil)
	_, err := NewEmbedder(client).EmbedQuery(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to classify as temporary, got %v", err)
	}
}

func TestAvailableRequiresConfiguration(t *testing.T) {
	if New("", "gen", "embed", 1, nil).Available() {
		t.Fatalf("client without base URL must report unavailable")
	}
	if !New("http://localhost:11434", "gen", "embed", 1, nil).Available() {
		t.Fatalf("configured client must report available")
	}
}
