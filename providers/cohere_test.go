package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCohereGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var wire cohereRequest
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !strings.Contains(wire.Prompt, "hello") {
			t.Errorf("prompt missing message content: %q", wire.Prompt)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "gen-1",
			"generations": []map[string]string{
				{"id": "g0", "text": "first generation"},
				{"id": "g1", "text": "second generation"},
			},
			"meta": map[string]any{
				"billed_units": map[string]int{"input_tokens": 5, "output_tokens": 2},
			},
		})
	}))
	defer server.Close()

	inv := NewCohere("test-key")
	gen, err := inv.Generate(context.Background(), Candidate{
		Name:     "command-r",
		Endpoint: server.URL,
	}, Request{Messages: []Message{{Role: RoleUser, Content: "hello"}}})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gen.Text != "first generation" {
		t.Errorf("text = %q, want first generation in the list", gen.Text)
	}
	if gen.PromptTokens != 5 {
		t.Errorf("prompt tokens = %d", gen.PromptTokens)
	}
}

func TestCohereErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid model"}`))
	}))
	defer server.Close()

	inv := NewCohere("k")
	_, err := inv.Generate(context.Background(), Candidate{Name: "bad", Endpoint: server.URL},
		Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *CallError, got %T", err)
	}
	if callErr.Kind != KindBackend {
		t.Errorf("kind = %s, want backend_error", callErr.Kind)
	}
	if callErr.Body != "invalid model" {
		t.Errorf("body = %q, want extracted message field", callErr.Body)
	}
}

func TestCohereEmptyGenerations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"gen-2","generations":[]}`))
	}))
	defer server.Close()

	inv := NewCohere("k")
	_, err := inv.Generate(context.Background(), Candidate{Name: "command-r", Endpoint: server.URL},
		Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *CallError, got %T", err)
	}
	if callErr.Kind != KindMalformed {
		t.Errorf("kind = %s, want malformed_response", callErr.Kind)
	}
}
