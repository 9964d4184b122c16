package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimbus-labs/llmfailover"
	"github.com/nimbus-labs/llmfailover/internal/probelog"
	"github.com/nimbus-labs/llmfailover/providers"
)

type fakeInvoker struct {
	name string
	fail error
}

func (f *fakeInvoker) Name() string { return f.name }

func (f *fakeInvoker) Generate(_ context.Context, c providers.Candidate, _ providers.Request) (*providers.Generation, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &providers.Generation{Text: "ok from " + f.name, Model: c.Name}, nil
}

func newTestServer(t *testing.T, invokers ...*fakeInvoker) *httptest.Server {
	t.Helper()
	registry := providers.NewRegistry()
	for i, inv := range invokers {
		err := registry.Register(inv, providers.Candidate{Name: inv.name + "-model", Priority: i})
		if err != nil {
			t.Fatal(err)
		}
	}
	orch, err := llmfailover.New(llmfailover.DefaultConfig(), registry, nil)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(newRouter(orch, probelog.NoopRecorder{}))
	t.Cleanup(server.Close)
	return server
}

func TestGenerateEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeInvoker{name: "alpha"})

	resp, err := http.Post(server.URL+"/v1/generate", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hello"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Text != "ok from alpha" {
		t.Errorf("text = %q", body.Text)
	}
	if !body.Meta.Success || body.Meta.Provider != "alpha" {
		t.Errorf("meta = %+v", body.Meta)
	}
}

func TestGenerateEndpointFallsBack(t *testing.T) {
	server := newTestServer(t, &fakeInvoker{name: "alpha", fail: errors.New("boom")})

	resp, err := http.Post(server.URL+"/v1/generate", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hello"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	// A fallback answer is still an answer.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Meta.Success {
		t.Error("meta.Success = true for a fallback answer")
	}
	if body.Meta.FallbackReason == "" {
		t.Error("fallback reason missing")
	}
	if body.Text == "" {
		t.Error("fallback text missing")
	}
}

func TestGenerateEndpointRejectsInvalidRequests(t *testing.T) {
	server := newTestServer(t, &fakeInvoker{name: "alpha"})

	for name, payload := range map[string]string{
		"not json":    "{",
		"no messages": `{"messages":[]}`,
		"bad role":    `{"messages":[{"role":"tool","content":"x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/v1/generate", "application/json",
				strings.NewReader(payload))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeInvoker{name: "alpha"})

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var health llmfailover.Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if len(health.Providers) != 1 {
		t.Errorf("providers = %d, want 1", len(health.Providers))
	}
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	server := newTestServer(t, &fakeInvoker{name: "alpha", fail: errors.New("boom")})

	// Drive enough traffic to make the only provider unhealthy.
	for i := 0; i < 5; i++ {
		resp, err := http.Post(server.URL+"/v1/generate", "application/json",
			strings.NewReader(`{"messages":[{"role":"user","content":"hello"}]}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestAdminProbeEndpoint(t *testing.T) {
	server := newTestServer(t,
		&fakeInvoker{name: "alpha"},
		&fakeInvoker{name: "beta", fail: errors.New("boom")},
	)

	resp, err := http.Post(server.URL+"/admin/probe", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var results []llmfailover.ProbeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
}

func TestAdminJournalWithoutStore(t *testing.T) {
	server := newTestServer(t, &fakeInvoker{name: "alpha"})

	resp, err := http.Get(server.URL + "/admin/journal")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no journal is configured", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeInvoker{name: "alpha"})

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestBuildCandidatesAppliesModelSettings(t *testing.T) {
	pc := llmfailover.ProviderConfig{
		Name:     "openrouter",
		Endpoint: defaultOpenRouterEndpoint,
		Models: []llmfailover.ModelConfig{
			{Name: "free-model", Priority: 0, FreeTier: true, TimeoutSeconds: 10},
			{Name: "paid-model", Priority: 1, MaxTokens: 4096},
		},
	}
	cands := buildCandidates(pc)
	if len(cands) != 2 {
		t.Fatalf("candidates = %d", len(cands))
	}
	if !cands[0].FreeTier || cands[0].Timeout.Seconds() != 10 {
		t.Errorf("first candidate = %+v", cands[0])
	}
	if cands[1].MaxTokens != 4096 || cands[1].Endpoint != defaultOpenRouterEndpoint {
		t.Errorf("second candidate = %+v", cands[1])
	}
}
