package llmfailover

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", `
server:
  addr: ":9090"
  log_level: debug
providers:
  - name: openrouter
    credential_env: OPENROUTER_API_KEY
    endpoint: https://openrouter.ai/api/v1/chat/completions
    models:
      - name: meta-llama/llama-3-70b
        priority: 0
        is_free_tier: true
        timeout_seconds: 15
      - name: anthropic/claude-sonnet
        priority: 1
        max_tokens: 4096
breaker:
  failure_threshold: 3
  cooldown_seconds: 30
journal:
  driver: sqlite
  dsn: diag.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if len(cfg.Providers) != 1 || len(cfg.Providers[0].Models) != 2 {
		t.Fatalf("providers not bound: %+v", cfg.Providers)
	}
	m := cfg.Providers[0].Models[0]
	if !m.FreeTier || m.TimeoutSeconds != 15 {
		t.Errorf("model fields not bound: %+v", m)
	}
	if cfg.Breaker.FailureThreshold != 3 {
		t.Errorf("failure_threshold = %d", cfg.Breaker.FailureThreshold)
	}
	// Unset breaker fields keep their defaults.
	if cfg.Breaker.ProbeLimit != 2 {
		t.Errorf("probe_limit = %d, want default 2", cfg.Breaker.ProbeLimit)
	}
	if cfg.Journal.Driver != "sqlite" {
		t.Errorf("journal driver = %s", cfg.Journal.Driver)
	}

	if err := ValidateConfig(*cfg); err != nil {
		t.Errorf("ValidateConfig rejected valid config: %v", err)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{
  "providers": [
    {
      "name": "groq",
      "credential_env": "GROQ_API_KEY",
      "endpoint": "https://api.groq.com/openai/v1/chat/completions",
      "models": [{"name": "mixtral-8x7b", "priority": 0}]
    }
  ]
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != "groq" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %s, want default", cfg.Server.Addr)
	}
}

func TestLoadConfigSchemaRejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown provider", "c.yaml", `
providers:
  - name: mystery
    credential_env: X
    models: [{name: m}]
`},
		{"misspelled field", "c.yaml", `
breaker:
  failure_treshold: 5
`},
		{"no models", "c.yaml", `
providers:
  - name: openai
    credential_env: OPENAI_API_KEY
    models: []
`},
		{"zero timeout", "c.yaml", `
providers:
  - name: openai
    credential_env: OPENAI_API_KEY
    models: [{name: gpt-4o, timeout_seconds: 0}]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.file, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected schema error, got nil")
			}
		})
	}
}

func TestLoadConfigUnsupportedExtension(t *testing.T) {
	path := writeConfigFile(t, "config.toml", "x = 1")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestValidateConfigCrossFieldRules(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.Providers = []ProviderConfig{{
			Name:          "openai",
			CredentialEnv: "OPENAI_API_KEY",
			Models:        []ModelConfig{{Name: "gpt-4o"}},
		}}
		return cfg
	}

	if err := ValidateConfig(base()); err != nil {
		t.Fatalf("base config rejected: %v", err)
	}

	dup := base()
	dup.Providers = append(dup.Providers, dup.Providers[0])
	if err := ValidateConfig(dup); err == nil {
		t.Error("duplicate provider accepted")
	}

	noCred := base()
	noCred.Providers[0].CredentialEnv = ""
	if err := ValidateConfig(noCred); err == nil {
		t.Error("missing credential_env accepted")
	}

	relay := base()
	relay.Providers[0] = ProviderConfig{
		Name:   "relay",
		Models: []ModelConfig{{Name: "internal-model"}},
	}
	if err := ValidateConfig(relay); err == nil {
		t.Error("relay without token_url accepted")
	}

	bedrock := base()
	bedrock.Providers[0] = ProviderConfig{
		Name:   "bedrock",
		Models: []ModelConfig{{Name: "anthropic.claude-3-sonnet"}},
	}
	if err := ValidateConfig(bedrock); err != nil {
		t.Errorf("bedrock without credential_env rejected: %v", err)
	}

	journal := base()
	journal.Journal = JournalConfig{Driver: "postgres"}
	if err := ValidateConfig(journal); err == nil {
		t.Error("journal driver without dsn accepted")
	}
}

func TestModelConfigTimeout(t *testing.T) {
	if got := (ModelConfig{}).Timeout().Seconds(); got != 30 {
		t.Errorf("default timeout = %vs, want 30s", got)
	}
	if got := (ModelConfig{TimeoutSeconds: 5}).Timeout().Seconds(); got != 5 {
		t.Errorf("timeout = %vs, want 5s", got)
	}
}
