package llmfailover

import "time"

// Config holds the full runtime configuration: which providers to register,
// how the per-provider circuit breakers behave, and where diagnostic probe
// results are journaled.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `json:"server" yaml:"server"`
	// Providers lists the backends to register. A provider whose credential
	// environment variable is unset is skipped at startup, not an error.
	Providers []ProviderConfig `json:"providers" yaml:"providers"`
	// Breaker configures the per-provider circuit breakers.
	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`
	// Journal configures optional persistence of probe and breaker events.
	Journal JournalConfig `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// ServerConfig configures the HTTP listener and logging.
type ServerConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
}

// ProviderConfig describes one backend and its candidate models.
type ProviderConfig struct {
	// Name selects the invoker implementation: openai, openrouter, groq,
	// anthropic, cohere, bedrock, or relay.
	Name string `json:"name" yaml:"name"`
	// CredentialEnv names the environment variable holding the API key.
	CredentialEnv string `json:"credential_env,omitempty" yaml:"credential_env,omitempty"`
	// Endpoint is the backend base URL. Optional for SDK-backed providers.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Region applies to bedrock only.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
	// TokenURL, ClientIDEnv, and ClientSecretEnv apply to relay only.
	TokenURL        string `json:"token_url,omitempty" yaml:"token_url,omitempty"`
	ClientIDEnv     string `json:"client_id_env,omitempty" yaml:"client_id_env,omitempty"`
	ClientSecretEnv string `json:"client_secret_env,omitempty" yaml:"client_secret_env,omitempty"`
	// Models are the candidate models served by this provider.
	Models []ModelConfig `json:"models" yaml:"models"`
}

// ModelConfig describes one candidate model.
type ModelConfig struct {
	Name string `json:"name" yaml:"name"`
	// Priority orders failover; lower is tried earlier.
	Priority int `json:"priority" yaml:"priority"`
	// FreeTier breaks priority ties in favour of free-tier models.
	FreeTier  bool `json:"is_free_tier,omitempty" yaml:"is_free_tier,omitempty"`
	MaxTokens int  `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// TimeoutSeconds bounds one attempt against this model. Zero means the
	// default of 30 seconds.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Timeout returns the per-attempt deadline for this model.
func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// BreakerConfig configures the per-provider circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens a
	// breaker. Zero means the default of 5.
	FailureThreshold int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	// CooldownSeconds is how long an open breaker rejects calls before
	// probing resumes. Zero means the default of 60.
	CooldownSeconds int `json:"cooldown_seconds,omitempty" yaml:"cooldown_seconds,omitempty"`
	// ProbeLimit caps concurrent half-open probes. Zero means the default
	// of 2.
	ProbeLimit int `json:"probe_limit,omitempty" yaml:"probe_limit,omitempty"`
}

// Cooldown returns the configured cooldown as a duration.
func (b BreakerConfig) Cooldown() time.Duration {
	if b.CooldownSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(b.CooldownSeconds) * time.Second
}

// JournalConfig configures optional persistence of probe and breaker
// events. Driver is "sqlite", "postgres", or empty to disable.
type JournalConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// DefaultConfig returns a config with the standard listener address and
// breaker settings and no providers.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CooldownSeconds:  60,
			ProbeLimit:       2,
		},
	}
}
