package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nimbus-labs/llmfailover"
	"github.com/nimbus-labs/llmfailover/internal/probelog"
	"github.com/nimbus-labs/llmfailover/providers"
)

// Default endpoints for the hosted backends.
const (
	defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultGroqEndpoint       = "https://api.groq.com/openai/v1/chat/completions"
	defaultAnthropicEndpoint  = "https://api.anthropic.com/v1/messages"
	defaultCohereEndpoint     = "https://api.cohere.com/v1/generate"
)

// defaultEnvConfig builds a config from whichever provider credentials are
// present in the environment, free-tier backends first.
func defaultEnvConfig() llmfailover.Config {
	cfg := llmfailover.DefaultConfig()
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}

	if os.Getenv("GROQ_API_KEY") != "" {
		cfg.Providers = append(cfg.Providers, llmfailover.ProviderConfig{
			Name:          "groq",
			CredentialEnv: "GROQ_API_KEY",
			Endpoint:      defaultGroqEndpoint,
			Models: []llmfailover.ModelConfig{
				{Name: "llama-3.1-8b-instant", Priority: 0, FreeTier: true},
			},
		})
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" {
		cfg.Providers = append(cfg.Providers, llmfailover.ProviderConfig{
			Name:          "openrouter",
			CredentialEnv: "OPENROUTER_API_KEY",
			Endpoint:      defaultOpenRouterEndpoint,
			Models: []llmfailover.ModelConfig{
				{Name: "meta-llama/llama-3.3-70b-instruct:free", Priority: 0, FreeTier: true},
			},
		})
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		cfg.Providers = append(cfg.Providers, llmfailover.ProviderConfig{
			Name:          "openai",
			CredentialEnv: "OPENAI_API_KEY",
			Models: []llmfailover.ModelConfig{
				{Name: "gpt-4o-mini", Priority: 1},
			},
		})
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		cfg.Providers = append(cfg.Providers, llmfailover.ProviderConfig{
			Name:          "anthropic",
			CredentialEnv: "ANTHROPIC_API_KEY",
			Endpoint:      defaultAnthropicEndpoint,
			Models: []llmfailover.ModelConfig{
				{Name: "claude-3-5-haiku-latest", Priority: 1},
			},
		})
	}
	if os.Getenv("COHERE_API_KEY") != "" {
		cfg.Providers = append(cfg.Providers, llmfailover.ProviderConfig{
			Name:          "cohere",
			CredentialEnv: "COHERE_API_KEY",
			Endpoint:      defaultCohereEndpoint,
			Models: []llmfailover.ModelConfig{
				{Name: "command-r", Priority: 2},
			},
		})
	}
	if os.Getenv("BEDROCK_REGION") != "" {
		cfg.Providers = append(cfg.Providers, llmfailover.ProviderConfig{
			Name:   "bedrock",
			Region: os.Getenv("BEDROCK_REGION"),
			Models: []llmfailover.ModelConfig{
				{Name: "anthropic.claude-3-haiku-20240307-v1:0", Priority: 2},
			},
		})
	}
	return cfg
}

// buildOrchestrator turns the config into a populated registry, journal,
// and orchestrator. Providers with missing credentials are skipped with a
// warning so a partial environment still serves.
func buildOrchestrator(ctx context.Context, cfg llmfailover.Config) (*llmfailover.Orchestrator, probelog.Recorder, error) {
	registry := providers.NewRegistry()
	for _, pc := range cfg.Providers {
		inv, err := buildInvoker(ctx, pc)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if inv == nil {
			slog.Warn("provider skipped: credential not set",
				"provider", pc.Name, "env", pc.CredentialEnv)
			continue
		}
		if err := registry.Register(inv, buildCandidates(pc)...); err != nil {
			return nil, nil, err
		}
		slog.Info("provider registered", "provider", pc.Name, "models", len(pc.Models))
	}

	journal, err := buildJournal(cfg.Journal)
	if err != nil {
		return nil, nil, err
	}

	orch, err := llmfailover.New(cfg, registry, journal)
	if err != nil {
		closeJournal(journal)
		return nil, nil, err
	}
	return orch, journal, nil
}

func buildInvoker(ctx context.Context, pc llmfailover.ProviderConfig) (providers.Invoker, error) {
	switch pc.Name {
	case "bedrock":
		return providers.NewBedrock(ctx, pc.Region,
			os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"))
	case "relay":
		clientID := os.Getenv(pc.ClientIDEnv)
		clientSecret := os.Getenv(pc.ClientSecretEnv)
		if clientID == "" || clientSecret == "" {
			return nil, nil
		}
		return providers.NewRelay("relay", pc.TokenURL, clientID, clientSecret), nil
	}

	key := os.Getenv(pc.CredentialEnv)
	if key == "" {
		return nil, nil
	}
	switch pc.Name {
	case "openai":
		return providers.NewOpenAI(key, pc.Endpoint), nil
	case "anthropic":
		return providers.NewAnthropic(key), nil
	case "cohere":
		return providers.NewCohere(key), nil
	case "openrouter", "groq":
		return providers.NewOpenAIChat(pc.Name, key), nil
	default:
		return nil, fmt.Errorf("unknown provider name %q", pc.Name)
	}
}

func buildCandidates(pc llmfailover.ProviderConfig) []providers.Candidate {
	out := make([]providers.Candidate, 0, len(pc.Models))
	for _, m := range pc.Models {
		out = append(out, providers.Candidate{
			Name:      m.Name,
			Endpoint:  pc.Endpoint,
			FreeTier:  m.FreeTier,
			MaxTokens: m.MaxTokens,
			Timeout:   m.Timeout(),
			Priority:  m.Priority,
		})
	}
	return out
}

func buildJournal(jc llmfailover.JournalConfig) (probelog.Recorder, error) {
	switch jc.Driver {
	case "":
		return probelog.NoopRecorder{}, nil
	case "sqlite":
		return probelog.NewSQLite(jc.DSN)
	case "postgres":
		return probelog.NewPostgres(jc.DSN)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", jc.Driver)
	}
}

func closeJournal(journal probelog.Recorder) {
	if c, ok := journal.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
