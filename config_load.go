package llmfailover

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// configSchema is validated against the parsed document before it is bound
// to Config, so typos in field names and out-of-range values are reported
// with a JSON pointer instead of silently producing zero values.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "server": {
      "type": "object",
      "properties": {
        "addr": {"type": "string"},
        "log_level": {"enum": ["debug", "info", "warn", "error"]},
        "log_format": {"enum": ["json", "text"]}
      },
      "additionalProperties": false
    },
    "providers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "models"],
        "properties": {
          "name": {"enum": ["openai", "openrouter", "groq", "anthropic", "cohere", "bedrock", "relay"]},
          "credential_env": {"type": "string"},
          "endpoint": {"type": "string"},
          "region": {"type": "string"},
          "token_url": {"type": "string"},
          "client_id_env": {"type": "string"},
          "client_secret_env": {"type": "string"},
          "models": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "priority": {"type": "integer", "minimum": 0},
                "is_free_tier": {"type": "boolean"},
                "max_tokens": {"type": "integer", "minimum": 1},
                "timeout_seconds": {"type": "integer", "minimum": 1}
              },
              "additionalProperties": false
            }
          }
        },
        "additionalProperties": false
      }
    },
    "breaker": {
      "type": "object",
      "properties": {
        "failure_threshold": {"type": "integer", "minimum": 1},
        "cooldown_seconds": {"type": "integer", "minimum": 1},
        "probe_limit": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    },
    "journal": {
      "type": "object",
      "properties": {
        "driver": {"enum": ["sqlite", "postgres"]},
        "dsn": {"type": "string"}
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString("config.schema.json", configSchema)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml). The document is
// checked against the config schema before binding.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var doc any
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	// Re-marshal the validated document and bind it through the struct tags
	// so YAML and JSON take the same path.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalizing config: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, fmt.Errorf("binding config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig checks cross-field constraints the schema cannot express.
func ValidateConfig(cfg Config) error {
	seen := make(map[string]bool)
	for _, p := range cfg.Providers {
		if seen[p.Name] {
			return fmt.Errorf("provider %q configured twice", p.Name)
		}
		seen[p.Name] = true

		switch p.Name {
		case "bedrock":
			// Credentials come from the AWS chain; nothing else required.
		case "relay":
			if p.TokenURL == "" || p.ClientIDEnv == "" || p.ClientSecretEnv == "" {
				return fmt.Errorf("provider relay requires token_url, client_id_env, and client_secret_env")
			}
			if p.Endpoint == "" {
				return fmt.Errorf("provider relay requires an endpoint")
			}
		default:
			if p.CredentialEnv == "" {
				return fmt.Errorf("provider %q requires credential_env", p.Name)
			}
		}

		if len(p.Models) == 0 {
			return fmt.Errorf("provider %q has no models", p.Name)
		}
	}

	if cfg.Journal.Driver != "" && cfg.Journal.DSN == "" {
		return fmt.Errorf("journal driver %q requires a dsn", cfg.Journal.Driver)
	}
	return nil
}
