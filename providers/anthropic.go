package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// AnthropicInvoker speaks the Anthropic messages wire format: the reply is
// a list of typed content blocks rather than a single text field. System
// messages travel in a dedicated top-level field and max_tokens is
// mandatory.
type AnthropicInvoker struct {
	Base
	httpClient *http.Client
}

// NewAnthropic creates an Anthropic invoker.
func NewAnthropic(apiKey string) *AnthropicInvoker {
	return &AnthropicInvoker{
		Base:       Base{name: "anthropic", apiKey: apiKey},
		httpClient: &http.Client{},
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	ID      string                  `json:"id"`
	Model   string                  `json:"model"`
	Content []anthropicContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends a messages request to candidate.Endpoint.
func (p *AnthropicInvoker) Generate(ctx context.Context, c Candidate, req Request) (*Generation, error) {
	// System messages move to the dedicated field; Anthropic rejects them
	// in the messages array.
	var systemParts []string
	messages := make([]Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		messages = append(messages, msg)
	}

	maxTokens := c.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	wire := anthropicRequest{
		Model:       c.Name,
		MaxTokens:   maxTokens,
		System:      strings.Join(systemParts, "\n"),
		Messages:    messages,
		Temperature: req.Temperature,
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}
	status, body, err := postJSON(ctx, p.httpClient, p.name, c.Endpoint, headers, wire)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewBackendError(p.name, status, body)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewMalformedError(p.name, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, NewMalformedError(p.name, errEmptyText)
	}

	model := resp.Model
	if model == "" {
		model = c.Name
	}
	return &Generation{
		Text:             text,
		Model:            model,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}
