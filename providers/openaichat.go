package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// OpenAIChatInvoker speaks the OpenAI-compatible chat-completions wire
// format over plain HTTP: the reply carries a single top-level message
// content per choice. Several hosted backends (OpenRouter, Groq, and most
// self-hosted gateways) share this protocol, so the same invoker serves
// them all under different provider names.
type OpenAIChatInvoker struct {
	Base
	httpClient *http.Client
}

// NewOpenAIChat creates an invoker for an OpenAI-compatible backend
// registered under the given provider name.
func NewOpenAIChat(name, apiKey string) *OpenAIChatInvoker {
	return &OpenAIChatInvoker{
		Base:       Base{name: name, apiKey: apiKey},
		httpClient: &http.Client{},
	}
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends a chat completion request to candidate.Endpoint.
func (p *OpenAIChatInvoker) Generate(ctx context.Context, c Candidate, req Request) (*Generation, error) {
	wire := openAIChatRequest{
		Model:       c.Name,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if wire.MaxTokens == nil && c.MaxTokens > 0 {
		mt := c.MaxTokens
		wire.MaxTokens = &mt
	}

	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	status, body, err := postJSON(ctx, p.httpClient, p.name, c.Endpoint, headers, wire)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewBackendError(p.name, status, body)
	}

	var resp openAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewMalformedError(p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewMalformedError(p.name, errNoChoices)
	}
	text := resp.Choices[0].Message.Content
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
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
