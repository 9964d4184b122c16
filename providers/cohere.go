package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// CohereInvoker speaks the generate wire format: the reply carries a list
// of generation objects, each with its own text. Messages are flattened
// into a single prompt since this family predates chat-shaped requests.
type CohereInvoker struct {
	Base
	httpClient *http.Client
}

// NewCohere creates a Cohere invoker.
func NewCohere(apiKey string) *CohereInvoker {
	return &CohereInvoker{
		Base:       Base{name: "cohere", apiKey: apiKey},
		httpClient: &http.Client{},
	}
}

type cohereRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type cohereGeneration struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type cohereResponse struct {
	ID          string             `json:"id"`
	Generations []cohereGeneration `json:"generations"`
	Meta        struct {
		BilledUnits struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

type cohereErrorResponse struct {
	Message string `json:"message"`
}

// Generate sends a generation request to candidate.Endpoint.
func (p *CohereInvoker) Generate(ctx context.Context, c Candidate, req Request) (*Generation, error) {
	// Flatten the conversation into a prompt, newest turn last.
	var sb strings.Builder
	for _, msg := range req.Messages {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	wire := cohereRequest{
		Model:       c.Name,
		Prompt:      sb.String(),
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
		var errResp cohereErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return nil, NewBackendError(p.name, status, []byte(errResp.Message))
		}
		return nil, NewBackendError(p.name, status, body)
	}

	var resp cohereResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewMalformedError(p.name, err)
	}
	if len(resp.Generations) == 0 {
		return nil, NewMalformedError(p.name, errNoChoices)
	}
	text := resp.Generations[0].Text
	if strings.TrimSpace(text) == "" {
		return nil, NewMalformedError(p.name, errEmptyText)
	}

	return &Generation{
		Text:             text,
		Model:            c.Name,
		PromptTokens:     resp.Meta.BilledUnits.InputTokens,
		CompletionTokens: resp.Meta.BilledUnits.OutputTokens,
	}, nil
}
