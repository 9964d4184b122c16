package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIInvoker calls OpenAI through the official SDK. Same wire family as
// OpenAIChatInvoker, but the SDK handles retriable transport details and
// error envelopes.
type OpenAIInvoker struct {
	Base
	client openai.Client
}

// NewOpenAI creates an OpenAI invoker. baseURL overrides the API endpoint
// (pass "" for the default).
func NewOpenAI(apiKey, baseURL string) *OpenAIInvoker {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// The orchestrator owns retries via failover; a hidden SDK retry
		// would break the one-attempt-per-candidate guarantee.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIInvoker{
		Base:   Base{name: "openai", apiKey: apiKey},
		client: openai.NewClient(opts...),
	}
}

// Generate sends a chat completion request to OpenAI.
func (p *OpenAIInvoker) Generate(ctx context.Context, c Candidate, req Request) (*Generation, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.Name,
		Messages: buildOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	switch {
	case req.MaxTokens != nil:
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	case c.MaxTokens > 0:
		params.MaxTokens = openai.Int(int64(c.MaxTokens))
	}

	var callOpts []option.RequestOption
	if c.Endpoint != "" {
		callOpts = append(callOpts, option.WithBaseURL(c.Endpoint))
	}
	completion, err := p.client.Chat.Completions.New(ctx, params, callOpts...)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return nil, NewBackendError(p.name, apierr.StatusCode, []byte(apierr.Error()))
		}
		return nil, ClassifyTransport(p.name, err)
	}

	if len(completion.Choices) == 0 {
		return nil, NewMalformedError(p.name, errNoChoices)
	}
	text := completion.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, NewMalformedError(p.name, errEmptyText)
	}

	return &Generation{
		Text:             text,
		Model:            completion.Model,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

// buildOpenAIMessages converts Messages to the openai-go SDK union type.
func buildOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
