package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// RelayInvoker targets an enterprise OpenAI-compatible gateway that issues
// short-lived bearer tokens via the OAuth2 client-credentials flow instead
// of static API keys. The oauth2 transport mints and refreshes the token
// transparently.
type RelayInvoker struct {
	Base
	httpClient *http.Client
}

// NewRelay creates a relay invoker. tokenURL is the OAuth2 token endpoint;
// clientID/clientSecret are the client-credentials grant.
func NewRelay(name, tokenURL, clientID, clientSecret string) *RelayInvoker {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &RelayInvoker{
		Base:       Base{name: name},
		httpClient: cc.Client(context.Background()),
	}
}

// Generate sends a chat completion request to candidate.Endpoint. The wire
// format matches OpenAIChatInvoker; only the authentication differs.
func (p *RelayInvoker) Generate(ctx context.Context, c Candidate, req Request) (*Generation, error) {
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

	// Authorization header is injected by the oauth2 transport.
	status, body, err := postJSON(ctx, p.httpClient, p.name, c.Endpoint, nil, wire)
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

	return &Generation{
		Text:             text,
		Model:            c.Name,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
