package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

// BedrockInvoker calls AWS Bedrock via the runtime InvokeModel API.
// Supports Anthropic Claude and Amazon Titan model families; the body
// format is chosen from the candidate's model ID prefix. The credential is
// the ambient AWS configuration (or explicit static keys), not a bearer
// token.
type BedrockInvoker struct {
	Base
	client *bedrockruntime.Client
	region string
}

// NewBedrock creates a Bedrock invoker. region defaults to us-east-1.
// accessKey/secretKey are optional; when empty the default AWS credential
// chain is used.
func NewBedrock(ctx context.Context, region, accessKey, secretKey string) (*BedrockInvoker, error) {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &BedrockInvoker{
		Base:   Base{name: "bedrock"},
		client: bedrockruntime.NewFromConfig(cfg),
		region: region,
	}, nil
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
	System           string    `json:"system,omitempty"`
}

type bedrockAnthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type bedrockTitanRequest struct {
	InputText            string `json:"inputText"`
	TextGenerationConfig struct {
		MaxTokenCount int     `json:"maxTokenCount,omitempty"`
		Temperature   float64 `json:"temperature,omitempty"`
	} `json:"textGenerationConfig"`
}

type bedrockTitanResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount int    `json:"tokenCount"`
		OutputText string `json:"outputText"`
	} `json:"results"`
}

// Generate invokes the candidate's model on Bedrock.
func (p *BedrockInvoker) Generate(ctx context.Context, c Candidate, req Request) (*Generation, error) {
	switch {
	case strings.HasPrefix(c.Name, "anthropic."):
		return p.generateAnthropic(ctx, c, req)
	case strings.HasPrefix(c.Name, "amazon.titan"):
		return p.generateTitan(ctx, c, req)
	default:
		return nil, NewMalformedError(p.name, fmt.Errorf("unsupported Bedrock model prefix: %s", c.Name))
	}
}

func (p *BedrockInvoker) invoke(ctx context.Context, modelID string, wire any, out any) error {
	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal bedrock request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		var apierr smithy.APIError
		if errors.As(err, &apierr) {
			return NewBackendError(p.name, 0, []byte(apierr.ErrorCode()+": "+apierr.ErrorMessage()))
		}
		return ClassifyTransport(p.name, err)
	}

	if err := json.Unmarshal(output.Body, out); err != nil {
		return NewMalformedError(p.name, err)
	}
	return nil
}

func (p *BedrockInvoker) generateAnthropic(ctx context.Context, c Candidate, req Request) (*Generation, error) {
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

	wire := bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         messages,
		Temperature:      req.Temperature,
		System:           strings.Join(systemParts, "\n"),
	}

	var resp bedrockAnthropicResponse
	if err := p.invoke(ctx, c.Name, wire, &resp); err != nil {
		return nil, err
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

	return &Generation{
		Text:             text,
		Model:            c.Name,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

func (p *BedrockInvoker) generateTitan(ctx context.Context, c Candidate, req Request) (*Generation, error) {
	var sb strings.Builder
	for _, msg := range req.Messages {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	wire := bedrockTitanRequest{InputText: sb.String()}
	switch {
	case req.MaxTokens != nil:
		wire.TextGenerationConfig.MaxTokenCount = *req.MaxTokens
	case c.MaxTokens > 0:
		wire.TextGenerationConfig.MaxTokenCount = c.MaxTokens
	}
	if req.Temperature != nil {
		wire.TextGenerationConfig.Temperature = *req.Temperature
	}

	var resp bedrockTitanResponse
	if err := p.invoke(ctx, c.Name, wire, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, NewMalformedError(p.name, errNoChoices)
	}
	text := resp.Results[0].OutputText
	if strings.TrimSpace(text) == "" {
		return nil, NewMalformedError(p.name, errEmptyText)
	}

	completion := 0
	for _, r := range resp.Results {
		completion += r.TokenCount
	}
	return &Generation{
		Text:             text,
		Model:            c.Name,
		PromptTokens:     resp.InputTextTokenCount,
		CompletionTokens: completion,
	}, nil
}
