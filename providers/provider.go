// Package providers defines the Invoker interface and shared data types
// used across all LLM backend adapters.
//
// Each Invoker translates the generic (messages, temperature, max-tokens)
// request into one backend wire protocol and parses its reply. Every
// non-success path surfaces as a typed *CallError; an invoker never returns
// empty text silently.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the provider-agnostic generation request. Fields carry the
// caller's messages plus optional sampling and output limits; everything
// model-specific (model ID, endpoint, timeout) lives on the Candidate.
type Request struct {
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Validate checks basic shape and ranges. Message semantics are not
// inspected; that is the calling layer's concern.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return errors.New("temperature must be between 0 and 2")
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return errors.New("max_tokens must be positive")
	}
	return nil
}

// UserText returns the concatenated content of all user messages. The
// fallback responder matches keywords against this.
func (r Request) UserText() string {
	var sb strings.Builder
	for _, m := range r.Messages {
		if m.Role != RoleUser {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// Candidate is one invokable (provider, model) configuration. Lower
// Priority is tried earlier; FreeTier breaks priority ties in favour of
// free-tier candidates.
type Candidate struct {
	Name      string        `json:"name"`
	Provider  string        `json:"provider"`
	Endpoint  string        `json:"endpoint"`
	FreeTier  bool          `json:"is_free_tier"`
	MaxTokens int           `json:"max_tokens"`
	Timeout   time.Duration `json:"-"`
	Priority  int           `json:"priority"`
}

// Generation is a successful backend reply, normalised across wire
// families.
type Generation struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Invoker performs the actual network call for one backend wire protocol.
type Invoker interface {
	// Name returns the provider name this invoker serves.
	Name() string
	// Generate issues the request against candidate.Endpoint and returns
	// the extracted text. All failures are *CallError values; the call is
	// bounded by the ctx deadline set by the caller.
	Generate(ctx context.Context, c Candidate, req Request) (*Generation, error)
}

// ---------------------------------------------------------------- errors ---

// ErrorKind classifies a failed provider call.
type ErrorKind int

const (
	// KindTimeout — the per-candidate deadline elapsed and the attempt was
	// abandoned.
	KindTimeout ErrorKind = iota
	// KindTransport — connection-level failure (reset, DNS, TLS, ...).
	KindTransport
	// KindBackend — the backend answered with a non-2xx status.
	KindBackend
	// KindMalformed — the reply parsed to no usable text or did not parse
	// at all.
	KindMalformed
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport_error"
	case KindBackend:
		return "backend_error"
	case KindMalformed:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// CallError is the failure of a single provider call.
type CallError struct {
	Kind     ErrorKind
	Provider string
	Status   int    // set for KindBackend
	Body     string // truncated backend reply, set for KindBackend
	Err      error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	switch e.Kind {
	case KindBackend:
		return fmt.Sprintf("%s: backend error (%d): %s", e.Provider, e.Status, e.Body)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *CallError) Unwrap() error { return e.Err }

const maxErrorBody = 512

// NewBackendError builds a KindBackend CallError, truncating the body to a
// loggable size.
func NewBackendError(provider string, status int, body []byte) *CallError {
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return &CallError{Kind: KindBackend, Provider: provider, Status: status, Body: b}
}

// NewMalformedError builds a KindMalformed CallError.
func NewMalformedError(provider string, err error) *CallError {
	return &CallError{Kind: KindMalformed, Provider: provider, Err: err}
}

// ClassifyTransport maps an error from issuing an HTTP request (or an SDK
// call) to KindTimeout when the context deadline elapsed, KindTransport
// otherwise.
func ClassifyTransport(provider string, err error) *CallError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &CallError{Kind: KindTimeout, Provider: provider, Err: err}
	}
	return &CallError{Kind: KindTransport, Provider: provider, Err: err}
}
