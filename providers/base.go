package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Base provides common fields shared by REST-based invoker
// implementations. Embed this struct to avoid repeating name and apiKey
// handling across invokers.
type Base struct {
	name   string
	apiKey string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// postJSON marshals in, POSTs it to url with the given headers, and returns
// the status code and reply body. Transport and timeout failures come back
// as classified *CallError values; non-2xx statuses are the caller's to
// handle (wire families differ in their error envelopes).
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, in any) (int, []byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal %s request: %w", provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create %s request: %w", provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	// The context deadline bounds the whole exchange; when it fires the
	// transport abandons the connection attempt rather than leaking it.
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, ClassifyTransport(provider, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return httpResp.StatusCode, nil, ClassifyTransport(provider, err)
	}
	return httpResp.StatusCode, respBody, nil
}
