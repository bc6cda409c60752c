package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	compass "github.com/nevindra/compass"
)

// Client implements compass.LlmClient against an OpenAI-compatible API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	name    string
	opts    []Option
}

// ClientOption configures a Client instance.
type ClientOption func(*Client)

// WithName sets the provider name used in error messages (default "openai").
func WithName(name string) ClientOption {
	return func(c *Client) { c.name = name }
}

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts or proxies).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.client = h }
}

// WithOptions appends request-level options (temperature, max tokens, etc.)
// applied to every request made by this client.
func WithOptions(opts ...Option) ClientOption {
	return func(c *Client) { c.opts = append(c.opts, opts...) }
}

// New creates an OpenAI-compatible client.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "http://localhost:11434/v1"). The /chat/completions path is appended
// automatically.
func New(apiKey, model, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a chat completion request and returns the parsed result.
// When req.Tools is non-empty, the completion may contain tool calls.
func (c *Client) Complete(ctx context.Context, req compass.CompletionRequest) (compass.Completion, error) {
	body := buildBody(req, c.model, c.opts...)
	payload, err := json.Marshal(body)
	if err != nil {
		return compass.Completion{}, &compass.ErrLLM{Provider: c.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return compass.Completion{}, &compass.ErrLLM{Provider: c.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return compass.Completion{}, ctx.Err()
		}
		return compass.Completion{}, &compass.ErrLLM{Provider: c.name, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return compass.Completion{}, &compass.ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(raw),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return compass.Completion{}, &compass.ErrLLM{Provider: c.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return parseResponse(chatResp), nil
}

// parseRetryAfter parses a Retry-After header value: either delay seconds
// or an HTTP date. Returns 0 when absent or unparseable.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Compile-time interface check.
var _ compass.LlmClient = (*Client)(nil)
