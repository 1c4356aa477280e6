// Package genai provides HTTP clients for the external inference backends
// (text generation, summarization, toxicity classification) and a guarded
// lazily-initialized handle for sharing one backend per process.
//
// The backends are treated as opaque services: a prompt or text goes in,
// text or a single label/score pair comes out. Calls are synchronous and
// have no built-in timeout beyond the HTTP client's; callers impose
// cancellation through the context.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// CompletionParams are the generation hyper-parameters forwarded to the
// text-generation backend.
type CompletionParams struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	PadTokenID        int     `json:"pad_token_id"`
}

// Classification is a single-label classification result.
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Client talks to an inference server over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets a bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// NewClient constructs a client for the inference server at baseURL using
// the given model identifier.
func NewClient(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	CompletionParams
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Complete sends a completion request and returns the raw continuation
// text. The backend may or may not echo the prompt; callers post-process.
func (c *Client) Complete(ctx context.Context, prompt string, params CompletionParams) (string, error) {
	payload := completionRequest{Model: c.model, Prompt: prompt, CompletionParams: params}

	var resp completionResponse
	if err := c.doRequest(ctx, "/v1/completions", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("genai: empty choices from completion backend")
	}
	return resp.Choices[0].Text, nil
}

type classifyRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// Classify sends text to the single-label classification endpoint.
func (c *Client) Classify(ctx context.Context, text string) (Classification, error) {
	payload := classifyRequest{Model: c.model, Text: text}

	var resp Classification
	if err := c.doRequest(ctx, "/v1/classify", payload, &resp); err != nil {
		return Classification{}, err
	}
	return resp, nil
}

type summarizeRequest struct {
	Model     string `json:"model"`
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize sends text to the summarization endpoint and returns the
// summary text.
func (c *Client) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	payload := summarizeRequest{Model: c.model, Text: text, MaxLength: maxLength, MinLength: minLength}

	var resp summarizeResponse
	if err := c.doRequest(ctx, "/v1/summarize", payload, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Summary), nil
}

// Ping verifies the backend is reachable and serving.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("genai: build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("genai: health check status %d", resp.StatusCode)
	}
	return nil
}

// doRequest POSTs a JSON payload to path and decodes the JSON response
// into out. Non-2xx responses are returned as errors with a body excerpt.
func (c *Client) doRequest(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("genai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("genai: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("genai: decode %s response: %w", path, err)
	}
	return nil
}
