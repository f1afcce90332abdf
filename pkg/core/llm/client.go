package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/types"
)

const (
	DefaultPath    = "/chat/completions"
	DefaultTimeout = 15 * time.Second
)

// Client is a chat-completions client for OpenAI-compatible endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	path       string
	model      string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPath overrides the completions path appended to the base URL.
func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// WithTimeout bounds each completion.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a completion client.
func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		model:      model,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "chat"
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"maxTokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the request and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.baseURL == "" {
		return "", core.NewUnsupportedError("language model endpoint is not configured")
	}
	req = req.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", core.FromTransport(c.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.FromTransport(c.Name(), err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", core.NewStatusError(c.Name(), resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", core.NewInvalidResponseError("malformed completion payload")
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", core.NewInvalidResponseError(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", core.NewInvalidResponseError("completion has no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", core.NewInvalidResponseError("empty completion")
	}
	return text, nil
}
