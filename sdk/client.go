// Package spyvoice is a Go client for the spyvoice control surface: the game
// host uses it to start matches, move between phases, and follow the AI
// seat's state.
package spyvoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/core/types"
)

const defaultRequestTimeout = 30 * time.Second

// Client talks to one spyvoice server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the bearer token sent on state-changing requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: newDefaultHTTPClient(),
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newDefaultHTTPClient leaves http.Client.Timeout unset; requests are bounded
// by their context instead.
func newDefaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// State returns the current orchestrator state.
func (c *Client) State(ctx context.Context) (*discussion.Snapshot, error) {
	var out discussion.Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/state", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleRuntime flips the runtime switch and returns the resulting state.
func (c *Client) ToggleRuntime(ctx context.Context) (*discussion.Snapshot, error) {
	var out discussion.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/runtime/toggle", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearError dismisses the surfaced error.
func (c *Client) ClearError(ctx context.Context) (*discussion.Snapshot, error) {
	var out discussion.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/error/clear", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Match returns the current match snapshot.
func (c *Client) Match(ctx context.Context) (*types.MatchSnapshot, error) {
	var out types.MatchSnapshot
	if err := c.do(ctx, http.MethodGet, "/v1/match", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartMatch replaces the current match.
func (c *Client) StartMatch(ctx context.Context, snap *types.MatchSnapshot) (*types.MatchSnapshot, error) {
	if snap == nil {
		return nil, fmt.Errorf("spyvoice: match snapshot is nil")
	}
	var out types.MatchSnapshot
	if err := c.do(ctx, http.MethodPost, "/v1/match", snap, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPhase moves the current match to status.
func (c *Client) SetPhase(ctx context.Context, status types.MatchStatus) (*types.MatchSnapshot, error) {
	body := struct {
		Status types.MatchStatus `json:"status"`
	}{Status: status}
	var out types.MatchSnapshot
	if err := c.do(ctx, http.MethodPost, "/v1/match/phase", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Thread returns the conversation thread of one AI participant.
func (c *Client) Thread(ctx context.Context, aiID string) (types.Thread, error) {
	var out types.Thread
	if err := c.do(ctx, http.MethodGet, "/v1/match/threads/"+url.PathEscape(aiID), nil, &out); err != nil {
		return types.Thread{}, err
	}
	return out, nil
}

// WatchState streams state snapshots to fn until ctx is done, the server
// closes the stream, or fn returns an error.
func (c *Client) WatchState(ctx context.Context, fn func(discussion.Snapshot) error) error {
	endpoint, err := c.endpoint("/v1/state/ws")
	if err != nil {
		return err
	}
	endpoint = "ws" + strings.TrimPrefix(endpoint, "http")

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return decodeErrorResponse(resp)
		}
		return &TransportError{Op: "GET", URL: endpoint, Err: err}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var snap discussion.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &TransportError{Op: "read", URL: endpoint, Err: err}
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

func (c *Client) endpoint(path string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("spyvoice: invalid base URL %q", c.baseURL)
	}
	if base.User != nil {
		return "", fmt.Errorf("spyvoice: base URL must not include credentials")
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + path
	base.RawQuery = ""
	base.Fragment = ""
	return base.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeErrorResponse(resp)
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
