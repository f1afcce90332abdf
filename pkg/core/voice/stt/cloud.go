package stt

import (
	"bytes"
	"context"
	"encoding/base64"
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
	cloudName           = "cloud"
	cloudDefaultTimeout = 20 * time.Second
)

// CloudProvider implements the STT Provider interface against the hosted
// transcription endpoint.
type CloudProvider struct {
	apiKey     string
	baseURL    string
	path       string
	httpClient *http.Client
	timeout    time.Duration
}

// CloudOption configures a CloudProvider.
type CloudOption func(*CloudProvider)

// WithCloudHTTPClient sets a custom HTTP client.
func WithCloudHTTPClient(client *http.Client) CloudOption {
	return func(c *CloudProvider) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCloudPath overrides the transcription path (default "/stt").
func WithCloudPath(path string) CloudOption {
	return func(c *CloudProvider) {
		if path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.path = path
	}
}

// WithCloudTimeout bounds each transcription request.
func WithCloudTimeout(d time.Duration) CloudOption {
	return func(c *CloudProvider) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCloud creates a new cloud STT provider.
func NewCloud(baseURL, apiKey string, opts ...CloudOption) *CloudProvider {
	c := &CloudProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       "/stt",
		httpClient: &http.Client{},
		timeout:    cloudDefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier.
func (c *CloudProvider) Name() string {
	return cloudName
}

// Configured reports whether a base URL was supplied.
func (c *CloudProvider) Configured() bool {
	return c != nil && c.baseURL != ""
}

type cloudTranscribeRequest struct {
	Audio    string `json:"audio"`
	MimeType string `json:"mime_type"`
	Language string `json:"language,omitempty"`
}

type cloudTranscribeResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe converts audio to text using the cloud endpoint.
func (c *CloudProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	if !c.Configured() {
		return nil, core.NewUnsupportedError("cloud transcription is not configured")
	}

	audioData, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audioData) == 0 {
		return nil, core.NewNoSpeechError("empty audio chunk")
	}

	body, err := json.Marshal(cloudTranscribeRequest{
		Audio:    base64.StdEncoding.EncodeToString(audioData),
		MimeType: types.MimeTypeForFormat(getExtension(opts.Format)),
		Language: opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.FromTransport(c.Name()+"-stt", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.FromTransport(c.Name()+"-stt", err)
	}

	var parsed cloudTranscribeResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, core.NewStatusError(c.Name()+"-stt", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, core.NewInvalidResponseError("malformed transcription payload")
	}
	if parsed.Error != nil {
		return nil, core.NewInvalidResponseError(parsed.Error.Message)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, core.NewNoSpeechError("no speech recognized")
	}

	confidence := 1.0
	if parsed.Confidence != nil {
		confidence = clampConfidence(*parsed.Confidence)
	}
	return &Transcript{Text: text, Confidence: confidence, Provider: c.Name()}, nil
}
