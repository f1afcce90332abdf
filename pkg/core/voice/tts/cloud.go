package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vango-go/vai-spy/pkg/core"
)

const (
	cloudName           = "cloud"
	cloudDefaultModel   = "eleven_multilingual_v2"
	cloudDefaultTimeout = 28 * time.Second
	voiceLookupTimeout  = 5 * time.Second
)

// CloudProvider implements the TTS Provider interface against the hosted
// synthesis endpoint. Successful responses carry audio/* bodies; anything else
// is an error envelope.
type CloudProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
	voices     *VoiceCache
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

// WithCloudModel overrides the synthesis model id.
func WithCloudModel(model string) CloudOption {
	return func(c *CloudProvider) {
		if model != "" {
			c.model = model
		}
	}
}

// WithCloudTimeout bounds each synthesis request.
func WithCloudTimeout(d time.Duration) CloudOption {
	return func(c *CloudProvider) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithVoiceCache injects the cache used for per-language voice resolution.
func WithVoiceCache(cache *VoiceCache) CloudOption {
	return func(c *CloudProvider) {
		c.voices = cache
	}
}

// NewCloud creates a new cloud TTS provider.
func NewCloud(baseURL, apiKey string, opts ...CloudOption) *CloudProvider {
	c := &CloudProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cloudDefaultModel,
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

type cloudSynthesizeRequest struct {
	Text     string  `json:"text"`
	VoiceID  string  `json:"voice_id,omitempty"`
	ModelID  string  `json:"model_id,omitempty"`
	Language string  `json:"language,omitempty"`
	Format   string  `json:"format,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Synthesize converts text to audio using the cloud endpoint.
func (c *CloudProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if !c.Configured() {
		return nil, core.NewUnsupportedError("cloud synthesis is not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return &Synthesis{Format: getFormat(opts.Format), Provider: c.Name()}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = c.resolveVoice(ctx, opts.Language)
	}

	body, err := json.Marshal(cloudSynthesizeRequest{
		Text:     text,
		VoiceID:  voiceID,
		ModelID:  c.model,
		Language: opts.Language,
		Format:   getFormat(opts.Format),
		Speed:    opts.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.FromTransport(c.Name()+"-tts", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.FromTransport(c.Name()+"-tts", err)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A stale voice id is the most common cause of a rejected request.
		if opts.Voice == "" {
			c.voices.Invalidate(opts.Language)
		}
		return nil, core.NewStatusError(c.Name()+"-tts", resp.StatusCode, envelopeMessage(respBody))
	}
	if !strings.HasPrefix(mediaType, "audio/") {
		msg := envelopeMessage(respBody)
		if msg == "" {
			msg = fmt.Sprintf("unexpected content type %q", contentType)
		}
		return nil, core.NewInvalidResponseError(msg)
	}
	if len(respBody) == 0 {
		return nil, core.NewInvalidResponseError("empty audio response")
	}

	return &Synthesis{
		Audio:    respBody,
		Format:   getFormat(opts.Format),
		MimeType: mediaType,
		Provider: c.Name(),
	}, nil
}

func (c *CloudProvider) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

type voicesResponse struct {
	Voices []struct {
		VoiceID  string `json:"voice_id"`
		Language string `json:"language"`
	} `json:"voices"`
}

// resolveVoice looks up a default voice for the language. Failures return ""
// so the endpoint falls back to its own default.
func (c *CloudProvider) resolveVoice(ctx context.Context, language string) string {
	if id, ok := c.voices.Get(language); ok {
		return id
	}
	if c.voices == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, voiceLookupTimeout)
	defer cancel()

	u := c.baseURL + "/voices"
	if language != "" {
		u += "?language=" + url.QueryEscape(language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var parsed voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ""
	}
	for _, v := range parsed.Voices {
		if v.VoiceID != "" && (language == "" || v.Language == "" || v.Language == language) {
			c.voices.Put(language, v.VoiceID)
			return v.VoiceID
		}
	}
	return ""
}

func envelopeMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return env.Error.Message
	}
	return strings.TrimSpace(string(body))
}
