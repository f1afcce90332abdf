package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/types"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient completes through the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*geminiOptions)

type geminiOptions struct {
	baseURL string
	timeout time.Duration
	model   string
}

// WithGeminiBaseURL points the client at a different API host.
func WithGeminiBaseURL(u string) GeminiOption {
	return func(o *geminiOptions) { o.baseURL = u }
}

// WithGeminiModel overrides the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(o *geminiOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithGeminiTimeout bounds each completion.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(o *geminiOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewGemini creates a Gemini-backed completer.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	o := geminiOptions{timeout: DefaultTimeout, model: DefaultGeminiModel}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, core.NewAuthError("gemini api key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: o.model, timeout: o.timeout}, nil
}

// Name returns the provider identifier.
func (g *GeminiClient) Name() string {
	return "gemini"
}

// Complete sends the request to generateContent.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	system, contents := toGeminiContents(req.Messages)
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", core.NewStatusError(g.Name(), apiErr.Code, apiErr.Message)
		}
		return "", core.FromTransport(g.Name(), err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", core.NewInvalidResponseError("empty completion")
	}
	return text, nil
}

// toGeminiContents folds system messages into one instruction and maps the
// rest onto user/model turns.
func toGeminiContents(msgs []types.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
