package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/report-analyst/internal/config"
	"github.com/sells-group/report-analyst/pkg/anthropic"
	"github.com/sells-group/report-analyst/pkg/openai"
)

const defaultMaxTokens = 4096

// Request is one completion call: a system instruction plus a user prompt.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int

	// Phase labels the call in logs and cost attribution. It is not part
	// of the cache key.
	Phase string
}

// Response is the text returned by a provider with its token usage.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Provider performs a single completion call against a remote service.
// Errors are classified as resilience.RateLimitedError, TransientError or
// PermanentError where the service reports a status.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// AnthropicProvider adapts an anthropic.Client to Provider.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider wraps client.
func NewAnthropicProvider(client anthropic.Client) *AnthropicProvider {
	return &AnthropicProvider{client: client}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	temp := req.Temperature
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   int64(maxTokens(req)),
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Text:         resp.Text(),
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// OpenAIProvider adapts an openai.Client to Provider.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider wraps client.
func NewOpenAIProvider(client openai.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.client.CreateChat(ctx, openai.ChatRequest{
		Model:       req.Model,
		System:      req.System,
		User:        req.Prompt,
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens(req),
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Text:         resp.Text,
		Model:        resp.Model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

// NewProvider creates the Provider selected by cfg.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic", "":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("llm: anthropic provider requires anthropic_key")
		}
		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return NewAnthropicProvider(anthropic.NewClient(cfg.AnthropicKey, opts...)), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, eris.New("llm: openai provider requires openai_key")
		}
		return NewOpenAIProvider(openai.NewClient(cfg.OpenAIKey, cfg.BaseURL)), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}
