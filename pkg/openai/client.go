package openai

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	sdk "github.com/sashabaranov/go-openai"

	"github.com/sells-group/report-analyst/internal/resilience"
)

// Client defines the OpenAI chat operations used by the analyst.
type Client interface {
	CreateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a single system + user exchange.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the first choice of a chat completion.
type ChatResponse struct {
	ID           string
	Model        string
	Text         string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

type sdkClient struct {
	client *sdk.Client
}

// NewClient creates a client for the OpenAI API. baseURL overrides the
// default endpoint when non-empty.
func NewClient(apiKey, baseURL string) Client {
	cfg := sdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &sdkClient{client: sdk.NewClientWithConfig(cfg)}
}

func (c *sdkClient) CreateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]sdk.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, sdk.ChatCompletionMessage{
			Role:    sdk.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, sdk.ChatCompletionMessage{
		Role:    sdk.ChatMessageRoleUser,
		Content: req.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, sdk.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(ClassifyError(err), "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.Wrap(resilience.NewTransientError(errors.New("no choices returned"), 0), "openai: create chat completion")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// ClassifyError wraps a go-openai error in the resilience type matching its
// HTTP status. Errors without a status are returned unchanged.
func ClassifyError(err error) error {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return resilience.WrapHTTPStatus(err, apiErr.HTTPStatusCode)
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return resilience.WrapHTTPStatus(err, reqErr.HTTPStatusCode)
	}
	return err
}
