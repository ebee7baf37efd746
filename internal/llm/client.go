package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/cost"
	"github.com/sells-group/report-analyst/internal/resilience"
)

// Completer turns a Request into completion text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client is a Completer that retries a Provider under a resilience policy.
// Retries are sequential. After the last failed attempt the error satisfies
// errors.Is(err, resilience.ErrExhaustedRetries).
type Client struct {
	provider Provider
	retry    resilience.RetryConfig
	limiter  *AdaptiveLimiter
	calc     *cost.Calculator
}

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLimiter paces requests through l.
func WithLimiter(l *AdaptiveLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCalculator logs estimated cost for every successful call.
func WithCalculator(calc *cost.Calculator) Option {
	return func(c *Client) { c.calc = calc }
}

// NewClient creates a Client for p. Without options it uses
// resilience.DefaultRetryConfig and no pacing.
func NewClient(p Provider, opts ...Option) *Client {
	c := &Client{
		provider: p,
		retry:    resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(c.provider.Name(), req.Phase)
	}

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		return c.attempt(ctx, req)
	})
	if err != nil {
		zap.L().Error("llm: completion failed",
			zap.String("provider", c.provider.Name()),
			zap.String("model", req.Model),
			zap.String("phase", req.Phase),
			zap.String("class", resilience.Classify(err).String()),
			zap.Error(err),
		)
		return "", eris.Wrapf(err, "llm: complete %s", req.Phase)
	}

	if c.calc != nil {
		c.calc.Log(c.provider.Name(), req.Model, req.Phase, resp.InputTokens, resp.OutputTokens)
	}
	return resp.Text, nil
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate limiter wait")
		}
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		if c.limiter != nil && resilience.Classify(err) == resilience.ClassRateLimited {
			c.limiter.OnRateLimit()
		}
		return nil, err
	}
	if c.limiter != nil {
		c.limiter.OnSuccess()
	}

	if strings.TrimSpace(resp.Text) == "" {
		return nil, resilience.NewTransientError(errors.New("llm: empty completion"), 0)
	}
	return resp, nil
}
