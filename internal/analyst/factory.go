package analyst

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/report-analyst/internal/cache"
	"github.com/sells-group/report-analyst/internal/config"
	"github.com/sells-group/report-analyst/internal/cost"
	"github.com/sells-group/report-analyst/internal/llm"
	"github.com/sells-group/report-analyst/internal/metrics"
	"github.com/sells-group/report-analyst/internal/ocr"
	"github.com/sells-group/report-analyst/internal/prompt"
	"github.com/sells-group/report-analyst/internal/resilience"
)

// Factory builds sessions that share a provider client, PDF extractor and
// style guide. Each session gets its own response cache.
type Factory struct {
	cacheCfg  config.CacheConfig
	completer llm.Completer
	extractor ocr.Extractor
	style     *prompt.StyleGuide
	currency  string
	settings  Settings
}

// NewFactory wires the completion client, extractor and style guide from cfg.
func NewFactory(cfg *config.Config) (*Factory, error) {
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, eris.Wrap(err, "analyst: create provider")
	}

	opts := []llm.Option{
		llm.WithRetry(resilience.FromRetryConfig(
			cfg.Retry.MaxAttempts,
			cfg.Retry.InitialBackoffMs,
			cfg.Retry.MaxBackoffMs,
			cfg.Retry.Multiplier,
			cfg.Retry.RateLimitPenaltyMs,
		)),
		llm.WithCalculator(cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing))),
	}
	if cfg.LLM.RequestsPerSec > 0 {
		opts = append(opts, llm.WithLimiter(llm.NewAdaptiveLimiter(rate.Limit(cfg.LLM.RequestsPerSec), cfg.LLM.Burst)))
	}

	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, eris.Wrap(err, "analyst: create extractor")
	}

	style, err := prompt.LoadStyleGuide(cfg.Style.GuidePath)
	if err != nil {
		return nil, eris.Wrap(err, "analyst: load style guide")
	}

	return &Factory{
		cacheCfg:  cfg.Cache,
		completer: llm.NewClient(provider, opts...),
		extractor: extractor,
		style:     style,
		currency:  cfg.Style.Currency,
		settings:  SettingsFromConfig(cfg.LLM),
	}, nil
}

// NewSession opens a fresh cache and returns a Session using it. Close the
// session to release the cache.
func (f *Factory) NewSession(ctx context.Context) (*Session, error) {
	c, err := cache.Open(ctx, f.cacheCfg)
	if err != nil {
		return nil, eris.Wrap(err, "analyst: open cache")
	}
	return New(llm.NewCachedCompleter(f.completer, c),
		WithExtractor(f.extractor),
		WithNormalizer(metrics.New(f.currency)),
		WithStyleGuide(f.style),
		WithSettings(f.settings),
		WithCloser(c),
	), nil
}
