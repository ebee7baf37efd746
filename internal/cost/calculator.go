package cost

import (
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/config"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Tokens computes the cost in USD of one completion. Unknown providers or
// models cost 0.
func (c *Calculator) Tokens(provider, model string, input, output int64) float64 {
	var table map[string]ModelRate
	switch provider {
	case "anthropic":
		table = c.rates.Anthropic
	case "openai":
		table = c.rates.OpenAI
	}
	rate, ok := table[model]
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	return inCost + outCost
}

// Log records token usage and estimated cost with structured zap fields.
func (c *Calculator) Log(provider, model, phase string, input, output int64) {
	zap.L().Info("cost attribution",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
		zap.Float64("estimated_cost_usd", c.Tokens(provider, model, input, output)),
	)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o":      {Input: 2.50, Output: 10.00},
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
		},
	}
}

// RatesFromConfig overlays configured pricing onto DefaultRates.
func RatesFromConfig(p config.PricingConfig) Rates {
	rates := DefaultRates()
	for model, mp := range p.Anthropic {
		rates.Anthropic[model] = ModelRate{Input: mp.Input, Output: mp.Output}
	}
	for model, mp := range p.OpenAI {
		rates.OpenAI[model] = ModelRate{Input: mp.Input, Output: mp.Output}
	}
	return rates
}
