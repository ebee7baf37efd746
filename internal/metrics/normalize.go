// Package metrics normalises extracted metric records for display.
package metrics

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/model"
)

// DefaultCurrency is prefixed to large comma-grouped values.
const DefaultCurrency = "£"

const currencySymbols = "£$€¥₹"

var periodAliases = map[string]string{
	"mom":              model.PeriodMonthOnMonth,
	"m/m":              model.PeriodMonthOnMonth,
	"month on month":   model.PeriodMonthOnMonth,
	"month-on-month":   model.PeriodMonthOnMonth,
	"month over month": model.PeriodMonthOnMonth,
	"yoy":              model.PeriodYearOnYear,
	"y/y":              model.PeriodYearOnYear,
	"year on year":     model.PeriodYearOnYear,
	"year-on-year":     model.PeriodYearOnYear,
	"year over year":   model.PeriodYearOnYear,
	"current":          model.PeriodCurrent,
	"current period":   model.PeriodCurrent,
}

// Normalizer applies display heuristics to metric records.
type Normalizer struct {
	Currency string
}

// New returns a Normalizer using currency, or DefaultCurrency when empty.
func New(currency string) *Normalizer {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	return &Normalizer{Currency: currency}
}

// Normalize normalises records with the default currency.
func Normalize(records []model.MetricRecord) []model.MetricRecord {
	return New("").Normalize(records)
}

// Normalize returns a new slice in the same order. Records with an empty
// metric or value after trimming are dropped. Applying it twice gives the
// same result as applying it once.
func (n *Normalizer) Normalize(records []model.MetricRecord) []model.MetricRecord {
	out := make([]model.MetricRecord, 0, len(records))
	for i, rec := range records {
		metric := collapseSpace(rec.Metric)
		value := strings.TrimSpace(rec.Value)
		if metric == "" || value == "" {
			zap.L().Warn("metrics: dropping incomplete record",
				zap.Int("index", i),
				zap.String("metric", metric),
			)
			continue
		}
		out = append(out, model.MetricRecord{
			Metric: metric,
			Value:  n.FormatValue(value),
			Change: finiteChange(rec.Change),
			Period: CanonicalPeriod(rec.Period),
		})
	}
	return out
}

// FormatValue applies the currency and percentage heuristics. Values already
// carrying a currency symbol or '%' are returned unchanged. A comma-grouped
// number above 100 gets the currency prefix; a decimal strictly between 0
// and 5 is read as a percentage.
func (n *Normalizer) FormatValue(value string) string {
	value = strings.TrimSpace(value)
	currency := n.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	if strings.ContainsAny(value, currencySymbols) || strings.Contains(value, currency) || strings.Contains(value, "%") {
		return value
	}

	num, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return value
	}
	switch {
	case strings.Contains(value, ",") && num > 100:
		return currency + value
	case strings.Contains(value, ".") && num > 0 && num < 5:
		return value + "%"
	default:
		return value
	}
}

// CanonicalPeriod trims the label and expands common abbreviations.
// Unrecognised labels are kept as written.
func CanonicalPeriod(period string) string {
	period = collapseSpace(period)
	if canon, ok := periodAliases[strings.ToLower(period)]; ok {
		return canon
	}
	return period
}

// FormatChange renders a change for display.
func FormatChange(change *float64) string {
	return model.FormatChange(change)
}

// Classify reports the direction of a change.
func Classify(change *float64) model.Direction {
	return model.ClassifyChange(change)
}

func finiteChange(change *float64) *float64 {
	if change == nil || math.IsNaN(*change) || math.IsInf(*change, 0) {
		return nil
	}
	v := *change
	return &v
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
