package parse

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/sells-group/report-analyst/internal/model"
)

type field int

const (
	fieldNone field = iota
	fieldMetric
	fieldValue
	fieldChange
	fieldPeriod
)

// fieldAliases maps letter-only, lowercased keys to record fields, so
// "Change (%)", "change_pct" and "ChangePercent" all land on change.
var fieldAliases = map[string]field{
	"metric":           fieldMetric,
	"metricname":       fieldMetric,
	"name":             fieldMetric,
	"kpi":              fieldMetric,
	"value":            fieldValue,
	"currentvalue":     fieldValue,
	"amount":           fieldValue,
	"change":           fieldChange,
	"changepct":        fieldChange,
	"changepercent":    fieldChange,
	"changepercentage": fieldChange,
	"percentchange":    fieldChange,
	"pctchange":        fieldChange,
	"delta":            fieldChange,
	"period":           fieldPeriod,
	"comparison":       fieldPeriod,
	"comparisonperiod": fieldPeriod,
	"timeframe":        fieldPeriod,
	"source":           fieldPeriod,
}

func fieldFor(key string) field {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return fieldAliases[b.String()]
}

// recordFromObject maps a decoded JSON object onto a MetricRecord. The first
// key seen for each field wins. It reports false when metric or value is empty.
func recordFromObject(obj map[string]any) (model.MetricRecord, bool) {
	var rec model.MetricRecord
	seen := make(map[field]bool, 4)

	for _, key := range sortedKeys(obj) {
		f := fieldFor(key)
		if f == fieldNone || seen[f] {
			continue
		}
		seen[f] = true
		v := obj[key]
		switch f {
		case fieldMetric:
			rec.Metric = strings.TrimSpace(scalarText(v))
		case fieldValue:
			rec.Value = strings.TrimSpace(scalarText(v))
		case fieldChange:
			rec.Change = changeFrom(v)
		case fieldPeriod:
			rec.Period = strings.TrimSpace(scalarText(v))
		}
	}
	return rec, rec.Metric != "" && rec.Value != ""
}

// sortedKeys orders keys so exact field names beat aliases when an object
// carries both.
func sortedKeys(obj map[string]any) []string {
	exact := make([]string, 0, len(obj))
	rest := make([]string, 0, len(obj))
	for k := range obj {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "metric", "value", "change", "change (%)", "period":
			exact = append(exact, k)
		default:
			rest = append(rest, k)
		}
	}
	slices.Sort(exact)
	slices.Sort(rest)
	return append(exact, rest...)
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func changeFrom(v any) *float64 {
	switch t := v.(type) {
	case json.Number:
		return CoerceChange(t.String())
	case string:
		return CoerceChange(t)
	case float64:
		return CoerceChange(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return nil
	}
}

var nullTokens = map[string]bool{
	"":          true,
	"null":      true,
	"none":      true,
	"n/a":       true,
	"na":        true,
	"nil":       true,
	"-":         true,
	"—":         true,
	"–":         true,
	"nan":       true,
	"undefined": true,
	"∞":         true,
	"+∞":        true,
	"-∞":        true,
	"inf":       true,
	"+inf":      true,
	"-inf":      true,
	"infinity":  true,
	"+infinity": true,
	"-infinity": true,
}

// CoerceChange parses a percentage change such as "+10.5%", "-3", or
// "1,250.0". Null-like tokens, sentinels, and anything that is not a finite
// number yield nil.
func CoerceChange(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if nullTokens[strings.ToLower(s)] {
		return nil
	}
	s = strings.ReplaceAll(s, "−", "-")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
