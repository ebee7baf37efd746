package parse

import (
	"regexp"
	"strings"

	"github.com/sells-group/report-analyst/internal/model"
)

// The fallback recognises object-shaped fragments carrying the four labels
// metric, value, change and period, in that order. Labels may be quoted with
// either quote style and followed by ':' or '='. Values may be double-quoted,
// single-quoted, or bare up to the next ',', ';', '}', ']' or newline. A bare
// number grouped in thousands ("1,200", "£1,200.50", "-12,000%") is kept whole.
// Any run of non-alphanumeric punctuation may separate one field from the next.
const (
	groupedNumberPattern = `[-+]?[£$€¥₹]?\d{1,3}(?:,\d{3})+(?:\.\d+)?%?`
	fieldValuePattern    = `(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|(` + groupedNumberPattern + `|[^,;}\]\n]*))`
	fieldSepPattern      = `[^A-Za-z0-9]*?`
)

var recordPatternRe = regexp.MustCompile(`(?i)` +
	fieldLabel(`metric`) + fieldValuePattern + fieldSepPattern +
	fieldLabel(`value`) + fieldValuePattern + fieldSepPattern +
	fieldLabel(`change(?:\s*\(\s*%\s*\)|\s*%)?`) + fieldValuePattern + fieldSepPattern +
	fieldLabel(`period`) + fieldValuePattern)

var smartQuotes = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")

func fieldLabel(name string) string {
	return `["']?\b` + name + `["']?\s*[:=]\s*`
}

// ExtractByPattern scans raw text for metric/value/change/period fragments.
// A change that is null-like or not numeric is left absent. Fragments with an
// empty metric or value are skipped. It never returns nil.
func ExtractByPattern(raw string) []model.MetricRecord {
	text := smartQuotes.Replace(raw)
	matches := recordPatternRe.FindAllStringSubmatch(text, -1)

	records := make([]model.MetricRecord, 0, len(matches))
	for _, m := range matches {
		rec := model.MetricRecord{
			Metric: capture(m, 0),
			Value:  capture(m, 1),
			Change: CoerceChange(capture(m, 2)),
			Period: capture(m, 3),
		}
		if rec.Metric == "" || rec.Value == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// capture returns the first non-empty alternative of the n-th value group.
func capture(m []string, n int) string {
	base := 1 + n*3
	for i := base; i < base+3 && i < len(m); i++ {
		if v := strings.TrimSpace(m[i]); v != "" {
			return v
		}
	}
	return ""
}
