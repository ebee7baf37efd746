package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Direction describes whether a reported change is good, bad, or flat.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

// Strategy identifies which parsing path produced an ExtractionResult.
type Strategy string

const (
	StrategyStructured  Strategy = "structured-parse"
	StrategyFallback    Strategy = "regex-fallback"
	StrategyPlaceholder Strategy = "failure-placeholder"
)

// PromptVariant names the extraction prompt that produced a result.
type PromptVariant string

const (
	PromptFull  PromptVariant = "full"
	PromptShort PromptVariant = "short"
)

// Canonical period labels.
const (
	PeriodMonthOnMonth = "Month on Month"
	PeriodYearOnYear   = "Year on Year"
	PeriodCurrent      = "Current Period"
)

// MetricRecord is one row of the metrics table.
type MetricRecord struct {
	Metric string   `json:"metric" csv:"Metric"`
	Value  string   `json:"value" csv:"Value"`
	Change *float64 `json:"change,omitempty" csv:"-"`
	Period string   `json:"period" csv:"Period"`
}

// HasChange reports whether the record carries a finite percentage change.
func (r MetricRecord) HasChange() bool {
	return r.Change != nil && !math.IsNaN(*r.Change) && !math.IsInf(*r.Change, 0)
}

// ChangeText renders the change column for display.
func (r MetricRecord) ChangeText() string {
	return FormatChange(r.Change)
}

// Direction classifies the record's change.
func (r MetricRecord) Direction() Direction {
	return ClassifyChange(r.Change)
}

// FormatChange renders a percentage change. Absent renders as the empty
// string, zero as "0%", and anything else carries an explicit sign.
func FormatChange(change *float64) string {
	if change == nil || math.IsNaN(*change) || math.IsInf(*change, 0) {
		return ""
	}
	v := *change
	if v == 0 {
		return "0%"
	}
	sign := "+"
	if v < 0 {
		sign = "-"
	}
	return sign + strconv.FormatFloat(math.Abs(v), 'f', -1, 64) + "%"
}

// ClassifyChange maps a change to a Direction.
func ClassifyChange(change *float64) Direction {
	switch {
	case change == nil, math.IsNaN(*change), math.IsInf(*change, 0), *change == 0:
		return DirectionNeutral
	case *change > 0:
		return DirectionPositive
	default:
		return DirectionNegative
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ExtractionResult is the normalised metrics table for one document.
type ExtractionResult struct {
	Records   []MetricRecord `json:"records"`
	Strategy  Strategy       `json:"strategy"`
	Prompt    PromptVariant  `json:"prompt"`
	Raw       string         `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

// Empty reports whether the result holds no records.
func (r *ExtractionResult) Empty() bool {
	return r == nil || len(r.Records) == 0
}

// Table renders the records as an aligned plain-text table.
func (r *ExtractionResult) Table() string {
	if r.Empty() {
		return ""
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Metric\tValue\tChange (%)\tPeriod")
	for _, rec := range r.Records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Metric, rec.Value, rec.ChangeText(), rec.Period)
	}
	_ = w.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
