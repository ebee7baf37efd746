// Package prompt builds the prompts sent to the completion service.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExtractionSystem is the system instruction for metric extraction.
const ExtractionSystem = `You are a data extraction assistant for digital marketing performance reports.

Rules:
- Answer ONLY with a JSON array, with no commentary before or after it
- Use only figures present in the report text; never invent values
- Keep each value exactly as written in the report, including currency symbols, separators and suffixes
- Use null for change when the report does not state one`

const extractionTemplate = `Extract every performance metric from the report text below.

Return a JSON array of objects with exactly these keys:
- "Metric": the metric name as written (e.g. "Clicks", "Cost / conv.")
- "Value": the current value as written (e.g. "1,200", "£4,035.32", "2.33%%")
- "Change (%%)": the percentage change as a number (e.g. 10.5 or -3.2), or null
- "Period": "Month on Month", "Year on Year", "Current Period", or the source label used in the report

Keep the metrics in the order they appear.

Report text:
%s`

const shortExtractionTemplate = `List the key metrics in this report as a JSON array.
Each item: {"Metric": "...", "Value": "...", "Change (%%)": number or null, "Period": "..."}.
Reply with the array only.

%s`

// AnalysisSystem is the system instruction for analysis and refinement.
const AnalysisSystem = `You write clear, practical performance summaries for marketing clients.`

// Extraction returns the full extraction prompt with text truncated to
// maxChars runes.
func Extraction(text string, maxChars int) string {
	return fmt.Sprintf(extractionTemplate, Truncate(text, maxChars))
}

// ShortExtraction returns the degraded extraction prompt used after a failed
// extraction. It asks for less and embeds less text.
func ShortExtraction(text string, maxChars int) string {
	return fmt.Sprintf(shortExtractionTemplate, Truncate(text, maxChars))
}

// Analysis returns the prompt asking for a summary and recommendations for
// the metrics table.
func Analysis(table string, guide *StyleGuide) string {
	if guide == nil {
		guide = DefaultStyleGuide()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `%s Here is a table containing key Google Ads performance metrics:

%s

Please provide a summary of the table and recommendations to improve performance.`, guide.Role, table)
	writeStyle(&sb, guide)
	return sb.String()
}

// Refinement returns the prompt that revises a previous analysis according
// to the user's instructions.
func Refinement(previous, instructions string, guide *StyleGuide) string {
	if guide == nil {
		guide = DefaultStyleGuide()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `%s Below is an analysis you wrote earlier.

--- Previous Analysis ---
%s
--- End Previous Analysis ---

Revise the analysis according to these instructions:
%s

Return the complete revised analysis.`, guide.Role, strings.TrimSpace(previous), strings.TrimSpace(instructions))
	writeStyle(&sb, guide)
	return sb.String()
}

func writeStyle(sb *strings.Builder, guide *StyleGuide) {
	sb.WriteString("\n\nWriting rules:\n")
	for i, rule := range guide.Rules {
		fmt.Fprintf(sb, "%d. %s\n", i+1, rule)
	}
	if len(guide.BannedWords) > 0 {
		fmt.Fprintf(sb, "%d. You MUST NOT include any of the following words or phrases in the response: %s\n",
			len(guide.Rules)+1, strings.Join(guide.BannedWords, ", "))
	}
}

// Truncate returns at most maxChars runes of s. A non-positive maxChars
// leaves s unchanged.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
