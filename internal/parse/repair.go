// Package parse turns raw LLM output into metric records. RepairAndParse
// fixes the malformations models commonly produce before decoding JSON;
// ExtractByPattern is a regex fallback for output that cannot be repaired.
package parse

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/model"
)

// ErrStructuredParse means the text could not be repaired into a non-empty
// array of metric objects. Callers fall back to ExtractByPattern.
var ErrStructuredParse = eris.New("structured parse failed")

var (
	fencedBlockRe   = regexp.MustCompile("(?s)```[A-Za-z]*[ \\t]*\\r?\\n?(.*?)```")
	infinityStrRe   = regexp.MustCompile(`(?i)^[+-]?\s*(∞|inf|infinity)\s*%?$`)
	infinityBareRe  = regexp.MustCompile(`(?i)[+-]?\s*∞\s*%?|[+-]?\binfinity\b%?|\bnan\b`)
	pythonLiteralRe = regexp.MustCompile(`\b(True|False|None|NULL|Null)\b`)
	percentNumberRe = regexp.MustCompile(`(\d)\s*%`)
	plusNumberRe    = regexp.MustCompile(`([:\[,]\s*)\+(\d)`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[\]}])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

// RepairAndParse extracts a JSON array of metric objects from raw LLM text.
// Steps, in order: take the interior of a fenced code block; slice from the
// first '[' to the last ']'; normalise quoting; map infinity sentinels to
// null; map Python-style literals to JSON; drop trailing commas; decode.
// It returns ErrStructuredParse when no non-empty record list results.
func RepairAndParse(raw string) ([]model.MetricRecord, error) {
	repaired, ok := Repair(raw)
	if !ok {
		return nil, eris.Wrap(ErrStructuredParse, "parse: no bracketed array")
	}

	items, err := decodeArray(repaired)
	if err != nil {
		return nil, eris.Wrap(ErrStructuredParse, "parse: decode repaired json: "+err.Error())
	}

	records := make([]model.MetricRecord, 0, len(items))
	for i, obj := range items {
		rec, ok := recordFromObject(obj)
		if !ok {
			zap.L().Warn("parse: dropping record without metric or value", zap.Int("index", i))
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, eris.Wrap(ErrStructuredParse, "parse: no usable records")
	}
	return records, nil
}

// Repair applies the textual repairs and returns the resulting JSON text.
// It reports false when the text holds no bracketed span.
func Repair(raw string) (string, bool) {
	span, ok := bracketSpan(unfence(raw))
	if !ok {
		return "", false
	}
	segs := splitQuoted(span)
	segs = nullInfinity(segs)
	segs = mapCode(segs, normalizeLiterals)
	segs = mapCode(segs, quoteBareKeys)
	segs = mapCode(segs, stripTrailingCommas)
	return joinSegments(segs), true
}

func unfence(raw string) string {
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

func bracketSpan(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func nullInfinity(segs []segment) []segment {
	out := make([]segment, len(segs))
	for i, s := range segs {
		switch {
		case s.quoted && infinityStrRe.MatchString(strings.TrimSpace(s.text)):
			out[i] = segment{text: "null"}
		case !s.quoted:
			out[i] = segment{text: infinityBareRe.ReplaceAllString(s.text, "null")}
		default:
			out[i] = s
		}
	}
	return out
}

// normalizeLiterals maps Python-style tokens to JSON and strips the '%'
// and '+' decorations models put on bare numbers.
func normalizeLiterals(code string) string {
	code = pythonLiteralRe.ReplaceAllStringFunc(code, func(tok string) string {
		switch tok {
		case "True":
			return "true"
		case "False":
			return "false"
		default:
			return "null"
		}
	})
	code = percentNumberRe.ReplaceAllString(code, "$1")
	return plusNumberRe.ReplaceAllString(code, "$1$2")
}

func quoteBareKeys(code string) string {
	return bareKeyRe.ReplaceAllString(code, `$1"$2"$3`)
}

func stripTrailingCommas(code string) string {
	return trailingCommaRe.ReplaceAllString(code, "$1")
}

func decodeArray(text string) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var arr []any
	if err := dec.Decode(&arr); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}
