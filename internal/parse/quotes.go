package parse

import "strings"

// segment is a run of text that is either inside a string literal or not.
// Quoted segments hold a JSON string body without its delimiters.
type segment struct {
	text   string
	quoted bool
}

// splitQuoted scans s into code and string segments, rewriting every
// string literal as a JSON double-quoted body. Single-quoted and curly-quoted
// strings are converted; a single quote inside a single-quoted string is an
// apostrophe unless the next non-space character could end a value.
func splitQuoted(s string) []segment {
	runes := []rune(s)
	var segs []segment
	var code strings.Builder

	flush := func() {
		if code.Len() > 0 {
			segs = append(segs, segment{text: code.String()})
			code.Reset()
		}
	}

	for i := 0; i < len(runes); {
		switch r := runes[i]; r {
		case '"', '“', '”':
			flush()
			body, next := scanString(runes, i+1, doubleCloser(r), false)
			segs = append(segs, segment{text: body, quoted: true})
			i = next
		case '\'', '‘', '’':
			flush()
			body, next := scanString(runes, i+1, isSingleQuote, true)
			segs = append(segs, segment{text: body, quoted: true})
			i = next
		default:
			code.WriteRune(r)
			i++
		}
	}
	flush()
	return segs
}

func doubleCloser(opener rune) func(rune) bool {
	if opener == '"' {
		return func(r rune) bool { return r == '"' }
	}
	return func(r rune) bool { return r == '"' || r == '”' || r == '“' }
}

func isSingleQuote(r rune) bool {
	return r == '\'' || r == '’' || r == '‘'
}

// scanString reads a string body starting at runes[start] and returns the
// JSON-escaped body and the index after the closing quote.
func scanString(runes []rune, start int, isCloser func(rune) bool, single bool) (string, int) {
	var b strings.Builder
	i := start
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			next := runes[i+1]
			if next == '\'' {
				b.WriteRune('\'')
			} else {
				b.WriteRune('\\')
				b.WriteRune(next)
			}
			i += 2
			continue
		case isCloser(r):
			if !single || endsValue(runes, i+1) {
				return b.String(), i + 1
			}
			b.WriteRune(r)
		case r == '"' && single:
			b.WriteString(`\"`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20:
			// drop other control characters
		default:
			b.WriteRune(r)
		}
		i++
	}
	return b.String(), i
}

// endsValue reports whether the next non-space rune after i closes a key or
// value, or the input ends.
func endsValue(runes []rune, i int) bool {
	for ; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':', ',', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}

func mapCode(segs []segment, fn func(string) string) []segment {
	out := make([]segment, len(segs))
	for i, s := range segs {
		if s.quoted {
			out[i] = s
			continue
		}
		out[i] = segment{text: fn(s.text)}
	}
	return out
}

func joinSegments(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.quoted {
			b.WriteByte('"')
			b.WriteString(s.text)
			b.WriteByte('"')
			continue
		}
		b.WriteString(s.text)
	}
	return b.String()
}
