package model

import "strings"

// Page is the extracted text of one PDF page. Index is zero-based.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Blank reports whether the page has no readable text.
func (p Page) Blank() bool {
	return strings.TrimSpace(p.Text) == ""
}

// JoinPages concatenates the non-blank pages in order, separated by a blank line.
func JoinPages(pages []Page) string {
	var sb strings.Builder
	for _, p := range pages {
		if p.Blank() {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(p.Text))
	}
	return sb.String()
}
