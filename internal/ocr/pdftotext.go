package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/report-analyst/internal/model"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout on the given PDF and splits stdout on
// the form feed pdftotext writes after each page.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]model.Page, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return splitPages(stdout.String()), nil
}

func splitPages(out string) []model.Page {
	var pages []model.Page
	for i, chunk := range strings.Split(out, "\f") {
		page := model.Page{Index: i, Text: strings.TrimSpace(chunk)}
		if page.Blank() {
			continue
		}
		pages = append(pages, page)
	}
	return pages
}
