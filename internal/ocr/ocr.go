// Package ocr extracts per-page text from PDF reports.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/report-analyst/internal/config"
	"github.com/sells-group/report-analyst/internal/model"
)

// Extractor extracts page text from PDF files. Pages that cannot be read
// are skipped rather than failing the whole document; callers decide what
// to do when no page has text.
type Extractor interface {
	ExtractPages(ctx context.Context, pdfPath string) ([]model.Page, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "native", "":
		return NewNative(), nil
	case "pdftotext", "local":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
