package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/model"
)

// Native extracts text in-process with github.com/ledongthuc/pdf.
type Native struct{}

// NewNative creates a Native extractor.
func NewNative() *Native {
	return &Native{}
}

// ExtractPages reads each page in order. Pages that are empty, fail to
// decode, or panic inside the PDF reader are skipped with a warning.
func (n *Native) ExtractPages(ctx context.Context, pdfPath string) ([]model.Page, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: open PDF %s", pdfPath)
	}
	defer f.Close() //nolint:errcheck

	total := r.NumPage()
	pages := make([]model.Page, 0, total)
	// Pages are 1-indexed in ledongthuc/pdf.
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "ocr: extract pages")
		}
		text, err := readPage(r, i)
		if err != nil {
			zap.L().Warn("ocr: skipping unreadable page",
				zap.String("path", pdfPath),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		page := model.Page{Index: i - 1, Text: text}
		if page.Blank() {
			continue
		}
		pages = append(pages, page)
	}

	zap.L().Debug("ocr: native extraction complete",
		zap.String("path", pdfPath),
		zap.Int("total_pages", total),
		zap.Int("text_pages", len(pages)),
	)
	return pages, nil
}

func readPage(r *pdf.Reader, index int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.New(fmt.Sprintf("ocr: pdf reader panic: %v", rec))
		}
	}()

	p := r.Page(index)
	if p.V.IsNull() {
		return "", nil
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", eris.Wrap(err, "ocr: page text")
	}
	return strings.TrimSpace(text), nil
}
