// Package export writes extraction results and analysis history to files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/report-analyst/internal/model"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Metrics"

var header = []string{"Metric", "Value", "Change (%)", "Period"}

type csvRow struct {
	Metric string `csv:"Metric"`
	Value  string `csv:"Value"`
	Change string `csv:"Change (%)"`
	Period string `csv:"Period"`
}

func rowsFor(result *model.ExtractionResult) []csvRow {
	if result.Empty() {
		return nil
	}
	rows := make([]csvRow, 0, len(result.Records))
	for _, r := range result.Records {
		rows = append(rows, csvRow{
			Metric: r.Metric,
			Value:  r.Value,
			Change: r.ChangeText(),
			Period: r.Period,
		})
	}
	return rows
}

// WriteCSV writes the metrics table with a header row. An empty result
// writes only the header.
func WriteCSV(w io.Writer, result *model.ExtractionResult) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return eris.Wrap(err, "export: encode csv header")
	}
	for _, row := range rowsFor(result) {
		if err := enc.Encode(row); err != nil {
			return eris.Wrap(err, "export: encode csv row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes the metrics table to a single worksheet. Change is
// written as a number so spreadsheets can sort and chart it; absent changes
// are left blank.
func WriteXLSX(w io.Writer, result *model.ExtractionResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}

	if !result.Empty() {
		for _, r := range result.Records {
			row := sheet.AddRow()
			row.AddCell().SetString(r.Metric)
			row.AddCell().SetString(r.Value)
			change := row.AddCell()
			if r.HasChange() {
				change.SetFloat(*r.Change)
			}
			row.AddCell().SetString(r.Period)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// WriteHistory writes every analysis version in order, oldest first.
func WriteHistory(w io.Writer, history []model.AnalysisVersion) error {
	for i, v := range history {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return eris.Wrap(err, "export: write history")
			}
		}
		title := fmt.Sprintf("## Version %d", v.Index+1)
		if v.IsRefinement() {
			title += fmt.Sprintf(" (refined from version %d: %s)", v.BasedOn+1, strings.TrimSpace(v.Instructions))
		}
		if _, err := fmt.Fprintf(w, "%s\n\n%s\n", title, strings.TrimSpace(v.Text)); err != nil {
			return eris.Wrap(err, "export: write history")
		}
	}
	return nil
}

// ToFile writes result to path, choosing CSV or XLSX from the extension.
func ToFile(path string, result *model.ExtractionResult) error {
	var write func(io.Writer, *model.ExtractionResult) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".xlsx":
		write = WriteXLSX
	default:
		return eris.Errorf("export: unsupported file type %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f, result); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}
