package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/analyst"
	"github.com/sells-group/report-analyst/internal/export"
	"github.com/sells-group/report-analyst/internal/model"
)

// openReport checks the upload precondition, creates a session and loads
// the PDF at path into it.
func openReport(ctx context.Context, path string) (*analyst.Session, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stat %s", path)
	}
	if err := analyst.ValidateUpload(path, info.Size(), int64(cfg.Server.MaxUploadMB)<<20); err != nil {
		return nil, err
	}

	factory, err := analyst.NewFactory(cfg)
	if err != nil {
		return nil, err
	}
	sess, err := factory.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.LoadDocument(ctx, path); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

// extractWithRetry runs extraction and, when nothing is recovered, one
// retry with the short prompt. The raw completion is written to errOut if
// both attempts come back empty.
func extractWithRetry(ctx context.Context, sess *analyst.Session, errOut io.Writer) (*model.ExtractionResult, error) {
	result, err := sess.ExtractMetrics(ctx)
	if err == nil {
		return result, nil
	}

	var empty *analyst.ExtractionEmptyError
	if !errors.As(err, &empty) {
		return nil, err
	}
	zap.L().Warn("no metrics recovered, retrying with short prompt", zap.String("session_id", sess.ID()))

	result, err = sess.RetryExtraction(ctx)
	if err != nil {
		if errors.As(err, &empty) {
			fmt.Fprintf(errOut, "No metrics could be extracted. Raw model response:\n%s\n", empty.Raw) //nolint:errcheck
		}
		return nil, err
	}
	return result, nil
}

// writeExports writes result to the CSV and XLSX paths that are set.
func writeExports(result *model.ExtractionResult, csvPath, xlsxPath string) error {
	for _, path := range []string{csvPath, xlsxPath} {
		if path == "" {
			continue
		}
		if err := export.ToFile(path, result); err != nil {
			return err
		}
		zap.L().Info("metrics exported", zap.String("path", path))
	}
	return nil
}
