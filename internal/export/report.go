// Package export writes batch processing reports to CSV so results can be
// reviewed or handed to a spreadsheet.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tikops/tikops-agent/internal/catalog"
)

// GenerateReport renders one batch and its per-file outcomes as CSV rows.
func GenerateReport(batch *catalog.Batch, items []*catalog.BatchItem) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	header := []string{"input", "output", "status", "error", "processing_seconds"}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, it := range items {
		status := "ok"
		if !it.Success {
			status = "failed"
		}
		row := []string{
			it.InputPath,
			it.OutputPath,
			status,
			it.Error,
			strconv.FormatFloat(it.DurationS, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	summary := []string{
		fmt.Sprintf("batch %s", batch.ID),
		"",
		batch.Status,
		fmt.Sprintf("%d ok / %d failed", batch.OkCount, batch.FailCount),
		"",
	}
	if err := w.Write(summary); err != nil {
		return "", err
	}

	w.Flush()
	return b.String(), w.Error()
}

// WriteReport drops the CSV next to the processed files, named after the
// batch and timestamped so repeated exports never clobber each other.
func WriteReport(dir string, batch *catalog.Batch, items []*catalog.BatchItem) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}

	report, err := GenerateReport(batch, items)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("report_%s_%s.csv",
		SanitizeName(batch.ID, 40), time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
