package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/verte-zerg/cpsclick/internal/model"
)

// CSVHeader is the fixed export header row.
var CSVHeader = []string{"timestamp", "mode", "time_limit", "total_clicks", "total_time", "final_rate", "max_rate"}

// ExportFilename returns the export file name for now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("cps_data_%s.csv", now.Format("20060102_150405"))
}

// WriteCSV writes sessions into a new timestamp-named file under dir.
func WriteCSV(dir string, now time.Time, sessions []model.SessionSummary) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	file, path, err := createUnique(dir, ExportFilename(now))
	if err != nil {
		return "", err
	}
	w := csv.NewWriter(file)
	if err := w.Write(CSVHeader); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	for _, s := range sessions {
		if err := w.Write(csvRow(s)); err != nil {
			_ = file.Close()
			return "", fmt.Errorf("failed to write export: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to flush export: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close export: %w", err)
	}
	return path, nil
}

func csvRow(s model.SessionSummary) []string {
	return []string{
		s.Timestamp.Format(time.RFC3339Nano),
		s.Mode.String(),
		strconv.Itoa(s.TimeLimit),
		strconv.Itoa(s.TotalClicks),
		strconv.FormatFloat(s.TotalTime, 'f', -1, 64),
		strconv.FormatFloat(s.FinalRate, 'f', -1, 64),
		strconv.FormatFloat(s.MaxRate, 'f', -1, 64),
	}
}

func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create export: %w", err)
		}
	}
	return nil, "", fmt.Errorf("failed to create export: too many files named %s", name)
}
