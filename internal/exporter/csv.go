package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"MediaSentiment/internal/model"
)

// Columns returns the output header for a panel: year, quarter, every panel
// column not excluded, then yhat and residuals.
func Columns(panelColumns, exclude []string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		skip[c] = true
	}
	header := []string{"year", "quarter"}
	for _, c := range panelColumns {
		if !skip[c] {
			header = append(header, c)
		}
	}
	return append(header, "yhat", "residuals")
}

// WriteCSV writes the scored rows to path. The file is written next to path
// and renamed into place, so a failed write leaves any previous output intact.
func WriteCSV(path string, panelColumns, exclude []string, rows []model.ScoredRow) error {
	header := Columns(panelColumns, exclude)
	dataColumns := header[2 : len(header)-2]

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".forecast-*.csv")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(header))
	for _, r := range rows {
		record[0] = strconv.Itoa(r.Key.Year)
		record[1] = strconv.Itoa(r.Key.Quarter)
		for j, c := range dataColumns {
			record[2+j] = formatValue(r.Get(c))
		}
		record[len(record)-2] = formatValue(r.Yhat)
		record[len(record)-1] = formatValue(r.Residual)
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write row %s: %w", r.Key, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}
	log.Info().Str("path", path).Int("rows", len(rows)).Int("columns", len(header)).Msg("forecast written")
	return nil
}

func formatValue(v float64) string {
	if model.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
