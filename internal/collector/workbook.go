package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"MediaSentiment/internal/model"
)

// DefaultSentimentURL is where the SF Fed publishes the daily news sentiment index.
const DefaultSentimentURL = "https://www.frbsf.org/wp-content/uploads/news_sentiment_data.xlsx"

var workbookDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "1/2/2006", "01/02/06", "1/2/06"}

// WorkbookSource downloads an Excel workbook and reads one dated column from it.
// With an empty URL the local copy at Path is read as is.
type WorkbookSource struct {
	URL         string
	Path        string
	Sheet       string
	DateColumn  string
	ValueColumn string
	Client      *http.Client
}

// NewWorkbookSource creates a workbook source with optional proxy support.
func NewWorkbookSource(rawURL, path, sheet, dateColumn, valueColumn, proxyURL string) *WorkbookSource {
	return &WorkbookSource{
		URL:         rawURL,
		Path:        path,
		Sheet:       sheet,
		DateColumn:  dateColumn,
		ValueColumn: valueColumn,
		Client:      newHTTPClient(proxyURL, 2*time.Minute),
	}
}

func (w *WorkbookSource) Name() string { return "workbook" }

func (w *WorkbookSource) Fetch(ctx context.Context, series model.Series) ([]model.Observation, error) {
	if w.URL != "" {
		if err := w.download(ctx); err != nil {
			return nil, &model.FetchError{Series: series.ID, Source: w.Name(), Err: err}
		}
	}
	return w.read(series)
}

// download streams the workbook to a temp file next to Path and renames it
// into place, so a failed transfer never replaces the previous copy.
func (w *WorkbookSource) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download workbook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download workbook: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(w.Path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(w.Path), ".workbook-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}
	log.Info().Str("url", w.URL).Str("path", w.Path).Int64("bytes", n).Msg("workbook downloaded")
	return nil
}

func (w *WorkbookSource) read(series model.Series) ([]model.Observation, error) {
	f, err := excelize.OpenFile(w.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(w.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", w.Sheet, err)
	}
	if len(rows) == 0 {
		return nil, &model.InsufficientDataError{Series: series.ID, Reason: fmt.Sprintf("sheet %q is empty", w.Sheet)}
	}

	dateIdx, valueIdx := -1, -1
	for i, h := range rows[0] {
		switch {
		case strings.EqualFold(strings.TrimSpace(h), w.DateColumn):
			dateIdx = i
		case strings.EqualFold(strings.TrimSpace(h), w.ValueColumn):
			valueIdx = i
		}
	}
	if dateIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("sheet %q: columns %q and %q not found in header %v", w.Sheet, w.DateColumn, w.ValueColumn, rows[0])
	}

	obs := make([]model.Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if dateIdx >= len(row) || strings.TrimSpace(row[dateIdx]) == "" {
			continue
		}
		d, err := parseCellDate(row[dateIdx])
		if err != nil {
			return nil, &model.MalformedObservationError{Series: series.ID, Reason: fmt.Sprintf("row %d: %v", i+2, err)}
		}
		value := model.DefaultSentinel
		if valueIdx < len(row) && strings.TrimSpace(row[valueIdx]) != "" {
			value = strings.TrimSpace(row[valueIdx])
		}
		obs = append(obs, model.Observation{Date: d, Value: value})
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
	log.Debug().Str("series", series.ID).Int("observations", len(obs)).Msg("workbook parsed")
	return obs, nil
}

// parseCellDate accepts Excel serial dates as well as common text layouts.
func parseCellDate(cell string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	for _, layout := range workbookDateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", cell)
}
