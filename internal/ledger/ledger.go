// Package ledger keeps the append-only history of daily closing prices.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DateLayout is the on-disk date format (MM/DD/YY).
const DateLayout = "01/02/06"

var readLayouts = []string{DateLayout, "1/2/06", "2006-01-02"}

var header = []string{"date", "close"}

// Entry is one dated close.
type Entry struct {
	Date  time.Time
	Value string
}

// Ledger is a CSV file of (date, close) rows. Existing rows are never rewritten.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	index   map[string]struct{}
}

// Open loads the ledger at path. A missing file is an empty ledger.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path, index: make(map[string]struct{})}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("ledger not found, starting empty")
			return l, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	line := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read ledger line %d: %w", line, err)
		}
		if first {
			first = false
			if _, perr := parseDate(rec[0]); perr != nil {
				continue // header
			}
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("ledger line %d: want 2 fields, got %d", line, len(rec))
		}
		d, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		l.add(Entry{Date: d, Value: strings.TrimSpace(rec[1])})
	}
	log.Debug().Str("path", path).Int("entries", len(l.entries)).Msg("ledger loaded")
	return l, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func key(t time.Time) string { return t.Format("2006-01-02") }

func (l *Ledger) add(e Entry) bool {
	k := key(e.Date)
	if _, ok := l.index[k]; ok {
		return false
	}
	l.index[k] = struct{}{}
	l.entries = append(l.entries, e)
	return true
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Has reports whether the ledger already holds a row for the date of t.
func (l *Ledger) Has(t time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[key(t)]
	return ok
}

// Entries returns a copy of all rows in date order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]Entry(nil), l.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Append adds the entries whose dates are not yet in the ledger and writes
// them to the end of the file. It returns the number of rows written.
func (l *Ledger) Append(entries []Entry) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var fresh []Entry
	for _, e := range entries {
		if l.add(e) {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return 0, fmt.Errorf("create ledger dir: %w", err)
	}
	_, statErr := os.Stat(l.path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open ledger for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return 0, fmt.Errorf("write ledger header: %w", err)
		}
	}
	for _, e := range fresh {
		if err := w.Write([]string{e.Date.Format(DateLayout), e.Value}); err != nil {
			return 0, fmt.Errorf("append ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush ledger: %w", err)
	}
	return len(fresh), nil
}
