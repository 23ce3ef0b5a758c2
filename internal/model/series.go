package model

import (
	"fmt"
	"sort"
	"time"
)

// Frequency is the native sampling frequency of a source series.
type Frequency string

const (
	Daily     Frequency = "d"
	Weekly    Frequency = "w"
	Monthly   Frequency = "m"
	Quarterly Frequency = "q"
)

// Valid reports whether f is a supported frequency.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Quarterly:
		return true
	}
	return false
}

// DefaultSentinel is the placeholder FRED uses for a missing observation.
const DefaultSentinel = "."

// Observation is a single raw reading from a source series.
// Value is kept as delivered by the feed; coercion happens downstream.
type Observation struct {
	Date  time.Time
	Value string
}

// Quarter identifies a calendar quarter.
type Quarter struct {
	Year    int
	Quarter int // 1..4
}

// QuarterOf returns the calendar quarter containing t.
func QuarterOf(t time.Time) Quarter {
	return Quarter{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// Before reports whether q is strictly earlier than o.
func (q Quarter) Before(o Quarter) bool {
	if q.Year != o.Year {
		return q.Year < o.Year
	}
	return q.Quarter < o.Quarter
}

// Start returns the first day of the quarter.
func (q Quarter) Start() time.Time {
	return time.Date(q.Year, time.Month((q.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

func (q Quarter) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Quarter)
}

// QuarterlyPoint is one aggregated value of a series.
type QuarterlyPoint struct {
	Year    int
	Quarter int
	Value   float64
}

// Key returns the calendar key of the point.
func (p QuarterlyPoint) Key() Quarter {
	return Quarter{Year: p.Year, Quarter: p.Quarter}
}

// Cell is one quarterly entry of a SeriesTable before numeric coercion.
type Cell struct {
	Key Quarter
	Raw string
}

// SeriesTable is a quarterly series ready to be merged. Cells are sorted
// ascending and hold at most one entry per quarter.
type SeriesTable struct {
	SeriesID string
	Column   string
	Cells    []Cell
}

// Keys returns the set of quarters present in the table.
func (t *SeriesTable) Keys() map[Quarter]struct{} {
	keys := make(map[Quarter]struct{}, len(t.Cells))
	for _, c := range t.Cells {
		keys[c.Key] = struct{}{}
	}
	return keys
}

// Lookup returns the raw cell for q.
func (t *SeriesTable) Lookup(q Quarter) (string, bool) {
	i := sort.Search(len(t.Cells), func(i int) bool { return !t.Cells[i].Key.Before(q) })
	if i < len(t.Cells) && t.Cells[i].Key == q {
		return t.Cells[i].Raw, true
	}
	return "", false
}

// Series describes one input series of the pipeline.
type Series struct {
	ID        string    // source identifier, e.g. a FRED series id
	Column    string    // output column name in the panel
	Frequency Frequency // native frequency requested from the source
}
