package calculator

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"MediaSentiment/internal/model"
)

// AggregationRule reduces the values observed within one quarter.
type AggregationRule func(values []float64) float64

// Mean is the default aggregation rule.
func Mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// IsSentinel reports whether raw is one of the designated missing markers.
func IsSentinel(raw string, sentinels []string) bool {
	raw = strings.TrimSpace(raw)
	for _, s := range sentinels {
		if raw == s {
			return true
		}
	}
	return false
}

// ParseValue parses a numeric cell. NaN and infinities are not numeric values.
func ParseValue(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Normalize groups observations by the calendar quarter of their own timestamp
// and aggregates each group with rule. Sentinel values are skipped; a quarter
// made only of sentinels cannot be aggregated and is an error.
func Normalize(series model.Series, obs []model.Observation, rule AggregationRule, sentinels []string) (*model.SeriesTable, error) {
	if len(obs) == 0 {
		return nil, &model.InsufficientDataError{Series: series.ID, Reason: "no observations"}
	}
	if rule == nil {
		rule = Mean
	}

	groups := make(map[model.Quarter][]float64)
	seen := make(map[model.Quarter]bool)
	for _, o := range obs {
		q := model.QuarterOf(o.Date)
		seen[q] = true
		if IsSentinel(o.Value, sentinels) {
			continue
		}
		v, ok := ParseValue(o.Value)
		if !ok {
			return nil, &model.MalformedObservationError{
				Series: series.ID,
				Period: q,
				Reason: fmt.Sprintf("value %q on %s is not numeric", o.Value, o.Date.Format("2006-01-02")),
			}
		}
		groups[q] = append(groups[q], v)
	}

	table := &model.SeriesTable{SeriesID: series.ID, Column: series.Column}
	for q := range seen {
		values := groups[q]
		if len(values) == 0 {
			return nil, &model.MalformedObservationError{Series: series.ID, Period: q, Reason: "every observation is missing"}
		}
		table.Cells = append(table.Cells, model.Cell{Key: q, Raw: strconv.FormatFloat(rule(values), 'g', -1, 64)})
	}
	sortCells(table.Cells)
	return table, nil
}

// TagQuarterly attaches calendar fields to a series that is already quarterly.
// Cells keep their raw text, so sentinels survive until the merge.
func TagQuarterly(series model.Series, obs []model.Observation) (*model.SeriesTable, error) {
	if len(obs) == 0 {
		return nil, &model.InsufficientDataError{Series: series.ID, Reason: "no observations"}
	}
	table := &model.SeriesTable{SeriesID: series.ID, Column: series.Column}
	seen := make(map[model.Quarter]bool, len(obs))
	for _, o := range obs {
		q := model.QuarterOf(o.Date)
		if seen[q] {
			return nil, &model.MalformedObservationError{Series: series.ID, Period: q, Reason: "more than one observation in a quarterly series"}
		}
		seen[q] = true
		table.Cells = append(table.Cells, model.Cell{Key: q, Raw: strings.TrimSpace(o.Value)})
	}
	sortCells(table.Cells)
	return table, nil
}

// BuildTable picks the quarterly conversion matching the series' native frequency.
func BuildTable(series model.Series, obs []model.Observation, sentinels []string) (*model.SeriesTable, error) {
	if series.Frequency == model.Quarterly {
		return TagQuarterly(series, obs)
	}
	return Normalize(series, obs, Mean, sentinels)
}

func sortCells(cells []model.Cell) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].Key.Before(cells[j].Key) })
}
