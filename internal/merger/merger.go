// Package merger joins quarterly series into a single panel.
package merger

import (
	"sort"

	"github.com/rs/zerolog/log"

	"MediaSentiment/internal/calculator"
	"MediaSentiment/internal/model"
)

// Merge inner-joins tables on (year, quarter). Only quarters present in every
// table survive. Every cell of a quarter is checked: a non-numeric cell that
// is not a sentinel fails the merge, and a quarter holding a sentinel is then
// dropped.
func Merge(tables []*model.SeriesTable, sentinels []string) (*model.Panel, error) {
	if len(tables) == 0 {
		return nil, &model.InsufficientDataError{Reason: "no series to merge"}
	}

	owners := make(map[string]string, len(tables))
	columns := make([]string, 0, len(tables))
	for _, t := range tables {
		if first, ok := owners[t.Column]; ok {
			return nil, &model.ColumnConflictError{Column: t.Column, First: first, Second: t.SeriesID}
		}
		owners[t.Column] = t.SeriesID
		columns = append(columns, t.Column)
	}

	keys := intersect(tables)
	if len(keys) == 0 {
		return nil, &model.EmptyIntersectionError{Columns: columns}
	}

	panel := &model.Panel{Columns: columns}
	for _, q := range keys {
		values := make(map[string]float64, len(tables))
		var missing []string
		for _, t := range tables {
			raw, _ := t.Lookup(q)
			if calculator.IsSentinel(raw, sentinels) {
				missing = append(missing, t.SeriesID)
				continue
			}
			v, ok := calculator.ParseValue(raw)
			if !ok {
				return nil, &model.NonNumericValueError{Series: t.SeriesID, Period: q, Value: raw}
			}
			values[t.Column] = v
		}
		if len(missing) > 0 {
			log.Debug().Strs("series", missing).Stringer("period", q).Msg("sentinel value, dropping quarter")
		} else {
			panel.Rows = append(panel.Rows, model.Row{Key: q, Values: values})
		}
	}
	if panel.Len() == 0 {
		return nil, &model.EmptyIntersectionError{Columns: columns}
	}
	return panel, nil
}

func intersect(tables []*model.SeriesTable) []model.Quarter {
	common := tables[0].Keys()
	for _, t := range tables[1:] {
		other := t.Keys()
		for q := range common {
			if _, ok := other[q]; !ok {
				delete(common, q)
			}
		}
	}
	keys := make([]model.Quarter, 0, len(common))
	for q := range common {
		keys = append(keys, q)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
