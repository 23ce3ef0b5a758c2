package calculator

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"MediaSentiment/internal/model"
)

// Column prefixes of derived fields.
const (
	ZScorePrefix    = "z_"
	PctChangePrefix = "ppchg_"
)

// DefaultPctChangeLag compares each quarter with the same quarter a year earlier.
const DefaultPctChangeLag = 4

// ZScoreColumn returns the name of the standardized version of column.
func ZScoreColumn(column string) string { return ZScorePrefix + column }

// PctChangeColumn returns the name of the percent-change version of column.
func PctChangeColumn(column string) string { return PctChangePrefix + column }

// AddZScore returns a panel with z_<column> = (v - mean) / sd, where mean and
// sample sd are taken once over every row of the panel.
func AddZScore(p *model.Panel, column string) (*model.Panel, error) {
	if !p.HasColumn(column) {
		return nil, fmt.Errorf("zscore: unknown column %q", column)
	}
	var values []float64
	for _, v := range p.Column(column) {
		if !model.IsMissing(v) {
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return nil, &model.InsufficientDataError{Series: column, Reason: "need at least two values to standardize"}
	}
	mean, sd := stat.MeanStdDev(values, nil)
	if sd == 0 {
		return nil, &model.InsufficientDataError{Series: column, Reason: "zero variance"}
	}

	out := derive(p, ZScoreColumn(column))
	for i, r := range p.Rows {
		z := model.Missing
		if v := r.Get(column); !model.IsMissing(v) {
			z = (v - mean) / sd
		}
		out.Rows[i] = r.With(ZScoreColumn(column), z)
	}
	return out, nil
}

// AddPctChange returns a panel with ppchg_<column> = 100*(v[t]-v[t-lag])/v[t-lag].
// The lag is positional over panel rows. The first lag rows, and rows whose
// base value is zero or missing, carry the missing marker.
func AddPctChange(p *model.Panel, column string, lag int) (*model.Panel, error) {
	if !p.HasColumn(column) {
		return nil, fmt.Errorf("pct change: unknown column %q", column)
	}
	if lag <= 0 {
		return nil, errors.New("pct change: lag must be positive")
	}

	out := derive(p, PctChangeColumn(column))
	for i, r := range p.Rows {
		pct := model.Missing
		if i >= lag {
			base := p.Rows[i-lag].Get(column)
			cur := r.Get(column)
			if !model.IsMissing(base) && !model.IsMissing(cur) && base != 0 {
				pct = 100 * (cur - base) / base
			}
		}
		out.Rows[i] = r.With(PctChangeColumn(column), pct)
	}
	return out, nil
}

// DropIncomplete removes every row holding a missing marker in any column.
func DropIncomplete(p *model.Panel) *model.Panel {
	out := &model.Panel{Columns: append([]string(nil), p.Columns...)}
	for _, r := range p.Rows {
		complete := true
		for _, c := range p.Columns {
			if model.IsMissing(r.Get(c)) {
				complete = false
				break
			}
		}
		if complete {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

func derive(p *model.Panel, column string) *model.Panel {
	cols := append([]string(nil), p.Columns...)
	if !p.HasColumn(column) {
		cols = append(cols, column)
	}
	return &model.Panel{Columns: cols, Rows: make([]model.Row, len(p.Rows))}
}
