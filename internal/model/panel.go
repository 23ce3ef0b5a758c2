package model

import "math"

// Missing is the marker stored in a panel cell that has no value.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Row is one quarter of the panel.
type Row struct {
	Key    Quarter
	Values map[string]float64
}

// Get returns the value of column, or Missing when absent.
func (r Row) Get(column string) float64 {
	v, ok := r.Values[column]
	if !ok {
		return Missing
	}
	return v
}

// With returns a copy of r with column set to v.
func (r Row) With(column string, v float64) Row {
	values := make(map[string]float64, len(r.Values)+1)
	for k, x := range r.Values {
		values[k] = x
	}
	values[column] = v
	return Row{Key: r.Key, Values: values}
}

// Panel is an ascending, duplicate-free sequence of quarterly rows.
type Panel struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (p *Panel) Len() int { return len(p.Rows) }

// HasColumn reports whether the panel declares column.
func (p *Panel) HasColumn(column string) bool {
	for _, c := range p.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Column extracts the values of one column in row order.
func (p *Panel) Column(column string) []float64 {
	out := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Get(column)
	}
	return out
}

// Matrix extracts the given columns row by row.
func (p *Panel) Matrix(columns []string) [][]float64 {
	out := make([][]float64, len(p.Rows))
	for i, r := range p.Rows {
		row := make([]float64, len(columns))
		for j, c := range columns {
			row[j] = r.Get(c)
		}
		out[i] = row
	}
	return out
}

// Window labels which regime a scored row came from.
type Window string

const (
	WindowTraining Window = "training"
	WindowTesting  Window = "testing"
)

// ScoredRow is a panel row with the model's fitted value and residual.
type ScoredRow struct {
	Row
	Window   Window
	Yhat     float64
	Residual float64
}
