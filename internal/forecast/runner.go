package forecast

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"

	"MediaSentiment/internal/model"
)

// Split partitions the panel by calendar year. Rows with year in [from, to)
// form the training window, rows with year >= to the testing window; earlier
// rows belong to neither.
func Split(p *model.Panel, from, to int) (train, test *model.Panel) {
	train = &model.Panel{Columns: p.Columns}
	test = &model.Panel{Columns: p.Columns}
	for _, r := range p.Rows {
		switch {
		case r.Key.Year < from:
		case r.Key.Year < to:
			train.Rows = append(train.Rows, r)
		default:
			test.Rows = append(test.Rows, r)
		}
	}
	return train, test
}

// Runner fits and applies one model specification.
type Runner struct {
	Forecaster Forecaster
	Endog      string
	Exog       []string
	Order      model.Order
}

// Fit estimates the model on the training window.
func (r *Runner) Fit(train *model.Panel) (*model.FittedModel, error) {
	if train.Len() == 0 {
		return nil, &model.InsufficientDataError{Reason: "training window is empty"}
	}
	if err := r.checkColumns(train); err != nil {
		return nil, err
	}
	m, err := r.Forecaster.Fit(train.Column(r.Endog), train.Matrix(r.Exog), r.Order)
	if err != nil {
		return nil, &model.ModelFitError{Order: r.Order, Err: err}
	}
	m.Exog = append([]string(nil), r.Exog...)
	return m, nil
}

// Score applies m to every row of data and records yhat and residual.
// An empty window scores to an empty slice.
func (r *Runner) Score(m *model.FittedModel, data *model.Panel, window model.Window) ([]model.ScoredRow, error) {
	if data.Len() == 0 {
		return nil, nil
	}
	if err := r.checkColumns(data); err != nil {
		return nil, err
	}
	endog := data.Column(r.Endog)
	yhat, err := r.Forecaster.Apply(m, endog, data.Matrix(r.Exog))
	if err != nil {
		return nil, fmt.Errorf("apply model to %s window: %w", window, err)
	}
	if len(yhat) != data.Len() {
		return nil, fmt.Errorf("apply model to %s window: got %d fitted values for %d rows", window, len(yhat), data.Len())
	}

	scored := make([]model.ScoredRow, data.Len())
	for i, row := range data.Rows {
		scored[i] = model.ScoredRow{
			Row:      row,
			Window:   window,
			Yhat:     yhat[i],
			Residual: endog[i] - yhat[i],
		}
	}
	return scored, nil
}

func (r *Runner) checkColumns(p *model.Panel) error {
	for _, c := range append([]string{r.Endog}, r.Exog...) {
		if !p.HasColumn(c) {
			return fmt.Errorf("panel has no column %q", c)
		}
	}
	return nil
}

// Concat joins the scored training and testing rows, training first.
func Concat(train, test []model.ScoredRow) []model.ScoredRow {
	out := make([]model.ScoredRow, 0, len(train)+len(test))
	out = append(out, train...)
	return append(out, test...)
}

// Result is the outcome of one windowed forecast.
type Result struct {
	Model     *model.FittedModel
	Training  []model.ScoredRow
	Testing   []model.ScoredRow
	Scored    []model.ScoredRow
	TrainRMSE float64
	TestRMSE  float64
}

// Run splits the panel, fits on training and scores both windows with the
// same fixed parameters.
func (r *Runner) Run(p *model.Panel, from, to int) (*Result, error) {
	train, test := Split(p, from, to)
	log.Info().
		Int("train_rows", train.Len()).
		Int("test_rows", test.Len()).
		Int("excluded_rows", p.Len()-train.Len()-test.Len()).
		Msg("panel split")

	m, err := r.Fit(train)
	if err != nil {
		return nil, err
	}
	trainScored, err := r.Score(m, train, model.WindowTraining)
	if err != nil {
		return nil, err
	}
	testScored, err := r.Score(m, test, model.WindowTesting)
	if err != nil {
		return nil, err
	}

	return &Result{
		Model:     m,
		Training:  trainScored,
		Testing:   testScored,
		Scored:    Concat(trainScored, testScored),
		TrainRMSE: RMSE(trainScored),
		TestRMSE:  RMSE(testScored),
	}, nil
}

// RMSE is the root mean squared residual over rows with a fitted value.
// It is NaN for an empty slice.
func RMSE(rows []model.ScoredRow) float64 {
	var res []float64
	for _, r := range rows {
		if !model.IsMissing(r.Residual) {
			res = append(res, r.Residual)
		}
	}
	if len(res) == 0 {
		return math.NaN()
	}
	return floats.Norm(res, 2) / math.Sqrt(float64(len(res)))
}
