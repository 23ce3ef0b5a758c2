// Package forecast fits a regression with ARIMA errors on a training window
// and scores both the training and testing windows with the fitted model.
package forecast

import "MediaSentiment/internal/model"

// Forecaster estimates and applies a time-series model.
// exog is row-major: exog[t][j] is regressor j at time t.
type Forecaster interface {
	Fit(endog []float64, exog [][]float64, order model.Order) (*model.FittedModel, error)
	Apply(m *model.FittedModel, endog []float64, exog [][]float64) ([]float64, error)
}
