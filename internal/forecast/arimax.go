package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"MediaSentiment/internal/model"
)

// ARIMAX fits y = c + X·beta + u, where u follows an ARMA(p, q) process after
// d differences, by minimizing the conditional sum of squared innovations.
// Pre-sample errors and innovations are taken as zero.
type ARIMAX struct {
	MaxIterations int
	Tolerance     float64
}

// NewARIMAX creates a forecaster with default optimizer settings.
func NewARIMAX() *ARIMAX {
	return &ARIMAX{MaxIterations: 20000, Tolerance: 1e-10}
}

// Fit estimates the model on the training arrays.
func (a *ARIMAX) Fit(endog []float64, exog [][]float64, order model.Order) (*model.FittedModel, error) {
	k, err := checkInputs(endog, exog, -1)
	if err != nil {
		return nil, err
	}
	if order.P < 0 || order.D < 0 || order.Q < 0 {
		return nil, fmt.Errorf("invalid order %s", order)
	}

	y, x := difference(endog, exog, order.D)
	n := len(y)
	nParams := 1 + k + order.P + order.Q
	if n <= nParams {
		return nil, &model.InsufficientDataError{Reason: fmt.Sprintf("%d observations for %d parameters", n, nParams)}
	}

	start, err := olsStart(y, x)
	if err != nil {
		return nil, err
	}
	x0 := make([]float64, nParams)
	copy(x0, start)

	problem := optimize.Problem{
		Func: func(raw []float64) float64 {
			c, beta, ar, ma := unpack(raw, k, order)
			sse := 0.0
			for _, e := range innovations(y, x, c, beta, ar, ma) {
				sse += e * e
			}
			return sse
		},
	}
	settings := &optimize.Settings{
		MajorIterations: a.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   a.Tolerance,
			Iterations: 200,
		},
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return nil, fmt.Errorf("no convergence after %d iterations (status %v)", result.Stats.MajorIterations, result.Status)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, errors.New("objective is not finite at the optimum")
	}

	c, beta, ar, ma := unpack(result.X, k, order)
	sigma2 := result.F / float64(n)
	logLik := -float64(n) / 2 * (math.Log(2*math.Pi*sigma2) + 1)
	return &model.FittedModel{
		Order:     order,
		Intercept: c,
		Beta:      beta,
		AR:        ar,
		MA:        ma,
		Sigma2:    sigma2,
		LogLik:    logLik,
		AIC:       -2*logLik + 2*float64(nParams+1),
		NObs:      n,
	}, nil
}

// Apply runs the fitted filter over new data with the parameters held fixed
// and returns one-step-ahead fitted values on the original scale. The first d
// values are missing when the model differences the data.
func (a *ARIMAX) Apply(m *model.FittedModel, endog []float64, exog [][]float64) ([]float64, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	if len(endog) == 0 {
		return nil, nil
	}
	if _, err := checkInputs(endog, exog, len(m.Beta)); err != nil {
		return nil, err
	}

	d := m.Order.D
	fitted := make([]float64, len(endog))
	if len(endog) <= d {
		for i := range fitted {
			fitted[i] = model.Missing
		}
		return fitted, nil
	}

	y, x := difference(endog, exog, d)
	e := innovations(y, x, m.Intercept, m.Beta, m.AR, m.MA)
	for t := range endog {
		if t < d {
			fitted[t] = model.Missing
			continue
		}
		// one-step error in levels equals the innovation of the differenced model
		fitted[t] = endog[t] - e[t-d]
	}
	return fitted, nil
}

func checkInputs(endog []float64, exog [][]float64, k int) (int, error) {
	if len(endog) == 0 {
		return 0, &model.InsufficientDataError{Reason: "empty endogenous series"}
	}
	if len(exog) != len(endog) {
		return 0, fmt.Errorf("exog has %d rows, endog has %d", len(exog), len(endog))
	}
	if k < 0 {
		k = len(exog[0])
	}
	for t, row := range exog {
		if len(row) != k {
			return 0, fmt.Errorf("exog row %d has %d columns, want %d", t, len(row), k)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("exog row %d is not finite", t)
			}
		}
		if math.IsNaN(endog[t]) || math.IsInf(endog[t], 0) {
			return 0, fmt.Errorf("endog row %d is not finite", t)
		}
	}
	return k, nil
}

// difference applies d first differences to y and every column of x.
func difference(endog []float64, exog [][]float64, d int) ([]float64, [][]float64) {
	y := append([]float64(nil), endog...)
	x := make([][]float64, len(exog))
	for i, row := range exog {
		x[i] = append([]float64(nil), row...)
	}
	for i := 0; i < d; i++ {
		ny := make([]float64, len(y)-1)
		nx := make([][]float64, len(x)-1)
		for t := 1; t < len(y); t++ {
			ny[t-1] = y[t] - y[t-1]
			row := make([]float64, len(x[t]))
			for j := range row {
				row[j] = x[t][j] - x[t-1][j]
			}
			nx[t-1] = row
		}
		y, x = ny, nx
	}
	return y, x
}

// olsStart returns least-squares [c, beta...] used as the optimizer's start.
func olsStart(y []float64, x [][]float64) ([]float64, error) {
	n := len(y)
	k := 0
	if n > 0 {
		k = len(x[0])
	}
	design := mat.NewDense(n, k+1, nil)
	for t := 0; t < n; t++ {
		design.Set(t, 0, 1)
		for j := 0; j < k; j++ {
			design.Set(t, j+1, x[t][j])
		}
	}
	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		// an ill-conditioned design still yields usable start values
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("ols start values: %w", err)
		}
	}
	return mat.Col(nil, 0, &coef), nil
}

// innovations runs the ARMA filter over regression errors u = y - c - x·beta.
func innovations(y []float64, x [][]float64, c float64, beta, ar, ma []float64) []float64 {
	n := len(y)
	u := make([]float64, n)
	e := make([]float64, n)
	for t := 0; t < n; t++ {
		mean := c
		for j, b := range beta {
			mean += b * x[t][j]
		}
		u[t] = y[t] - mean
		pred := 0.0
		for i, phi := range ar {
			if t-i-1 >= 0 {
				pred += phi * u[t-i-1]
			}
		}
		for i, theta := range ma {
			if t-i-1 >= 0 {
				pred += theta * e[t-i-1]
			}
		}
		e[t] = u[t] - pred
	}
	return e
}

// unpack splits the optimizer vector and maps the ARMA part onto the
// stationary and invertible region.
func unpack(raw []float64, k int, order model.Order) (float64, []float64, []float64, []float64) {
	c := raw[0]
	beta := append([]float64(nil), raw[1:1+k]...)
	ar := constrain(raw[1+k : 1+k+order.P])
	ma := constrain(raw[1+k+order.P : 1+k+order.P+order.Q])
	for i := range ma {
		ma[i] = -ma[i]
	}
	return c, beta, ar, ma
}

// constrain maps unconstrained values to partial autocorrelations in (-1, 1)
// and then to the coefficients of a stationary AR polynomial (Durbin-Levinson).
func constrain(raw []float64) []float64 {
	p := len(raw)
	phi := make([]float64, p)
	tmp := make([]float64, p)
	for k := 0; k < p; k++ {
		r := raw[k] / math.Sqrt(1+raw[k]*raw[k])
		for j := 0; j < k; j++ {
			tmp[j] = phi[j] - r*phi[k-1-j]
		}
		copy(phi[:k], tmp[:k])
		phi[k] = r
	}
	return phi
}
