package forecast

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaSentiment/internal/model"
)

// simulate draws y = c + b*x + u with u[t] = phi*u[t-1] + e[t].
func simulate(n int, c, b, phi float64) ([]float64, [][]float64) {
	rng := rand.New(rand.NewSource(7))
	y := make([]float64, n)
	x := make([][]float64, n)
	u := 0.0
	for t := 0; t < n; t++ {
		xt := rng.NormFloat64()
		u = phi*u + 0.5*rng.NormFloat64()
		x[t] = []float64{xt}
		y[t] = c + b*xt + u
	}
	return y, x
}

func TestARIMAX_RecoversParameters(t *testing.T) {
	y, x := simulate(500, 0.5, 2.0, 0.6)

	m, err := NewARIMAX().Fit(y, x, model.Order{P: 1})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, m.Beta[0], 0.1)
	assert.InDelta(t, 0.6, m.AR[0], 0.1)
	assert.InDelta(t, 0.5, m.Intercept, 0.25)
	assert.InDelta(t, 0.25, m.Sigma2, 0.05)
	assert.Equal(t, 500, m.NObs)
	assert.False(t, math.IsNaN(m.AIC))
}

func TestARIMAX_InsampleBeatsMean(t *testing.T) {
	y, x := simulate(200, 0, 1.5, 0.5)
	f := NewARIMAX()
	m, err := f.Fit(y, x, model.Order{P: 1, Q: 1})
	require.NoError(t, err)

	fitted, err := f.Apply(m, y, x)
	require.NoError(t, err)
	require.Len(t, fitted, len(y))

	var sse, sst, mean float64
	for _, v := range y {
		mean += v / float64(len(y))
	}
	for i := range y {
		sse += (y[i] - fitted[i]) * (y[i] - fitted[i])
		sst += (y[i] - mean) * (y[i] - mean)
	}
	assert.Less(t, sse, sst)
}

func TestARIMAX_ApplyWithoutARMAIsRegression(t *testing.T) {
	m := &model.FittedModel{Intercept: 1, Beta: []float64{2, -1}}
	x := [][]float64{{1, 0}, {0, 1}, {2, 2}}
	y := []float64{10, 10, 10}

	fitted, err := NewARIMAX().Apply(m, y, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 3}, fitted)
}

func TestARIMAX_ApplyUsesFixedParameters(t *testing.T) {
	m := &model.FittedModel{Intercept: 0, Beta: []float64{1}, AR: []float64{0.5}}
	x := [][]float64{{0}, {0}, {0}}
	y := []float64{2, 0, 0}

	fitted, err := NewARIMAX().Apply(m, y, x)
	require.NoError(t, err)
	// u = y; yhat[t] = 0.5*u[t-1]
	assert.Equal(t, []float64{0, 1, 0}, fitted)
}

func TestARIMAX_DifferencedLeadingValuesMissing(t *testing.T) {
	m := &model.FittedModel{Order: model.Order{D: 1}, Beta: []float64{0}}
	y := []float64{1, 2, 4, 7}
	x := [][]float64{{0}, {0}, {0}, {0}}

	fitted, err := NewARIMAX().Apply(m, y, x)
	require.NoError(t, err)
	assert.True(t, model.IsMissing(fitted[0]))
	// white-noise differences: yhat[t] = y[t-1]
	assert.Equal(t, []float64{1, 2, 4}, fitted[1:])
}

func TestARIMAX_InsufficientData(t *testing.T) {
	y := []float64{1, 2, 3}
	x := [][]float64{{1}, {2}, {3}}
	_, err := NewARIMAX().Fit(y, x, model.Order{P: 1, Q: 4})

	var insufficient *model.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestARIMAX_ShapeMismatch(t *testing.T) {
	_, err := NewARIMAX().Fit([]float64{1, 2}, [][]float64{{1}}, model.Order{})
	assert.Error(t, err)

	_, err = NewARIMAX().Apply(&model.FittedModel{Beta: []float64{1, 2}}, []float64{1}, [][]float64{{1}})
	assert.Error(t, err)
}

func TestConstrain_Stationary(t *testing.T) {
	for _, raw := range [][]float64{{5}, {-3}, {2, -2}, {0.3, 1.5}, {10, 10}, {40, -40}, {1e6}} {
		phi := constrain(raw)
		switch len(phi) {
		case 1:
			assert.Less(t, math.Abs(phi[0]), 1.0)
		case 2:
			assert.Less(t, math.Abs(phi[1]), 1.0)
			assert.Less(t, phi[0]+phi[1], 1.0)
			assert.Less(t, phi[1]-phi[0], 1.0)
		}
	}
	assert.Equal(t, []float64{0, 0, 0}, constrain([]float64{0, 0, 0}))
}
