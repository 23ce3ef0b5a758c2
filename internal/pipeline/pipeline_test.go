package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaSentiment/internal/collector"
	"MediaSentiment/internal/config"
	"MediaSentiment/internal/metrics"
	"MediaSentiment/internal/model"
	"MediaSentiment/internal/notifier"
	"MediaSentiment/internal/recorder"
)

// meanForecaster predicts the training mean of the endogenous series.
type meanForecaster struct{}

func (meanForecaster) Fit(endog []float64, _ [][]float64, order model.Order) (*model.FittedModel, error) {
	sum := 0.0
	for _, v := range endog {
		sum += v
	}
	return &model.FittedModel{Order: order, Intercept: sum / float64(len(endog)), NObs: len(endog)}, nil
}

func (meanForecaster) Apply(m *model.FittedModel, endog []float64, _ [][]float64) ([]float64, error) {
	out := make([]float64, len(endog))
	for i := range out {
		out[i] = m.Intercept
	}
	return out, nil
}

type memRecorder struct {
	runs []*recorder.RunRecord
	err  error
}

func (r *memRecorder) RecordRun(run *recorder.RunRecord) error {
	r.runs = append(r.runs, run)
	return r.err
}

func (r *memRecorder) LastRun() (*recorder.RunRecord, error) {
	if len(r.runs) == 0 {
		return nil, recorder.ErrNoRuns
	}
	return r.runs[len(r.runs)-1], nil
}

func (r *memRecorder) Close() error { return nil }

type memNotifier struct{ messages []string }

func (n *memNotifier) NotifyRun(_ context.Context, run *recorder.RunRecord, _ int) error {
	n.messages = append(n.messages, notifier.FormatRun(run))
	return nil
}

// twoYears serves sentiment 1..8 daily, unemployment and gdp quarterly for 2015Q1-2016Q4.
func twoYears() map[string][]model.Observation {
	data := map[string][]model.Observation{}
	for i := 0; i < 8; i++ {
		start := time.Date(2015+i/4, time.Month(3*(i%4)+1), 1, 0, 0, 0, 0, time.UTC)
		data["SENT"] = append(data["SENT"],
			model.Observation{Date: start.AddDate(0, 0, 3), Value: strconv.Itoa(i)},
			model.Observation{Date: start.AddDate(0, 1, 0), Value: strconv.Itoa(i + 2)},
		)
		data["UNRATE"] = append(data["UNRATE"], model.Observation{Date: start, Value: strconv.FormatFloat(5+0.1*float64(i), 'f', 1, 64)})
		data["GDP"] = append(data["GDP"], model.Observation{Date: start, Value: strconv.Itoa(1000 + 10*i)})
	}
	return data
}

type fixture struct {
	cfg      *config.Config
	pipeline *Pipeline
	source   *collector.MockSource
	rec      *memRecorder
	notes    *memNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()
	cfg.Transform.PctChange = nil
	cfg.Model.Exog = []string{"unemployment"}
	cfg.Model.TrainFrom, cfg.Model.TrainTo = 2015, 2016
	cfg.Output.Exclude = []string{"sentiment", "gdp"}

	src := &collector.MockSource{Data: twoYears()}
	bindings := []collector.Binding{
		{Series: model.Series{ID: "SENT", Column: "sentiment", Frequency: model.Daily}, Source: src},
		{Series: model.Series{ID: "UNRATE", Column: "unemployment", Frequency: model.Quarterly}, Source: src},
		{Series: model.Series{ID: "GDP", Column: "gdp", Frequency: model.Quarterly}, Source: src},
	}
	f := &fixture{cfg: cfg, source: src, rec: &memRecorder{}, notes: &memNotifier{}}
	f.pipeline = New(cfg, bindings, meanForecaster{})
	f.pipeline.Recorder = f.rec
	f.pipeline.Notifier = f.notes
	f.pipeline.Metrics = metrics.New()
	return f
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	records, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRun_TwoYearScenario(t *testing.T) {
	f := newFixture(t)

	run, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, recorder.StatusSuccess, run.Status)
	assert.Equal(t, 4, run.TrainRows)
	assert.Equal(t, 4, run.TestRows)
	require.Len(t, run.Scored, 8)

	zsum := 0.0
	for i, s := range run.Scored {
		zsum += s.Get("z_sentiment")
		assert.Equal(t, 2015+i/4, s.Key.Year)
		assert.Equal(t, i%4+1, s.Key.Quarter)
	}
	assert.InDelta(t, 0, zsum, 1e-9)
	assert.Equal(t, model.WindowTraining, run.Scored[3].Window)
	assert.Equal(t, model.WindowTesting, run.Scored[4].Window)

	records := readOutput(t, filepath.Join(f.cfg.DataDir, "forecast_data.csv"))
	require.Len(t, records, 9)
	assert.Equal(t, []string{"year", "quarter", "unemployment", "z_sentiment", "yhat", "residuals"}, records[0])
	assert.Equal(t, []string{"2015", "1"}, records[1][:2])
	assert.Equal(t, []string{"2016", "4"}, records[8][:2])

	require.Len(t, f.rec.runs, 1)
	assert.Equal(t, run.ID, f.rec.runs[0].ID)
	require.Len(t, f.notes.messages, 1)
	assert.Contains(t, f.notes.messages[0], "Testing ≥2016: 4 rows")

	last, err := f.pipeline.Last()
	require.NoError(t, err)
	assert.Equal(t, run.ID, last.ID)
}

func TestRun_SentinelQuarterExcluded(t *testing.T) {
	f := newFixture(t)
	f.source.Data["GDP"][2].Value = "."

	run, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, run.TrainRows)
	assert.Equal(t, 4, run.TestRows)
	for _, s := range run.Scored {
		assert.NotEqual(t, model.Quarter{Year: 2015, Quarter: 3}, s.Key)
	}
}

func TestRun_EmptyTestingWindow(t *testing.T) {
	f := newFixture(t)
	f.pipeline.TrainTo = 2017

	run, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, run.TrainRows)
	assert.Equal(t, 0, run.TestRows)
	assert.True(t, model.IsMissing(run.TestRMSE))
	for _, s := range run.Scored {
		assert.Equal(t, model.WindowTraining, s.Window)
	}
	assert.Len(t, readOutput(t, f.pipeline.OutputPath), 9)
}

func TestRun_FetchFailureWritesNoOutput(t *testing.T) {
	f := newFixture(t)
	delete(f.source.Data, "UNRATE")

	run, err := f.pipeline.Run(context.Background())

	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, recorder.StatusFailure, run.Status)
	assert.NoFileExists(t, f.pipeline.OutputPath)
	require.Len(t, f.notes.messages, 1)
	assert.Contains(t, f.notes.messages[0], "failed")
}

func TestRun_NonNumericValueAborts(t *testing.T) {
	f := newFixture(t)
	f.source.Data["GDP"][5].Value = "n/a"

	_, err := f.pipeline.Run(context.Background())
	var nonNumeric *model.NonNumericValueError
	assert.ErrorAs(t, err, &nonNumeric)
	assert.NoFileExists(t, f.pipeline.OutputPath)
}

func TestRun_SideChannelFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.rec.err = errors.New("disk full")

	run, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusSuccess, run.Status)
	assert.FileExists(t, f.pipeline.OutputPath)
}

func TestLast_FallsBackToRecorder(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Last()
	assert.ErrorIs(t, err, recorder.ErrNoRuns)

	f.rec.runs = append(f.rec.runs, &recorder.RunRecord{ID: "earlier"})
	last, err := f.pipeline.Last()
	require.NoError(t, err)
	assert.Equal(t, "earlier", last.ID)
}

func TestBindings_FromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()

	bindings := Bindings(cfg)
	require.Len(t, bindings, 6)
	assert.Equal(t, "sentiment", bindings[0].Series.Column)
	assert.Equal(t, "workbook", bindings[0].Source.Name())
	assert.Equal(t, "DJIA", bindings[1].Series.ID)
	assert.Equal(t, "ledger+fred", bindings[1].Source.Name())
	for _, b := range bindings[2:] {
		assert.Equal(t, "fred", b.Source.Name())
		assert.Equal(t, model.Quarterly, b.Series.Frequency)
	}

	cfg.Stock.Source = "yahoo"
	assert.Equal(t, "ledger+yahoo", Bindings(cfg)[1].Source.Name())
}
