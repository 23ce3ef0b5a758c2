package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"MediaSentiment/internal/calculator"
	"MediaSentiment/internal/collector"
	"MediaSentiment/internal/exporter"
	"MediaSentiment/internal/forecast"
	"MediaSentiment/internal/merger"
	"MediaSentiment/internal/metrics"
	"MediaSentiment/internal/model"
	"MediaSentiment/internal/recorder"
)

// Notifier delivers run reports.
type Notifier interface {
	NotifyRun(ctx context.Context, run *recorder.RunRecord, maxRetries int) error
}

// Transforms lists the derived columns to add after merging.
type Transforms struct {
	ZScore    []string
	PctChange []string
	Lag       int
}

// Pipeline runs one collect, merge, transform, forecast and export cycle.
// Recorder, Metrics and Notifier are side channels: their failures are
// logged and never fail the run.
type Pipeline struct {
	Collector  *collector.Collector
	Runner     *forecast.Runner
	Sentinels  []string
	Transforms Transforms
	TrainFrom  int
	TrainTo    int
	OutputPath string
	Exclude    []string

	Recorder       recorder.Recorder
	Metrics        *metrics.RunMetrics
	PushgatewayURL string
	MetricsJob     string
	Notifier       Notifier

	mu   sync.Mutex
	last *recorder.RunRecord
}

// Run executes the pipeline once and returns the run record. The error is
// the run's failure, if any; the record is returned in both cases.
func (p *Pipeline) Run(ctx context.Context) (*recorder.RunRecord, error) {
	run := &recorder.RunRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Endog:     p.Runner.Endog,
		Exog:      p.Runner.Exog,
		Order:     p.Runner.Order,
		TrainFrom: p.TrainFrom,
		TrainTo:   p.TrainTo,
		TrainRMSE: model.Missing,
		TestRMSE:  model.Missing,
	}
	logger := log.With().Str("run_id", run.ID).Logger()
	logger.Info().Msg("run started")

	res, err := p.execute(ctx)
	run.FinishedAt = time.Now()
	if err != nil {
		run.Status = recorder.StatusFailure
		run.Error = err.Error()
		logger.Error().Err(err).Dur("elapsed", run.Duration()).Msg("run failed")
	} else {
		run.Status = recorder.StatusSuccess
		run.Model = res.Model
		run.Scored = res.Scored
		run.TrainRows = len(res.Training)
		run.TestRows = len(res.Testing)
		run.TrainRMSE = res.TrainRMSE
		run.TestRMSE = res.TestRMSE
		run.OutputPath = p.OutputPath
		logger.Info().
			Int("train_rows", run.TrainRows).
			Int("test_rows", run.TestRows).
			Float64("train_rmse", run.TrainRMSE).
			Float64("test_rmse", run.TestRMSE).
			Dur("elapsed", run.Duration()).
			Msg("run finished")
	}

	p.mu.Lock()
	p.last = run
	p.mu.Unlock()

	p.report(ctx, run)
	return run, err
}

// Last returns the most recent run of this process, falling back to the
// recorder when nothing ran yet.
func (p *Pipeline) Last() (*recorder.RunRecord, error) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last != nil {
		return last, nil
	}
	if p.Recorder == nil {
		return nil, recorder.ErrNoRuns
	}
	return p.Recorder.LastRun()
}

func (p *Pipeline) execute(ctx context.Context) (*forecast.Result, error) {
	tables, err := p.Collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	panel, err := merger.Merge(tables, p.Sentinels)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	log.Info().Int("rows", panel.Len()).Strs("columns", panel.Columns).
		Str("first", panel.Rows[0].Key.String()).Str("last", panel.Rows[panel.Len()-1].Key.String()).
		Msg("series merged")

	panel, err = p.transform(panel)
	if err != nil {
		return nil, err
	}

	res, err := p.Runner.Run(panel, p.TrainFrom, p.TrainTo)
	if err != nil {
		return nil, err
	}
	logSummary(res.Model)

	if err := exporter.WriteCSV(p.OutputPath, panel.Columns, p.Exclude, res.Scored); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return res, nil
}

func (p *Pipeline) transform(panel *model.Panel) (*model.Panel, error) {
	var err error
	for _, col := range p.Transforms.ZScore {
		if panel, err = calculator.AddZScore(panel, col); err != nil {
			return nil, fmt.Errorf("z-score %s: %w", col, err)
		}
	}
	lag := p.Transforms.Lag
	if lag == 0 {
		lag = calculator.DefaultPctChangeLag
	}
	for _, col := range p.Transforms.PctChange {
		if panel, err = calculator.AddPctChange(panel, col, lag); err != nil {
			return nil, fmt.Errorf("pct-change %s: %w", col, err)
		}
	}
	before := panel.Len()
	panel = calculator.DropIncomplete(panel)
	log.Info().Int("rows", panel.Len()).Int("dropped", before-panel.Len()).Msg("transforms applied")
	if panel.Len() == 0 {
		return nil, &model.InsufficientDataError{Reason: "no complete rows after transforms"}
	}
	return panel, nil
}

func logSummary(m *model.FittedModel) {
	ev := log.Info().
		Str("order", m.Order.String()).
		Int("nobs", m.NObs).
		Float64("loglik", m.LogLik).
		Float64("aic", m.AIC)
	coefs := map[string]interface{}{}
	for _, c := range m.Coefficients() {
		coefs[c.Name] = c.Value
	}
	ev.Fields(map[string]interface{}{"coefficients": coefs}).Msg("model fitted")
}

func (p *Pipeline) report(ctx context.Context, run *recorder.RunRecord) {
	if p.Recorder != nil {
		if err := p.Recorder.RecordRun(run); err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Msg("record run")
		}
	}
	if p.Metrics != nil {
		p.Metrics.Observe(run)
		if p.PushgatewayURL != "" {
			if err := p.Metrics.Push(ctx, p.PushgatewayURL, p.MetricsJob); err != nil {
				log.Warn().Err(err).Msg("push metrics")
			}
		}
	}
	if p.Notifier != nil {
		if err := p.Notifier.NotifyRun(ctx, run, 3); err != nil {
			log.Warn().Err(err).Msg("send run report")
		}
	}
}
