package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"MediaSentiment/internal/model"
	"MediaSentiment/internal/recorder"
)

const namespace = "media_sentiment"

// RunMetrics holds the per-run gauges of the forecast job on a private registry.
type RunMetrics struct {
	Registry *prometheus.Registry

	WindowRows      *prometheus.GaugeVec
	WindowRMSE      *prometheus.GaugeVec
	AIC             prometheus.Gauge
	DurationSeconds prometheus.Gauge
	LastSuccess     prometheus.Gauge
	Failures        prometheus.Counter
}

// New creates and registers the run metrics.
func New() *RunMetrics {
	m := &RunMetrics{
		Registry: prometheus.NewRegistry(),
		WindowRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "forecast",
				Name:      "window_rows",
				Help:      "Rows scored per window in the last run",
			},
			[]string{"window"},
		),
		WindowRMSE: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "forecast",
				Name:      "window_rmse",
				Help:      "Root mean squared residual per window in the last run",
			},
			[]string{"window"},
		),
		AIC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "aic",
			Help:      "Akaike information criterion of the last fitted model",
		}),
		DurationSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "failures_total",
			Help:      "Failed runs since process start",
		}),
	}
	m.Registry.MustRegister(m.WindowRows, m.WindowRMSE, m.AIC, m.DurationSeconds, m.LastSuccess, m.Failures)
	return m
}

// Observe updates the gauges from a finished run.
func (m *RunMetrics) Observe(run *recorder.RunRecord) {
	m.DurationSeconds.Set(run.Duration().Seconds())
	if run.Status != recorder.StatusSuccess {
		m.Failures.Inc()
		return
	}
	m.LastSuccess.Set(float64(run.FinishedAt.Unix()))
	m.WindowRows.WithLabelValues(string(model.WindowTraining)).Set(float64(run.TrainRows))
	m.WindowRows.WithLabelValues(string(model.WindowTesting)).Set(float64(run.TestRows))
	m.WindowRMSE.WithLabelValues(string(model.WindowTraining)).Set(run.TrainRMSE)
	m.WindowRMSE.WithLabelValues(string(model.WindowTesting)).Set(run.TestRMSE)
	if run.Model != nil {
		m.AIC.Set(run.Model.AIC)
	}
}

// Push sends the registry to a Pushgateway under job.
func (m *RunMetrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
