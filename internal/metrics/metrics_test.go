package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaSentiment/internal/model"
	"MediaSentiment/internal/recorder"
)

func TestObserve_Success(t *testing.T) {
	m := New()
	start := time.Unix(1700000000, 0)
	m.Observe(&recorder.RunRecord{
		StartedAt:  start,
		FinishedAt: start.Add(2500 * time.Millisecond),
		Status:     recorder.StatusSuccess,
		TrainRows:  116,
		TestRows:   28,
		TrainRMSE:  0.4,
		TestRMSE:   0.7,
		Model:      &model.FittedModel{AIC: 210.5},
	})

	assert.Equal(t, 116.0, testutil.ToFloat64(m.WindowRows.WithLabelValues("training")))
	assert.Equal(t, 28.0, testutil.ToFloat64(m.WindowRows.WithLabelValues("testing")))
	assert.Equal(t, 0.7, testutil.ToFloat64(m.WindowRMSE.WithLabelValues("testing")))
	assert.Equal(t, 210.5, testutil.ToFloat64(m.AIC))
	assert.Equal(t, 2.5, testutil.ToFloat64(m.DurationSeconds))
	assert.Equal(t, 1700000002.0, testutil.ToFloat64(m.LastSuccess))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Failures))
}

func TestObserve_Failure(t *testing.T) {
	m := New()
	m.Observe(&recorder.RunRecord{Status: recorder.StatusFailure})
	m.Observe(&recorder.RunRecord{Status: recorder.StatusFailure})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Failures))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccess))
}

func TestPush(t *testing.T) {
	var path string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.Failures.Inc()
	require.NoError(t, m.Push(context.Background(), srv.URL, "forecast"))
	assert.Equal(t, "/metrics/job/forecast", path)
	assert.NotEmpty(t, body)
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, New().Push(context.Background(), srv.URL, "forecast"))
}
