package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaSentiment/internal/model"
	"MediaSentiment/internal/recorder"
)

func sampleRun() *recorder.RunRecord {
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	return &recorder.RunRecord{
		ID:         "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Status:     recorder.StatusSuccess,
		Endog:      "z_sentiment",
		Order:      model.Order{P: 1, D: 0, Q: 4},
		TrainFrom:  1988,
		TrainTo:    2017,
		TrainRows:  116,
		TestRows:   0,
		TrainRMSE:  0.41234,
		TestRMSE:   model.Missing,
		OutputPath: "data/forecast_data.csv",
		Model: &model.FittedModel{
			Exog:      []string{"unemployment"},
			Intercept: 0.1,
			Beta:      []float64{-0.25},
			Sigma2:    0.2,
		},
	}
}

func TestFormatRunReport(t *testing.T) {
	msg := FormatRunReport(sampleRun())

	assert.Contains(t, msg, "ARIMA(1,0,4)")
	assert.Contains(t, msg, "Training 1988-2016: 116 rows, RMSE 0.4123")
	assert.Contains(t, msg, "Testing ≥2017: 0 rows, RMSE n/a")
	assert.Contains(t, msg, "unemployment: -0.2500")
	assert.Contains(t, msg, "sigma2: +0.2000")
	assert.Contains(t, msg, "data/forecast_data.csv")
	assert.Contains(t, msg, "Run run-1 (1.5s)")
}

func TestFormatRun_Failure(t *testing.T) {
	run := sampleRun()
	run.Status = recorder.StatusFailure
	run.Error = `fetch GDP from fred: status 400: <bad key>`
	run.Model = nil

	msg := FormatRun(run)
	assert.Contains(t, msg, "failed")
	assert.Contains(t, msg, "&lt;bad key&gt;")
	assert.NotContains(t, msg, "Coefficients")
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		assert.Equal(t, true, payload["disable_web_page_preview"])
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL

	require.NoError(t, tn.SendWithRetry(context.Background(), "hello", 2))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL
	err := tn.SendWithRetry(context.Background(), "hello", 0)
	assert.ErrorContains(t, err, "all 1 retries exhausted")
}

func TestNotifyRun_SilentOnSuccess(t *testing.T) {
	got := make(chan sendMessage, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg sendMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		got <- msg
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL

	run := sampleRun()
	require.NoError(t, tn.NotifyRun(context.Background(), run, 0))
	msg := <-got
	assert.True(t, msg.DisableNotification)
	assert.Equal(t, "HTML", msg.ParseMode)
	assert.Contains(t, msg.Text, "<b>Sentiment forecast</b>")

	run.Status = recorder.StatusFailure
	run.Error = "merge: empty intersection"
	require.NoError(t, tn.NotifyRun(context.Background(), run, 0))
	msg = <-got
	assert.False(t, msg.DisableNotification)
	assert.Contains(t, msg.Text, "empty intersection")
}

func TestSend_ReportsAPIDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL
	err := tn.Send(context.Background(), "<b>unclosed")
	assert.ErrorContains(t, err, "can't parse entities")
}

func TestStartPolling_DispatchesCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls atomic.Int32
	replies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polls.Add(1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /last "}}]}`))
				return
			}
			assert.Equal(t, "8", r.URL.Query().Get("offset"))
			<-r.Context().Done()
		case "/botTOKEN/sendMessage":
			var payload sendMessage
			json.NewDecoder(r.Body).Decode(&payload)
			replies <- payload.Text
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL

	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(cmd string) string { return "got " + cmd })
		close(done)
	}()

	select {
	case reply := <-replies:
		assert.Equal(t, "got /last", reply)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
}
