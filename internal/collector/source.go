package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"MediaSentiment/internal/model"
)

// SeriesSource returns the raw observations of one series.
// Transport, auth and rate-limit failures are reported as *model.FetchError.
type SeriesSource interface {
	Fetch(ctx context.Context, series model.Series) ([]model.Observation, error)
	Name() string
}

// MockSource returns fixed observations for development and testing.
type MockSource struct {
	Data map[string][]model.Observation
	Err  error
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Fetch(_ context.Context, series model.Series) ([]model.Observation, error) {
	if m.Err != nil {
		return nil, &model.FetchError{Series: series.ID, Source: m.Name(), Err: m.Err}
	}
	obs, ok := m.Data[series.ID]
	if !ok {
		return nil, &model.FetchError{Series: series.ID, Source: m.Name(), Err: fmt.Errorf("unknown series")}
	}
	return append([]model.Observation(nil), obs...), nil
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
