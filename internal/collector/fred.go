package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"MediaSentiment/internal/model"
)

// DefaultFREDBaseURL is the public FRED API root.
const DefaultFREDBaseURL = "https://api.stlouisfed.org/fred"

// FREDSource implements SeriesSource using the FRED observations API.
type FREDSource struct {
	BaseURL     string
	APIKey      string
	Aggregation string
	Client      *http.Client
	Limiter     *rate.Limiter
}

// NewFREDSource creates a FRED client throttled to perMinute requests.
func NewFREDSource(baseURL, apiKey, proxyURL string, perMinute int) *FREDSource {
	if baseURL == "" {
		baseURL = DefaultFREDBaseURL
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &FREDSource{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Aggregation: "avg",
		Client:      newHTTPClient(proxyURL, 30*time.Second),
		Limiter:     rate.NewLimiter(limit, 1),
	}
}

func (f *FREDSource) Name() string { return "fred" }

// fredResponse is the JSON shape of /series/observations.
type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (f *FREDSource) Fetch(ctx context.Context, series model.Series) ([]model.Observation, error) {
	fail := func(err error) error {
		return &model.FetchError{Series: series.ID, Source: f.Name(), Err: err}
	}

	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, fail(fmt.Errorf("rate limiter: %w", err))
	}

	q := url.Values{}
	q.Set("series_id", series.ID)
	q.Set("api_key", f.APIKey)
	q.Set("file_type", "json")
	if series.Frequency != "" {
		q.Set("frequency", string(series.Frequency))
		q.Set("aggregation_method", f.Aggregation)
	}
	endpoint := f.BaseURL + "/series/observations?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fail(err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(fmt.Errorf("read body: %w", err))
	}

	var result fredResponse
	decodeErr := json.Unmarshal(body, &result)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && result.ErrorMessage != "" {
			return nil, fail(fmt.Errorf("status %d: %s", resp.StatusCode, result.ErrorMessage))
		}
		return nil, fail(fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body)))
	}
	if decodeErr != nil {
		return nil, fail(fmt.Errorf("decode: %w", decodeErr))
	}

	obs := make([]model.Observation, 0, len(result.Observations))
	for _, o := range result.Observations {
		d, err := time.Parse("2006-01-02", o.Date)
		if err != nil {
			return nil, &model.MalformedObservationError{Series: series.ID, Reason: fmt.Sprintf("bad date %q", o.Date)}
		}
		obs = append(obs, model.Observation{Date: d, Value: o.Value})
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
	return obs, nil
}
