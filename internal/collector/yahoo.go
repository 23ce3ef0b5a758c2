package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"MediaSentiment/internal/model"
)

// DefaultYahooBaseURL is the Yahoo Finance chart API root.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooSource implements SeriesSource with daily closes from Yahoo Finance.
// It serves as an alternative upstream for the close-price ledger.
type YahooSource struct {
	BaseURL   string
	Range     string
	Client    *http.Client
	SymbolMap map[string]string // maps series id to Yahoo ticker
}

// NewYahooSource creates a new Yahoo Finance source.
func NewYahooSource(proxyURL string) *YahooSource {
	return &YahooSource{
		BaseURL: DefaultYahooBaseURL,
		Range:   "5y",
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		SymbolMap: map[string]string{
			"DJIA":  "^DJI",
			"SP500": "^GSPC",
		},
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

func (f *YahooSource) yahooSymbol(id string) string {
	if mapped, ok := f.SymbolMap[id]; ok {
		return mapped
	}
	return id
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooSource) Fetch(ctx context.Context, series model.Series) ([]model.Observation, error) {
	fail := func(err error) error {
		return &model.FetchError{Series: series.ID, Source: f.Name(), Err: err}
	}

	u := fmt.Sprintf("%s/%s?interval=1d&range=%s", f.BaseURL, url.PathEscape(f.yahooSymbol(series.ID)), f.Range)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fail(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fail(fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body)))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fail(fmt.Errorf("decode: %w", err))
	}
	if chart.Chart.Error != nil {
		return nil, fail(fmt.Errorf("api error: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fail(fmt.Errorf("no data returned"))
	}

	result := chart.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	obs := make([]model.Observation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		value := model.DefaultSentinel // null bar (holiday or halted session)
		if i < len(closes) && closes[i] != nil {
			value = strconv.FormatFloat(*closes[i], 'f', 2, 64)
		}
		t := time.Unix(ts, 0).UTC()
		obs = append(obs, model.Observation{
			Date:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Value: value,
		})
	}

	sort.Slice(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
	return obs, nil
}
