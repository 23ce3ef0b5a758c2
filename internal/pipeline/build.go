package pipeline

import (
	"MediaSentiment/internal/collector"
	"MediaSentiment/internal/config"
	"MediaSentiment/internal/forecast"
	"MediaSentiment/internal/model"
)

// Bindings maps every configured series to its source: the sentiment
// workbook, the ledger-backed stock close and the FRED macro series.
// The stock ledger is extended from FRED or, when configured, Yahoo.
func Bindings(cfg *config.Config) []collector.Binding {
	fred := collector.NewFREDSource(cfg.FRED.BaseURL, cfg.FRED.APIKey, cfg.Proxy, cfg.FRED.RequestsPerMinute)
	workbook := collector.NewWorkbookSource(
		cfg.Sentiment.URL,
		cfg.DataPath(cfg.Sentiment.File),
		cfg.Sentiment.Sheet,
		cfg.Sentiment.DateColumn,
		cfg.Sentiment.ValueColumn,
		cfg.Proxy,
	)
	var upstream collector.SeriesSource = fred
	if cfg.Stock.Source == "yahoo" {
		upstream = collector.NewYahooSource(cfg.Proxy)
	}
	stock := &collector.LedgerSource{
		Upstream:  upstream,
		Path:      cfg.DataPath(cfg.Stock.LedgerFile),
		Sentinels: cfg.Sentinels,
	}

	bindings := []collector.Binding{
		{Series: model.Series{ID: "sentiment", Column: cfg.Sentiment.Column, Frequency: model.Daily}, Source: workbook},
		{Series: model.Series{ID: cfg.Stock.SeriesID, Column: cfg.Stock.Column, Frequency: model.Daily}, Source: stock},
	}
	for _, m := range cfg.Macro {
		bindings = append(bindings, collector.Binding{Series: m.Series(), Source: fred})
	}
	return bindings
}

// New builds a pipeline from configuration. Side channels are left unset.
func New(cfg *config.Config, bindings []collector.Binding, f forecast.Forecaster) *Pipeline {
	return &Pipeline{
		Collector: collector.NewCollector(bindings, cfg.Sentinels),
		Runner: &forecast.Runner{
			Forecaster: f,
			Endog:      cfg.Model.Endog,
			Exog:       cfg.Model.Exog,
			Order:      cfg.Model.Order,
		},
		Sentinels: cfg.Sentinels,
		Transforms: Transforms{
			ZScore:    cfg.Transform.ZScore,
			PctChange: cfg.Transform.PctChange,
			Lag:       cfg.Transform.Lag,
		},
		TrainFrom:  cfg.Model.TrainFrom,
		TrainTo:    cfg.Model.TrainTo,
		OutputPath: cfg.DataPath(cfg.Output.File),
		Exclude:    cfg.Output.Exclude,
		MetricsJob: cfg.Metrics.Job,
	}
}
