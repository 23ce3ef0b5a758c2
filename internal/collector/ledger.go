package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"MediaSentiment/internal/calculator"
	"MediaSentiment/internal/ledger"
	"MediaSentiment/internal/model"
)

// LedgerSource extends a persisted close-price ledger with the upstream feed.
// Dates already in the ledger keep their stored value; new dates with a real
// value are appended to the file. The union is returned.
type LedgerSource struct {
	Upstream  SeriesSource
	Path      string
	Sentinels []string
}

func (s *LedgerSource) Name() string { return "ledger+" + s.Upstream.Name() }

func (s *LedgerSource) Fetch(ctx context.Context, series model.Series) ([]model.Observation, error) {
	l, err := ledger.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("load ledger for %s: %w", series.ID, err)
	}

	upstream, err := s.Upstream.Fetch(ctx, series)
	if err != nil {
		return nil, err
	}

	var fresh []ledger.Entry
	for _, o := range upstream {
		if l.Has(o.Date) || calculator.IsSentinel(o.Value, s.Sentinels) {
			continue
		}
		fresh = append(fresh, ledger.Entry{Date: o.Date, Value: o.Value})
	}
	n, err := l.Append(fresh)
	if err != nil {
		return nil, fmt.Errorf("update ledger for %s: %w", series.ID, err)
	}
	log.Info().Str("series", series.ID).Str("path", s.Path).Int("appended", n).Msg("ledger updated")

	entries := l.Entries()
	obs := make([]model.Observation, len(entries))
	for i, e := range entries {
		obs[i] = model.Observation{Date: e.Date, Value: e.Value}
	}
	return obs, nil
}
