package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"MediaSentiment/internal/calculator"
	"MediaSentiment/internal/model"
)

// Binding pairs a series with the source that serves it.
type Binding struct {
	Series model.Series
	Source SeriesSource
}

// Collector fetches every bound series and converts it to a quarterly table.
type Collector struct {
	Bindings  []Binding
	Sentinels []string
}

// NewCollector creates a new Collector.
func NewCollector(bindings []Binding, sentinels []string) *Collector {
	return &Collector{Bindings: bindings, Sentinels: sentinels}
}

// Collect fetches all series concurrently. Each fetch writes only its own
// slot; the first failure cancels the others and aborts the collection.
// Tables come back in binding order.
func (c *Collector) Collect(ctx context.Context) ([]*model.SeriesTable, error) {
	tables := make([]*model.SeriesTable, len(c.Bindings))
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range c.Bindings {
		g.Go(func() error {
			start := time.Now()
			obs, err := b.Source.Fetch(ctx, b.Series)
			if err != nil {
				return fmt.Errorf("collect %s: %w", b.Series.ID, err)
			}
			table, err := calculator.BuildTable(b.Series, obs, c.Sentinels)
			if err != nil {
				return fmt.Errorf("normalize %s: %w", b.Series.ID, err)
			}
			tables[i] = table
			log.Info().
				Str("series", b.Series.ID).
				Str("source", b.Source.Name()).
				Int("observations", len(obs)).
				Int("quarters", len(table.Cells)).
				Dur("elapsed", time.Since(start)).
				Msg("series collected")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}
