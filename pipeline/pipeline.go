// Package pipeline wires the upstream feeds to the core transforms. One call
// to Load runs the whole chain for a symbol/interval pair: fetch, normalize,
// resample, enrich, persist.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockboard/market"
)

// SeriesFetcher resolves a user-entered symbol to one chart payload.
// providers.Manager is the production implementation.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, symbol string, iv market.Interval) (*market.SeriesPayload, error)
}

// FlowFetcher fetches raw institutional-flow rows.
type FlowFetcher interface {
	FetchFlows(ctx context.Context, symbol string, days int) ([]market.FlowEntry, error)
}

// DailyQuoteFetcher fetches corrected daily close/volume rows.
type DailyQuoteFetcher interface {
	FetchDailyQuotes(ctx context.Context, symbol string, days int) ([]market.DailyQuote, error)
}

// Store persists enriched series. Persistence is best effort: a store error
// never fails a Load.
type Store interface {
	SaveSeries(symbol string, iv market.Interval, bars []market.EnrichedBar) error
}

// auxDays bounds how far back the auxiliary feeds are queried. Flow and
// correction data older than the chart window is useless anyway.
const auxDays = 60

// Service owns one configured pipeline instance.
type Service struct {
	quotes  SeriesFetcher
	flows   FlowFetcher
	daily   DailyQuoteFetcher
	store   Store
	session market.Session
	aggOpts market.AggregateOptions

	log *zap.SugaredLogger
}

// Option mutates a Service during construction.
type Option func(*Service)

// WithFlows attaches an institutional-flow feed.
func WithFlows(f FlowFetcher) Option {
	return func(s *Service) { s.flows = f }
}

// WithDailyQuotes attaches a corrected daily close/volume feed.
func WithDailyQuotes(d DailyQuoteFetcher) Option {
	return func(s *Service) { s.daily = d }
}

// WithStore attaches a persistence sink.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

// WithSession overrides the trading session used for intraday re-bucketing.
func WithSession(sess market.Session) Option {
	return func(s *Service) { s.session = sess }
}

// WithAggregateOptions overrides the resampler options.
func WithAggregateOptions(opts market.AggregateOptions) Option {
	return func(s *Service) { s.aggOpts = opts }
}

func NewService(quotes SeriesFetcher, opts ...Option) *Service {
	s := &Service{
		quotes:  quotes,
		session: market.CNSession(),
		aggOpts: market.DefaultAggregateOptions(),
		log:     zap.S(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load runs the full chain for one symbol/interval pair. The chart feed is
// authoritative: if it fails, Load fails. Auxiliary feeds and resampling
// degrade instead, producing a series without flow data or without the
// derived bucketing, with a warning in the log.
func (s *Service) Load(ctx context.Context, symbol string, iv market.Interval) (*market.EnrichedSeries, error) {
	if !iv.Valid() {
		return nil, fmt.Errorf("unsupported interval %q", iv)
	}

	start := time.Now()

	payload, err := s.quotes.FetchSeries(ctx, symbol, iv.Native())
	if err != nil {
		return nil, err
	}

	// The auxiliary feeds need the venue-suffixed symbol the quote fetch
	// resolved, so they run after it, concurrently with each other.
	var (
		flows  []market.FlowEntry
		quotes []market.DailyQuote
		wg     sync.WaitGroup
	)

	if s.flows != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			flows, err = s.flows.FetchFlows(ctx, payload.Symbol, auxDays)
			if err != nil {
				s.log.Warnw("flow feed unavailable", "symbol", payload.Symbol, "err", err)
			}
		}()
	}

	if s.daily != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			quotes, err = s.daily.FetchDailyQuotes(ctx, payload.Symbol, auxDays)
			if err != nil {
				s.log.Warnw("daily quote feed unavailable", "symbol", payload.Symbol, "err", err)
			}
		}()
	}

	wg.Wait()

	bars, err := market.Normalize(*payload)
	if err != nil {
		return nil, err
	}

	quoteMap := make(map[string]market.DailyQuote, len(quotes))
	volumes := make(map[string]int64, len(quotes))
	for _, q := range quotes {
		quoteMap[q.Date] = q
		if q.Volume > 0 {
			volumes[q.Date] = q.Volume
		}
	}

	dayFlows := market.ReduceFlows(flows)

	switch {
	case iv.SubDaily():
		bars = market.ShiftIntraday(bars, iv, s.session)
		// The corrected close lands on the final bucket of each date. The
		// corrected volume is a whole-day figure, so the buckets keep their own.
		bars = market.ApplyDailyQuotes(bars, quoteMap)
		volumes = nil
	default:
		bars = market.ApplyDailyQuotes(bars, quoteMap)
		if iv == market.IntervalWeekly || iv == market.IntervalMonthly {
			// Corrected volumes must replace the daily figures before the
			// buckets are merged, or the bucket sum is lost.
			for i := range bars {
				if v, ok := volumes[bars[i].Date]; ok {
					bars[i].Volume = v
				}
			}
			volumes = nil
			loc := location(payload.Timezone)
			agg, aggErr := market.Aggregate(bars, iv, loc, s.aggOpts)
			if aggErr != nil {
				// Serve the daily bars rather than nothing.
				s.log.Warnw("resampling degraded", "symbol", symbol, "interval", iv, "err", aggErr)
			} else {
				bars = agg
				dayFlows = market.AggregateFlows(dayFlows, iv, loc)
			}
		}
	}

	enriched := market.Enrich(bars, dayFlows, volumes)
	series := &market.EnrichedSeries{
		Symbol:   payload.Symbol,
		Interval: iv,
		Bars:     enriched,
	}

	if s.store != nil {
		if err := s.store.SaveSeries(series.Symbol, iv, enriched); err != nil {
			s.log.Warnw("series save failed", "symbol", series.Symbol, "err", err)
		}
	}

	s.log.Infow("series loaded",
		"symbol", series.Symbol,
		"interval", iv,
		"bars", len(enriched),
		"elapsed", time.Since(start),
	)
	return series, nil
}

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
