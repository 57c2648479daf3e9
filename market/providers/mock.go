package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"stockboard/market"
)

// MockProvider generates deterministic series for offline development and
// tests, seeded by symbol so repeated fetches agree. It implements all three
// source interfaces.
type MockProvider struct {
	bars int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{bars: 250}
}

func (mp *MockProvider) Name() string {
	return "mock"
}

func (mp *MockProvider) FetchSeries(ctx context.Context, symbol string, iv market.Interval) (*market.SeriesPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(symbolSeed(symbol)))
	base := 10 + rnd.Float64()*90

	n := mp.bars
	step := int64(24 * 3600)
	if iv.Native().SubDaily() {
		n = 60
		step = 3600
		if iv == market.Interval15Min {
			step = 900
		}
	}

	payload := &market.SeriesPayload{
		Symbol:      symbol,
		Timezone:    "Asia/Shanghai",
		Interval:    iv.Native(),
		LocalLabels: true,
	}
	start := time.Now().Unix() - int64(n)*step
	price := base
	for i := 0; i < n; i++ {
		price *= 1 + (rnd.Float64()-0.5)*0.04
		o := price * (1 + (rnd.Float64()-0.5)*0.01)
		c := price
		h := math.Max(o, c) * (1 + rnd.Float64()*0.01)
		l := math.Min(o, c) * (1 - rnd.Float64()*0.01)
		v := 1e5 + rnd.Float64()*1e6
		adj := c * 0.97

		payload.Timestamps = append(payload.Timestamps, start+int64(i)*step)
		payload.Open = append(payload.Open, &o)
		payload.High = append(payload.High, &h)
		payload.Low = append(payload.Low, &l)
		payload.Close = append(payload.Close, &c)
		payload.Volume = append(payload.Volume, &v)
		payload.AdjClose = append(payload.AdjClose, &adj)
	}
	return payload, nil
}

func (mp *MockProvider) FetchFlows(ctx context.Context, symbol string, days int) ([]market.FlowEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(symbolSeed(symbol) + 1))
	var entries []market.FlowEntry
	for i := days; i > 0; i-- {
		date := time.Now().AddDate(0, 0, -i).Format("2006-01-02")
		entries = append(entries,
			market.FlowEntry{Date: date, Class: market.ParticipantInstitutional, Buy: rnd.Float64() * 1e6, Sell: rnd.Float64() * 1e6},
			market.FlowEntry{Date: date, Class: market.ParticipantRetail, Buy: rnd.Float64() * 1e5, Sell: rnd.Float64() * 1e5},
		)
	}
	return entries, nil
}

func (mp *MockProvider) FetchDailyQuotes(ctx context.Context, symbol string, days int) ([]market.DailyQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(symbolSeed(symbol) + 2))
	var quotes []market.DailyQuote
	for i := days; i > 0; i-- {
		quotes = append(quotes, market.DailyQuote{
			Date:   time.Now().AddDate(0, 0, -i).Format("2006-01-02"),
			Close:  10 + rnd.Float64()*90,
			Volume: int64(1e5 + rnd.Float64()*1e6),
		})
	}
	return quotes, nil
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	fmt.Fprint(h, symbol)
	return int64(h.Sum64() & math.MaxInt32)
}
