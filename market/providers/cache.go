package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"stockboard/market"
)

// CachingSource wraps a QuoteSource with a TTL'd LRU so repeated chart loads
// of the same symbol/interval within the TTL hit memory instead of the feed.
// Entries are whole payloads; the cache never hands out partially fetched
// data.
type CachingSource struct {
	inner QuoteSource
	cache *expirable.LRU[string, *market.SeriesPayload]
}

func NewCachingSource(inner QuoteSource, size int, ttl time.Duration) *CachingSource {
	if size <= 0 {
		size = 128
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingSource{
		inner: inner,
		cache: expirable.NewLRU[string, *market.SeriesPayload](size, nil, ttl),
	}
}

func (cs *CachingSource) Name() string {
	return cs.inner.Name() + "-cached"
}

func (cs *CachingSource) FetchSeries(ctx context.Context, symbol string, iv market.Interval) (*market.SeriesPayload, error) {
	key := fmt.Sprintf("%s|%s", symbol, iv.Native())
	if payload, ok := cs.cache.Get(key); ok {
		return payload, nil
	}
	payload, err := cs.inner.FetchSeries(ctx, symbol, iv)
	if err != nil {
		return nil, err
	}
	cs.cache.Add(key, payload)
	return payload, nil
}
