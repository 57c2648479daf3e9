package market

import (
	"fmt"
	"sort"
	"time"
)

// Normalize converts one upstream payload into an ascending, deduplicated Bar
// sequence. Rows with a null open, high, low or close are incomplete buckets
// and are dropped. When an adjusted close is present the raw open/high/low are
// scaled by the per-bar ratio adjClose/rawClose (ratio 1 when the raw close is
// zero); otherwise the adjusted quadruple equals the raw one.
//
// A payload with zero usable rows or mismatched array lengths fails with
// ErrDataUnavailable. Retrying alternate symbols is the fetch layer's job.
func Normalize(p SeriesPayload) ([]Bar, error) {
	n := len(p.Timestamps)
	if n == 0 {
		return nil, fmt.Errorf("%w: %s returned no rows", ErrDataUnavailable, p.Symbol)
	}
	if len(p.Open) != n || len(p.High) != n || len(p.Low) != n || len(p.Close) != n || len(p.Volume) != n {
		return nil, fmt.Errorf("%w: %s quote arrays length mismatch", ErrDataUnavailable, p.Symbol)
	}
	if p.AdjClose != nil && len(p.AdjClose) != n {
		return nil, fmt.Errorf("%w: %s adjusted close length mismatch", ErrDataUnavailable, p.Symbol)
	}

	// Date, Hour and Minute always follow the exchange clock when the venue's
	// timezone is known. LocalLabels only decides whether the display label is
	// rendered on that clock too, or on UTC.
	loc := time.UTC
	if p.Timezone != "" {
		if l, err := time.LoadLocation(p.Timezone); err == nil {
			loc = l
		}
	}

	bars := make([]Bar, 0, n)
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		if p.Open[i] == nil || p.High[i] == nil || p.Low[i] == nil || p.Close[i] == nil {
			continue
		}
		ts := p.Timestamps[i]
		if seen[ts] {
			continue
		}
		seen[ts] = true

		o, h, l, c := *p.Open[i], *p.High[i], *p.Low[i], *p.Close[i]
		var v int64
		if p.Volume[i] != nil {
			v = int64(*p.Volume[i])
		}

		ratio := 1.0
		closeAdj := c
		if p.AdjClose != nil && p.AdjClose[i] != nil {
			closeAdj = *p.AdjClose[i]
			if c != 0 {
				ratio = closeAdj / c
			}
		}

		t := time.Unix(ts, 0).In(loc)
		bar := Bar{
			Timestamp: ts,
			Date:      t.Format("2006-01-02"),
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			OpenAdj:   o * ratio,
			HighAdj:   h * ratio,
			LowAdj:    l * ratio,
			CloseAdj:  closeAdj,
			Volume:    v,
			Timezone:  p.Timezone,
			Hour:      t.Hour(),
			Minute:    t.Minute(),
		}
		labelTime := t
		if !p.LocalLabels {
			labelTime = time.Unix(ts, 0).UTC()
		}
		bar.Label = BucketLabel(labelTime, p.Interval)
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s has no complete bars", ErrDataUnavailable, p.Symbol)
	}

	// Upstream rows arrive time-ordered; an out-of-order feed still ends up
	// strictly ascending here.
	sort.Slice(bars, func(a, b int) bool { return bars[a].Timestamp < bars[b].Timestamp })
	return bars, nil
}

// BucketLabel formats a bucket's display string: "MM-DD HH:MM" for sub-daily
// intervals, "YYYY-MM-DD" otherwise.
func BucketLabel(t time.Time, iv Interval) string {
	if iv.SubDaily() {
		return t.Format("01-02 15:04")
	}
	return t.Format("2006-01-02")
}
