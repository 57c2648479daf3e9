package market

import (
	"fmt"
	"math"
	"time"
)

// AggregateOptions tunes the weekly/monthly merge heuristics.
type AggregateOptions struct {
	// OpenEpsilon decides whether an incoming bar is a genuinely separate
	// trading fragment of its bucket. When the bar's open differs from the
	// bucket's recorded open by more than this, volumes are summed; otherwise
	// the incoming volume replaces the bucket's (the feed re-sent an updated
	// same-bucket total). This is a best-effort proxy for a missing explicit
	// fragment-boundary signal from the feed.
	OpenEpsilon float64
}

// DefaultAggregateOptions returns the epsilon used in production.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{OpenEpsilon: 1e-4}
}

// Aggregate merges daily-or-finer bars into weekly or monthly buckets in the
// exchange's local calendar: first open, max high, min low, last close.
// Bucket keys are the ISO week start (Monday) or the calendar month start.
// The adjusted quadruple of each bucket is recomputed from the latest
// constituent's adjClose/close ratio.
//
// Input must be strictly ascending; a violation returns an error so the
// caller can fall back to the un-resampled sequence.
func Aggregate(bars []Bar, iv Interval, loc *time.Location, opts AggregateOptions) ([]Bar, error) {
	if iv != IntervalWeekly && iv != IntervalMonthly {
		return nil, fmt.Errorf("aggregate: unsupported interval %q", iv)
	}
	if loc == nil {
		loc = time.UTC
	}
	if opts.OpenEpsilon <= 0 {
		opts.OpenEpsilon = DefaultAggregateOptions().OpenEpsilon
	}

	var out []Bar
	var prevTS int64
	for i, b := range bars {
		if i > 0 && b.Timestamp <= prevTS {
			return nil, fmt.Errorf("aggregate: bars not strictly ascending at index %d", i)
		}
		prevTS = b.Timestamp

		start := bucketStart(time.Unix(b.Timestamp, 0).In(loc), iv)
		if len(out) == 0 || out[len(out)-1].Timestamp != start.Unix() {
			nb := b
			nb.Timestamp = start.Unix()
			nb.Date = start.Format("2006-01-02")
			nb.Label = nb.Date
			nb.Hour, nb.Minute = 0, 0
			out = append(out, nb)
			continue
		}

		bucket := &out[len(out)-1]
		bucket.High = math.Max(bucket.High, b.High)
		bucket.Low = math.Min(bucket.Low, b.Low)
		bucket.Close = b.Close
		if math.Abs(b.Open-bucket.Open) > opts.OpenEpsilon {
			bucket.Volume += b.Volume
		} else {
			bucket.Volume = b.Volume
		}

		ratio := 1.0
		if b.Close != 0 {
			ratio = b.CloseAdj / b.Close
		}
		bucket.OpenAdj = bucket.Open * ratio
		bucket.HighAdj = bucket.High * ratio
		bucket.LowAdj = bucket.Low * ratio
		bucket.CloseAdj = b.CloseAdj
	}
	return out, nil
}

// bucketStart truncates t to the start of its ISO week (Monday) or calendar
// month in t's location.
func bucketStart(t time.Time, iv Interval) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	if iv == IntervalMonthly {
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	}
	wd := int(day.Weekday())
	if wd == 0 { // Sunday belongs to the week that started the previous Monday
		wd = 7
	}
	return day.AddDate(0, 0, -(wd - 1))
}

// AggregateFlows rekeys per-date net flows to their weekly or monthly bucket
// start and sums the constituents, so a derived bar carries the whole
// bucket's net activity instead of a single day's. Intervals other than
// weekly/monthly pass through unchanged.
func AggregateFlows(flows map[string]NetFlow, iv Interval, loc *time.Location) map[string]NetFlow {
	if iv != IntervalWeekly && iv != IntervalMonthly {
		return flows
	}
	if loc == nil {
		loc = time.UTC
	}
	out := make(map[string]NetFlow, len(flows))
	for date, f := range flows {
		t, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			continue
		}
		key := bucketStart(t, iv).Format("2006-01-02")
		sum := out[key]
		sum.Institutional += f.Institutional
		sum.Retail += f.Retail
		out[key] = sum
	}
	return out
}

// ShiftIntraday re-buckets sub-daily bars so each one is labeled by its
// closing boundary instead of its opening one, for venues with a lunch break
// and a shortened final session.
//
// Hourly: morning-session bars shift forward one hour; a bar opening inside
// the final hour of the day lands on the canonical end-of-session timestamp.
// 15-minute: every bar shifts forward 15 minutes, anything landing at or past
// session close is clamped to it, and buckets whose shifted clock falls
// outside the trading window are dropped.
//
// When two raw bars shift onto the same target label the earlier one wins and
// the later is discarded, not merged. Intervals other than 60m/15m pass
// through unchanged.
func ShiftIntraday(bars []Bar, iv Interval, s Session) []Bar {
	if iv != Interval60Min && iv != Interval15Min {
		return bars
	}

	out := make([]Bar, 0, len(bars))
	taken := make(map[string]bool, len(bars))
	for _, b := range bars {
		hod := b.Hour*60 + b.Minute
		target := hod
		keep := true

		switch iv {
		case Interval60Min:
			if hod >= s.AfternoonClose-60 {
				target = s.AfternoonClose
			} else if hod < s.MorningClose {
				target = hod + 60
			}
		case Interval15Min:
			target = hod + 15
			if target >= s.AfternoonClose {
				target = s.AfternoonClose
			}
			morning := target > s.MorningOpen && target <= s.MorningClose
			afternoon := target > s.AfternoonOpen && target <= s.AfternoonClose
			keep = morning || afternoon
		}
		if !keep {
			continue
		}

		nb := b
		nb.Timestamp += int64(target-hod) * 60
		nb.Hour, nb.Minute = target/60, target%60
		nb.Label = fmt.Sprintf("%s %02d:%02d", nb.Label[:5], nb.Hour, nb.Minute)
		if taken[nb.Label] {
			continue
		}
		taken[nb.Label] = true
		out = append(out, nb)
	}
	return out
}

// ApplyDailyQuotes overwrites the final intraday bucket of each local date
// with the corrected daily close, widening high/low when the corrected close
// falls outside the bucket's range and rescaling the adjusted quadruple by
// the bucket's pre-correction ratio. Dates without a corrected quote are
// left untouched.
func ApplyDailyQuotes(bars []Bar, quotes map[string]DailyQuote) []Bar {
	if len(quotes) == 0 {
		return bars
	}

	lastOfDate := make(map[string]int, len(quotes))
	for i, b := range bars {
		lastOfDate[b.Date] = i
	}

	out := make([]Bar, len(bars))
	copy(out, bars)
	for date, idx := range lastOfDate {
		q, ok := quotes[date]
		if !ok || q.Close <= 0 {
			continue
		}
		b := &out[idx]
		ratio := 1.0
		if b.Close != 0 {
			ratio = b.CloseAdj / b.Close
		}
		b.Close = q.Close
		b.High = math.Max(b.High, q.Close)
		b.Low = math.Min(b.Low, q.Close)
		b.OpenAdj = b.Open * ratio
		b.HighAdj = b.High * ratio
		b.LowAdj = b.Low * ratio
		b.CloseAdj = b.Close * ratio
	}
	return out
}
