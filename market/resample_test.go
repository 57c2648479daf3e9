package market

import (
	"testing"
	"time"
)

var shanghai, _ = time.LoadLocation("Asia/Shanghai")

func dailyBar(y int, m time.Month, d int, open, high, low, close float64, vol int64) Bar {
	t := time.Date(y, m, d, 0, 0, 0, 0, shanghai)
	return Bar{
		Timestamp: t.Unix(),
		Label:     t.Format("2006-01-02"),
		Date:      t.Format("2006-01-02"),
		Open:      open, High: high, Low: low, Close: close,
		OpenAdj: open, HighAdj: high, LowAdj: low, CloseAdj: close,
		Volume:   vol,
		Timezone: "Asia/Shanghai",
	}
}

func TestAggregateWeekly(t *testing.T) {
	// 2024-03-04 is a Monday.
	bars := []Bar{
		dailyBar(2024, 3, 4, 10, 11, 9.5, 10.5, 100),
		dailyBar(2024, 3, 5, 10.6, 12, 10.4, 11.8, 120),
		dailyBar(2024, 3, 6, 11.9, 12.5, 11.0, 11.2, 90),
		dailyBar(2024, 3, 11, 11.3, 11.6, 11.1, 11.5, 80), // next week
	}
	out, err := Aggregate(bars, IntervalWeekly, shanghai, DefaultAggregateOptions())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d buckets, want 2", len(out))
	}

	w := out[0]
	if w.Label != "2024-03-04" {
		t.Errorf("week bucket label = %q, want Monday 2024-03-04", w.Label)
	}
	if w.Open != 10 {
		t.Errorf("open = %f, want first constituent's open 10", w.Open)
	}
	if w.High != 12.5 || w.Low != 9.5 {
		t.Errorf("high/low = %f/%f, want 12.5/9.5", w.High, w.Low)
	}
	if w.Close != 11.2 {
		t.Errorf("close = %f, want last constituent's close 11.2", w.Close)
	}
	for _, b := range bars[:3] {
		if w.High < b.High || w.Low > b.Low {
			t.Errorf("bucket range [%f,%f] does not cover constituent [%f,%f]", w.Low, w.High, b.Low, b.High)
		}
	}
	// distinct opens: fragments, volumes summed
	if w.Volume != 310 {
		t.Errorf("volume = %d, want 310", w.Volume)
	}
}

func TestAggregateMonthly(t *testing.T) {
	bars := []Bar{
		dailyBar(2024, 2, 28, 9, 9.5, 8.8, 9.2, 50),
		dailyBar(2024, 2, 29, 9.3, 9.8, 9.1, 9.6, 60),
		dailyBar(2024, 3, 1, 9.7, 10.1, 9.5, 10.0, 70),
	}
	out, err := Aggregate(bars, IntervalMonthly, shanghai, DefaultAggregateOptions())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d buckets, want 2", len(out))
	}
	if out[0].Label != "2024-02-01" || out[1].Label != "2024-03-01" {
		t.Errorf("bucket labels = %q, %q", out[0].Label, out[1].Label)
	}
}

func TestAggregateVolumeReplaceOnResend(t *testing.T) {
	// Same open within epsilon: the feed re-sent an updated total, volume
	// must replace instead of summing.
	b1 := dailyBar(2024, 3, 4, 10, 11, 9.5, 10.5, 100)
	b2 := dailyBar(2024, 3, 5, 10, 11.2, 9.5, 10.8, 150)
	out, err := Aggregate([]Bar{b1, b2}, IntervalWeekly, shanghai, DefaultAggregateOptions())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if out[0].Volume != 150 {
		t.Errorf("volume = %d, want replaced value 150", out[0].Volume)
	}
}

func TestAggregateEpsilonConfigurable(t *testing.T) {
	b1 := dailyBar(2024, 3, 4, 10.00, 11, 9.5, 10.5, 100)
	b2 := dailyBar(2024, 3, 5, 10.05, 11, 9.5, 10.6, 150)

	sum, _ := Aggregate([]Bar{b1, b2}, IntervalWeekly, shanghai, AggregateOptions{OpenEpsilon: 1e-4})
	if sum[0].Volume != 250 {
		t.Errorf("tight epsilon: volume = %d, want 250", sum[0].Volume)
	}
	repl, _ := Aggregate([]Bar{b1, b2}, IntervalWeekly, shanghai, AggregateOptions{OpenEpsilon: 0.1})
	if repl[0].Volume != 150 {
		t.Errorf("loose epsilon: volume = %d, want 150", repl[0].Volume)
	}
}

func TestAggregateAdjustedRecomputed(t *testing.T) {
	b1 := dailyBar(2024, 3, 4, 10, 11, 9.5, 10.5, 100)
	b2 := dailyBar(2024, 3, 5, 10.6, 12, 10.4, 11.8, 120)
	// last constituent carries a 0.5 adjustment ratio
	b2.CloseAdj = b2.Close * 0.5
	b2.OpenAdj, b2.HighAdj, b2.LowAdj = b2.Open*0.5, b2.High*0.5, b2.Low*0.5

	out, err := Aggregate([]Bar{b1, b2}, IntervalWeekly, shanghai, DefaultAggregateOptions())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	w := out[0]
	if !almostEqual(w.CloseAdj, b2.CloseAdj) {
		t.Errorf("CloseAdj = %f, want %f", w.CloseAdj, b2.CloseAdj)
	}
	if !almostEqual(w.HighAdj, w.High*0.5) || !almostEqual(w.OpenAdj, w.Open*0.5) {
		t.Errorf("adjusted quadruple not rescaled from latest ratio: %+v", w)
	}
}

func TestAggregateRoundTrip(t *testing.T) {
	// One bar per week: aggregation is a no-op on OHLCV.
	bars := []Bar{
		dailyBar(2024, 3, 4, 10, 11, 9.5, 10.5, 100),
		dailyBar(2024, 3, 11, 11, 12, 10.5, 11.5, 120),
	}
	out, err := Aggregate(bars, IntervalWeekly, shanghai, DefaultAggregateOptions())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d buckets, want 2", len(out))
	}
	for i := range out {
		if out[i].Open != bars[i].Open || out[i].High != bars[i].High ||
			out[i].Low != bars[i].Low || out[i].Close != bars[i].Close ||
			out[i].Volume != bars[i].Volume {
			t.Errorf("bucket %d differs from its single constituent", i)
		}
	}
}

func TestAggregateRejectsUnsortedInput(t *testing.T) {
	bars := []Bar{
		dailyBar(2024, 3, 5, 10, 11, 9.5, 10.5, 100),
		dailyBar(2024, 3, 4, 10, 11, 9.5, 10.5, 100),
	}
	if _, err := Aggregate(bars, IntervalWeekly, shanghai, DefaultAggregateOptions()); err == nil {
		t.Error("expected error for non-ascending input")
	}
}

func TestAggregateFlowsWeekly(t *testing.T) {
	flows := map[string]NetFlow{
		"2024-03-04": {Institutional: 100, Retail: -40}, // Monday
		"2024-03-06": {Institutional: 50, Retail: 10},   // same ISO week
		"2024-03-11": {Institutional: 7},                // next Monday
		"bogus":      {Institutional: 999},
	}

	weekly := AggregateFlows(flows, IntervalWeekly, shanghai)
	if len(weekly) != 2 {
		t.Fatalf("got %d buckets, want 2", len(weekly))
	}
	if got := weekly["2024-03-04"]; got.Institutional != 150 || got.Retail != -30 {
		t.Errorf("week of 03-04 = %+v, want the constituents summed", got)
	}
	if got := weekly["2024-03-11"]; got.Institutional != 7 {
		t.Errorf("week of 03-11 = %+v, want 7 institutional", got)
	}
}

func TestAggregateFlowsMonthly(t *testing.T) {
	flows := map[string]NetFlow{
		"2024-03-04": {Institutional: 100},
		"2024-03-28": {Institutional: 25, Retail: 5},
		"2024-04-01": {Retail: 3},
	}

	monthly := AggregateFlows(flows, IntervalMonthly, shanghai)
	if got := monthly["2024-03-01"]; got.Institutional != 125 || got.Retail != 5 {
		t.Errorf("march = %+v, want 125/5", got)
	}
	if got := monthly["2024-04-01"]; got.Retail != 3 {
		t.Errorf("april = %+v, want retail 3", got)
	}
}

func TestAggregateFlowsPassThrough(t *testing.T) {
	flows := map[string]NetFlow{"2024-03-04": {Institutional: 100}}
	for _, iv := range []Interval{IntervalDaily, Interval60Min, Interval15Min} {
		if got := AggregateFlows(flows, iv, shanghai); len(got) != 1 || got["2024-03-04"].Institutional != 100 {
			t.Errorf("%s: flows rekeyed, want pass-through", iv)
		}
	}
}

func intradayBar(hour, minute int, close float64) Bar {
	t := time.Date(2024, 3, 4, hour, minute, 0, 0, shanghai)
	return Bar{
		Timestamp: t.Unix(),
		Label:     t.Format("01-02 15:04"),
		Date:      t.Format("2006-01-02"),
		Open:      close - 0.1, High: close + 0.2, Low: close - 0.2, Close: close,
		OpenAdj: close - 0.1, HighAdj: close + 0.2, LowAdj: close - 0.2, CloseAdj: close,
		Volume:   100,
		Timezone: "Asia/Shanghai",
		Hour:     hour,
		Minute:   minute,
	}
}

func TestShiftHourly(t *testing.T) {
	bars := []Bar{
		intradayBar(9, 30, 10),
		intradayBar(10, 30, 10.2),
		intradayBar(13, 0, 10.4),
		intradayBar(14, 0, 10.6),
	}
	out := ShiftIntraday(bars, Interval60Min, CNSession())
	if len(out) != 4 {
		t.Fatalf("got %d bars, want 4", len(out))
	}
	wantLabels := []string{"03-04 10:30", "03-04 11:30", "03-04 13:00", "03-04 15:00"}
	for i, w := range wantLabels {
		if out[i].Label != w {
			t.Errorf("bar %d label = %q, want %q", i, out[i].Label, w)
		}
	}
}

func TestShiftHourlyFirstBarWins(t *testing.T) {
	// Both shift to the 15:00 canonical end-of-session bucket.
	bars := []Bar{
		intradayBar(14, 0, 10.6),
		intradayBar(14, 30, 10.8),
	}
	out := ShiftIntraday(bars, Interval60Min, CNSession())
	if len(out) != 1 {
		t.Fatalf("got %d bars, want 1 after dedup", len(out))
	}
	if out[0].Close != 10.6 {
		t.Errorf("close = %f, want earlier bar's 10.6", out[0].Close)
	}
}

func TestShift15Min(t *testing.T) {
	bars := []Bar{
		intradayBar(9, 30, 10),   // -> 09:45
		intradayBar(11, 15, 10.2), // -> 11:30
		intradayBar(14, 45, 10.4), // -> 15:00
		intradayBar(15, 0, 10.6),  // -> clamped 15:00, dedup drops it
	}
	out := ShiftIntraday(bars, Interval15Min, CNSession())
	if len(out) != 3 {
		t.Fatalf("got %d bars, want 3", len(out))
	}
	wantLabels := []string{"03-04 09:45", "03-04 11:30", "03-04 15:00"}
	for i, w := range wantLabels {
		if out[i].Label != w {
			t.Errorf("bar %d label = %q, want %q", i, out[i].Label, w)
		}
	}
	if out[2].Close != 10.4 {
		t.Errorf("final bucket close = %f, want first-winner 10.4", out[2].Close)
	}
}

func TestShift15MinDropsOutOfSession(t *testing.T) {
	bars := []Bar{
		intradayBar(11, 45, 10), // -> 12:00, lunch break
		intradayBar(8, 30, 10),  // -> 08:45, pre-open
	}
	out := ShiftIntraday(bars, Interval15Min, CNSession())
	if len(out) != 0 {
		t.Fatalf("got %d bars, want 0 (all outside trading window)", len(out))
	}
}

func TestShiftPassThroughForDaily(t *testing.T) {
	bars := []Bar{dailyBar(2024, 3, 4, 10, 11, 9.5, 10.5, 100)}
	out := ShiftIntraday(bars, IntervalDaily, CNSession())
	if len(out) != 1 || out[0].Label != bars[0].Label {
		t.Error("daily bars must pass through unchanged")
	}
}

func TestApplyDailyQuotes(t *testing.T) {
	bars := []Bar{
		intradayBar(10, 30, 10.2),
		intradayBar(15, 0, 10.6),
	}
	quotes := map[string]DailyQuote{
		"2024-03-04": {Date: "2024-03-04", Close: 11.5, Volume: 9999},
	}
	out := ApplyDailyQuotes(bars, quotes)

	last := out[1]
	if last.Close != 11.5 {
		t.Errorf("corrected close = %f, want 11.5", last.Close)
	}
	if last.High != 11.5 {
		t.Errorf("high should widen to corrected close, got %f", last.High)
	}
	if !almostEqual(last.CloseAdj, 11.5) {
		t.Errorf("adjusted close not recomputed, got %f", last.CloseAdj)
	}
	// earlier bucket untouched
	if out[0].Close != 10.2 {
		t.Errorf("non-final bucket mutated: close %f", out[0].Close)
	}
	// input slice untouched
	if bars[1].Close != 10.6 {
		t.Errorf("input mutated in place: close %f", bars[1].Close)
	}
}

func TestApplyDailyQuotesMissingDate(t *testing.T) {
	bars := []Bar{intradayBar(15, 0, 10.6)}
	out := ApplyDailyQuotes(bars, map[string]DailyQuote{})
	if out[0].Close != 10.6 {
		t.Error("missing quote must leave the bucket uncorrected")
	}
}
