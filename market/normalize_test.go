package market

import (
	"errors"
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }

func payloadFromBars(tss []int64, closes []float64) SeriesPayload {
	p := SeriesPayload{
		Symbol:      "600000.SS",
		Timezone:    "Asia/Shanghai",
		Interval:    IntervalDaily,
		LocalLabels: true,
		Timestamps:  tss,
	}
	for _, c := range closes {
		p.Open = append(p.Open, fp(c-0.1))
		p.High = append(p.High, fp(c+0.2))
		p.Low = append(p.Low, fp(c-0.2))
		p.Close = append(p.Close, fp(c))
		p.Volume = append(p.Volume, fp(1000))
	}
	return p
}

func TestNormalizeDropsNullRows(t *testing.T) {
	p := payloadFromBars([]int64{1700000000, 1700086400, 1700172800}, []float64{10, 11, 12})
	p.Close[1] = nil

	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (null row dropped)", len(bars))
	}
	if bars[0].Close != 10 || bars[1].Close != 12 {
		t.Errorf("unexpected closes %f, %f", bars[0].Close, bars[1].Close)
	}
}

func TestNormalizeAdjustedRatio(t *testing.T) {
	p := payloadFromBars([]int64{1700000000}, []float64{10})
	p.AdjClose = []*float64{fp(5)}

	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	b := bars[0]
	if !almostEqual(b.CloseAdj, 5) {
		t.Errorf("CloseAdj = %f, want 5", b.CloseAdj)
	}
	// ratio 0.5 applied uniformly
	if !almostEqual(b.OpenAdj, b.Open*0.5) || !almostEqual(b.HighAdj, b.High*0.5) || !almostEqual(b.LowAdj, b.Low*0.5) {
		t.Errorf("adjusted quadruple not scaled by ratio: %+v", b)
	}
	if b.LowAdj > b.OpenAdj || b.OpenAdj > b.HighAdj || b.LowAdj > b.CloseAdj || b.CloseAdj > b.HighAdj {
		t.Errorf("adjusted OHLC invariant violated: %+v", b)
	}
}

func TestNormalizeNoAdjustedFallsBackToRaw(t *testing.T) {
	p := payloadFromBars([]int64{1700000000}, []float64{10})
	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	b := bars[0]
	if b.OpenAdj != b.Open || b.HighAdj != b.High || b.LowAdj != b.Low || b.CloseAdj != b.Close {
		t.Errorf("adjusted fields should equal raw when no adjusted close: %+v", b)
	}
}

func TestNormalizeZeroCloseRatio(t *testing.T) {
	p := payloadFromBars([]int64{1700000000}, []float64{0})
	p.AdjClose = []*float64{fp(3)}
	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	// raw close 0: ratio defaults to 1, adjusted close taken as-is
	if bars[0].OpenAdj != bars[0].Open {
		t.Errorf("zero raw close should keep ratio 1, got OpenAdj=%f Open=%f", bars[0].OpenAdj, bars[0].Open)
	}
}

func TestNormalizeEmptyPayload(t *testing.T) {
	_, err := Normalize(SeriesPayload{Symbol: "600000.SS"})
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("empty payload should fail with ErrDataUnavailable, got %v", err)
	}
}

func TestNormalizeAllNullRows(t *testing.T) {
	p := payloadFromBars([]int64{1700000000}, []float64{10})
	p.Open[0] = nil
	_, err := Normalize(p)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("all-null payload should fail with ErrDataUnavailable, got %v", err)
	}
}

func TestNormalizeDeduplicatesAndOrders(t *testing.T) {
	p := payloadFromBars([]int64{1700172800, 1700000000, 1700172800}, []float64{12, 10, 13})
	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 after dedup", len(bars))
	}
	if bars[0].Timestamp >= bars[1].Timestamp {
		t.Error("bars not strictly ascending")
	}
	// first occurrence wins
	if bars[1].Close != 12 {
		t.Errorf("duplicate timestamp should keep first row, got close %f", bars[1].Close)
	}
}

func TestNormalizeLabels(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	ts := time.Date(2024, 3, 4, 10, 30, 0, 0, loc).Unix()

	daily := payloadFromBars([]int64{ts}, []float64{10})
	bars, _ := Normalize(daily)
	if bars[0].Label != "2024-03-04" {
		t.Errorf("daily label = %q, want 2024-03-04", bars[0].Label)
	}

	hourly := payloadFromBars([]int64{ts}, []float64{10})
	hourly.Interval = Interval60Min
	bars, _ = Normalize(hourly)
	if bars[0].Label != "03-04 10:30" {
		t.Errorf("hourly label = %q, want 03-04 10:30", bars[0].Label)
	}
	if bars[0].Hour != 10 || bars[0].Minute != 30 {
		t.Errorf("local clock = %02d:%02d, want 10:30", bars[0].Hour, bars[0].Minute)
	}
	if bars[0].Date != "2024-03-04" {
		t.Errorf("date = %q, want 2024-03-04", bars[0].Date)
	}
}

func TestNormalizeExchangeClockWithoutLocalLabels(t *testing.T) {
	// 00:30 UTC on Jan 6 is still the evening of Jan 5 in New York.
	ts := time.Date(2026, 1, 6, 0, 30, 0, 0, time.UTC).Unix()
	p := payloadFromBars([]int64{ts}, []float64{10})
	p.Timezone = "America/New_York"
	p.LocalLabels = false

	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if bars[0].Date != "2026-01-05" {
		t.Errorf("date = %q, want the exchange-local 2026-01-05", bars[0].Date)
	}
	if bars[0].Hour != 19 || bars[0].Minute != 30 {
		t.Errorf("local clock = %02d:%02d, want 19:30", bars[0].Hour, bars[0].Minute)
	}
	if bars[0].Label != "2026-01-06" {
		t.Errorf("label = %q, want the UTC 2026-01-06", bars[0].Label)
	}
}
