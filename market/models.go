package market

// Interval identifies a bar granularity. Daily and sub-daily intervals are
// fetched natively from the upstream feed; weekly and monthly bars are derived
// from daily bars by the resampler.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	Interval60Min   Interval = "60m"
	Interval15Min   Interval = "15m"
)

// SubDaily reports whether the interval is finer than one trading day.
func (iv Interval) SubDaily() bool {
	return iv == Interval60Min || iv == Interval15Min
}

// Native returns the granularity to request from the upstream feed.
// Weekly and monthly series are built locally from daily bars.
func (iv Interval) Native() Interval {
	if iv == IntervalWeekly || iv == IntervalMonthly {
		return IntervalDaily
	}
	return iv
}

// Valid reports whether iv is one of the supported intervals.
func (iv Interval) Valid() bool {
	switch iv {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, Interval60Min, Interval15Min:
		return true
	}
	return false
}

// Bar is one OHLCV sample for a fixed time bucket. The adjusted quadruple is
// scaled for splits/dividends; when the feed provides no adjusted close it
// equals the raw quadruple. Hour, Minute and Date are the bucket's clock in
// the exchange's local calendar, kept for intraday re-bucketing and for
// joining date-keyed auxiliary feeds.
type Bar struct {
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
	Date      string `json:"date"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	OpenAdj  float64 `json:"open_adj"`
	HighAdj  float64 `json:"high_adj"`
	LowAdj   float64 `json:"low_adj"`
	CloseAdj float64 `json:"close_adj"`

	Volume int64 `json:"volume"`

	Timezone string `json:"-"`
	Hour     int    `json:"-"`
	Minute   int    `json:"-"`
}

// SeriesPayload is the normalized shape of one upstream chart response:
// parallel arrays indexed by bar, with nil cells where the feed returned null
// for an incomplete bucket. AdjClose is nil when the venue publishes no
// adjusted series.
type SeriesPayload struct {
	Symbol      string
	Timezone    string
	Interval    Interval
	LocalLabels bool

	Timestamps []int64
	Open       []*float64
	High       []*float64
	Low        []*float64
	Close      []*float64
	Volume     []*float64
	AdjClose   []*float64
}

// ParticipantClass labels one side of the institutional-flow feed.
type ParticipantClass string

const (
	ParticipantInstitutional ParticipantClass = "institutional"
	ParticipantRetail        ParticipantClass = "retail"
)

// FlowEntry is one row of the institutional-flow feed before reduction.
type FlowEntry struct {
	Date  string
	Class ParticipantClass
	Buy   float64
	Sell  float64
}

// NetFlow is the per-date net buy-minus-sell volume for both participant
// classes. A date absent from the feed means zero net activity, not missing
// data, so the zero value is meaningful.
type NetFlow struct {
	Institutional float64 `json:"institutional"`
	Retail        float64 `json:"retail"`
}

// ReduceFlows collapses raw flow rows into net-by-date values.
func ReduceFlows(entries []FlowEntry) map[string]NetFlow {
	flows := make(map[string]NetFlow, len(entries))
	for _, e := range entries {
		f := flows[e.Date]
		switch e.Class {
		case ParticipantInstitutional:
			f.Institutional += e.Buy - e.Sell
		case ParticipantRetail:
			f.Retail += e.Buy - e.Sell
		}
		flows[e.Date] = f
	}
	return flows
}

// DailyQuote is one row of the corrected daily close/volume feed, keyed by
// local calendar date.
type DailyQuote struct {
	Date   string
	Close  float64
	Volume int64
}

// Direction is the period-over-period slope of a moving average.
type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
	DirFlat Direction = "flat"
)

// IndicatorSet holds the indicator values attached to one bar for one price
// basis (raw or adjusted). Nil means the indicator is still inside its
// warm-up window; zero is a real value.
type IndicatorSet struct {
	MA5  *float64 `json:"ma5"`
	MA10 *float64 `json:"ma10"`
	MA20 *float64 `json:"ma20"`
	MA60 *float64 `json:"ma60"`

	MA5Dir  Direction `json:"ma5_dir"`
	MA10Dir Direction `json:"ma10_dir"`
	MA20Dir Direction `json:"ma20_dir"`
	MA60Dir Direction `json:"ma60_dir"`

	RSI *float64 `json:"rsi"`

	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`
	MACDHist   *float64 `json:"macd_hist"`

	K *float64 `json:"k"`
	D *float64 `json:"d"`
	J *float64 `json:"j"`
}

// EnrichedBar is a Bar with all derived fields attached. It is produced by
// Enrich as a fresh value and never mutated afterwards.
type EnrichedBar struct {
	Bar

	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`

	Flow NetFlow `json:"flow"`

	Raw      IndicatorSet `json:"raw"`
	Adjusted IndicatorSet `json:"adjusted"`
}

// EnrichedSeries is the final pipeline output consumed by rendering and
// summarization. Both the raw and adjusted indicator variants are present so
// consumers can switch basis without recomputation.
type EnrichedSeries struct {
	Symbol   string        `json:"symbol"`
	Interval Interval      `json:"interval"`
	Bars     []EnrichedBar `json:"bars"`
}

// Snapshot is the compact view handed to the summarization consumer.
type Snapshot struct {
	Latest   *EnrichedBar  `json:"latest"`
	Previous *EnrichedBar  `json:"previous"`
	Window   []EnrichedBar `json:"window"`
}

// Snapshot returns the latest bar, the bar before it, and a trailing window
// of at most n bars (10 when n <= 0). Latest is nil for an empty series.
func (s *EnrichedSeries) Snapshot(n int) Snapshot {
	var snap Snapshot
	if len(s.Bars) == 0 {
		return snap
	}
	snap.Latest = &s.Bars[len(s.Bars)-1]
	if len(s.Bars) > 1 {
		snap.Previous = &s.Bars[len(s.Bars)-2]
	}
	if n <= 0 {
		n = 10
	}
	start := len(s.Bars) - n
	if start < 0 {
		start = 0
	}
	snap.Window = s.Bars[start:]
	return snap
}

// Session is a venue's trading day expressed in minutes from local midnight.
type Session struct {
	MorningOpen    int
	MorningClose   int
	AfternoonOpen  int
	AfternoonClose int
}

// CNSession is the mainland A-share session: 09:30-11:30, 13:00-15:00.
func CNSession() Session {
	return Session{
		MorningOpen:    9*60 + 30,
		MorningClose:   11*60 + 30,
		AfternoonOpen:  13 * 60,
		AfternoonClose: 15 * 60,
	}
}
