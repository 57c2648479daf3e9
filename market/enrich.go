package market

// Moving-average periods attached to every enriched bar.
var maPeriods = [...]int{5, 10, 20, 60}

// Standard indicator parameters.
const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	kdjPeriod  = 9
)

// Enrich runs the numeric kernel over both the raw and adjusted price series
// and attaches all derived fields: day-over-day change, per-MA direction
// flags, institutional net flow and the optional per-date volume override.
// The input bars are not mutated; the result is a fresh sequence.
//
// Flow lookups that miss attach an exact zero, unlike indicator warm-up
// positions which stay nil: no recorded flow for a date means no net
// activity, not missing data.
func Enrich(bars []Bar, flows map[string]NetFlow, volumes map[string]int64) []EnrichedBar {
	out := make([]EnrichedBar, len(bars))
	if len(bars) == 0 {
		return out
	}

	for i, b := range bars {
		out[i].Bar = b
		if v, ok := volumes[b.Date]; ok && v > 0 {
			out[i].Volume = v
		}
		out[i].Flow = flows[b.Date]
		if i > 0 {
			prev := bars[i-1].Close
			out[i].Change = b.Close - prev
			if prev != 0 {
				out[i].ChangePct = out[i].Change / prev * 100
			}
		}
	}

	rawClose := make([]float64, len(bars))
	rawHigh := make([]float64, len(bars))
	rawLow := make([]float64, len(bars))
	adjClose := make([]float64, len(bars))
	adjHigh := make([]float64, len(bars))
	adjLow := make([]float64, len(bars))
	for i, b := range bars {
		rawClose[i], rawHigh[i], rawLow[i] = b.Close, b.High, b.Low
		adjClose[i], adjHigh[i], adjLow[i] = b.CloseAdj, b.HighAdj, b.LowAdj
	}

	raw := computeSets(rawClose, rawHigh, rawLow)
	adj := computeSets(adjClose, adjHigh, adjLow)
	for i := range out {
		out[i].Raw = raw[i]
		out[i].Adjusted = adj[i]
	}
	return out
}

func computeSets(closes, highs, lows []float64) []IndicatorSet {
	n := len(closes)
	sets := make([]IndicatorSet, n)

	mas := make([][]float64, len(maPeriods))
	for pi, p := range maPeriods {
		mas[pi] = SMA(closes, p)
	}
	rsi := RSI(closes, rsiPeriod)
	macd, signal, hist := MACD(closes, macdFast, macdSlow, macdSignal)
	k, d, j := KDJ(highs, lows, closes, kdjPeriod)

	for i := 0; i < n; i++ {
		s := &sets[i]
		s.MA5 = optional(mas[0][i])
		s.MA10 = optional(mas[1][i])
		s.MA20 = optional(mas[2][i])
		s.MA60 = optional(mas[3][i])
		s.MA5Dir = maDirection(mas[0], i)
		s.MA10Dir = maDirection(mas[1], i)
		s.MA20Dir = maDirection(mas[2], i)
		s.MA60Dir = maDirection(mas[3], i)
		s.RSI = optional(rsi[i])
		s.MACD = optional(macd[i])
		s.MACDSignal = optional(signal[i])
		s.MACDHist = optional(hist[i])
		s.K = optional(k[i])
		s.D = optional(d[i])
		s.J = optional(j[i])
	}
	return sets
}

// maDirection compares an indicator value against its own previous value.
// Index 0, warm-up positions and exact ties are all flat.
func maDirection(series []float64, i int) Direction {
	if i == 0 || !IsDefined(series[i]) || !IsDefined(series[i-1]) {
		return DirFlat
	}
	switch {
	case series[i] > series[i-1]:
		return DirUp
	case series[i] < series[i-1]:
		return DirDown
	}
	return DirFlat
}

func optional(v float64) *float64 {
	if !IsDefined(v) {
		return nil
	}
	return &v
}
