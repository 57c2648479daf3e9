package market

import "math"

// The kernel functions below map an input series of length n to output series
// of length n, index-aligned. Positions inside an indicator's warm-up window
// hold NaN, which callers must treat as "not yet defined" rather than zero.
// None of the functions panic; a series shorter than the period simply yields
// all-NaN output (KDJ excepted, see its seed rule).

// IsDefined reports whether a kernel output value is past its warm-up window.
func IsDefined(v float64) bool {
	return !math.IsNaN(v)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA returns the period-point simple moving average, computed with a running
// sum. Indices before period-1 are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the period-point exponential moving average, seeded with the
// SMA of the first period points at index period-1. Earlier indices are NaN.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	out[period-1] = seed / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI returns Wilder's relative strength index. The first average gain/loss
// is the simple mean of the first period deltas, so the series is seeded at
// index period; later averages use Wilder smoothing. A zero average loss
// yields RSI 100. Output values lie in [0, 100].
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (fast EMA minus slow EMA), its signal line and
// the histogram. The line is defined from index slow-1. The signal EMA runs
// over the contiguous defined portion of the line, not the NaN-padded full
// series, and the result is remapped to absolute indices; its first defined
// index is therefore slow-1 + signalPeriod - 1.
func MACD(values []float64, fast, slow, signal int) (line, signalLine, hist []float64) {
	n := len(values)
	line, signalLine, hist = nanSlice(n), nanSlice(n), nanSlice(n)
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow || n < slow {
		return line, signalLine, hist
	}

	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	valid := line[slow-1:]
	sig := EMA(valid, signal)
	for j, v := range sig {
		if !math.IsNaN(v) {
			signalLine[slow-1+j] = v
		}
	}

	for i := range hist {
		if !math.IsNaN(line[i]) && !math.IsNaN(signalLine[i]) {
			hist[i] = line[i] - signalLine[i]
		}
	}
	return line, signalLine, hist
}

// KDJ returns the smoothed stochastic K, D and J series. RSV is the position
// of the close inside the trailing period-bar high/low range (50 when the
// range is zero); before a full window is available the range covers the bars
// seen so far. K and D are seeded at 50 at index 0 rather than left
// undefined, producing a slow ramp-in, and J = 3K - 2D is unbounded.
func KDJ(highs, lows, closes []float64, period int) (k, d, j []float64) {
	n := len(closes)
	k, d, j = nanSlice(n), nanSlice(n), nanSlice(n)
	if n == 0 || period <= 0 || len(highs) != n || len(lows) != n {
		return k, d, j
	}

	k[0], d[0], j[0] = 50, 50, 50
	for i := 1; i < n; i++ {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		hi, lo := highs[start], lows[start]
		for x := start + 1; x <= i; x++ {
			hi = math.Max(hi, highs[x])
			lo = math.Min(lo, lows[x])
		}
		rsv := 50.0
		if hi != lo {
			rsv = (closes[i] - lo) / (hi - lo) * 100
		}
		k[i] = k[i-1]*2/3 + rsv/3
		d[i] = d[i-1]*2/3 + k[i]/3
		j[i] = 3*k[i] - 2*d[i]
	}
	return k, d, j
}
