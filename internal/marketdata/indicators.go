package marketdata

import (
	"math"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

// SMA, RSI, and StdDev are adapted directly from the teacher's
// internal/ta package (same signatures, same NaN-on-insufficient-data
// contract). EMA, MACD, and GoldenCross are new, grounded in
// original_source/entropy/contexts/market_data/signals.py, which the
// teacher's own indicator set (SMA/RSI/Bollinger/ATR) doesn't cover.

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// EMA computes the exponential moving average over the full closes
// series with smoothing period n, seeded by the SMA of the first n values.
func EMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	series := emaSeries(closes, n)
	if series == nil {
		return math.NaN()
	}
	return series[len(series)-1]
}

// emaSeries returns the EMA at every point from index n-1 onward, or nil
// if there isn't enough data.
func emaSeries(closes []float64, n int) []float64 {
	if len(closes) < n || n <= 0 {
		return nil
	}
	k := 2.0 / (float64(n) + 1.0)
	out := make([]float64, 0, len(closes)-n+1)
	seed := SMA(closes[:n], n)
	out = append(out, seed)
	prev := seed
	for i := n; i < len(closes); i++ {
		v := closes[i]*k + prev*(1-k)
		out = append(out, v)
		prev = v
	}
	return out
}

// MACD returns the MACD line and its signal line, or ok=false if there
// isn't enough history for both EMAs plus the signal smoothing.
func MACD(closes []float64, fastN, slowN, signalN int) (macd, signal float64, ok bool) {
	fastSeries := emaSeries(closes, fastN)
	slowSeries := emaSeries(closes, slowN)
	if fastSeries == nil || slowSeries == nil {
		return 0, 0, false
	}
	// Align both series to the same trailing window (slow EMA starts later).
	offset := (slowN - fastN)
	if offset < 0 || len(fastSeries) <= offset {
		return 0, 0, false
	}
	aligned := fastSeries[offset:]
	n := len(slowSeries)
	if len(aligned) < n {
		n = len(aligned)
	}
	macdLine := make([]float64, n)
	for i := 0; i < n; i++ {
		macdLine[i] = aligned[i] - slowSeries[i]
	}
	if len(macdLine) < signalN {
		return 0, 0, false
	}
	signalSeries := emaSeries(macdLine, signalN)
	if signalSeries == nil {
		return 0, 0, false
	}
	return macdLine[len(macdLine)-1], signalSeries[len(signalSeries)-1], true
}

// GoldenCross reports the current relationship between the fast and slow
// EMAs by comparing today's crossover state against yesterday's.
func GoldenCross(closes []float64, fastN, slowN int, fastNow, slowNow float64) entropytypes.GoldenCrossState {
	if len(closes) < 2 {
		return entropytypes.CrossNone
	}
	prevFast := EMA(closes[:len(closes)-1], fastN)
	prevSlow := EMA(closes[:len(closes)-1], slowN)
	if isNaN(prevFast) || isNaN(prevSlow) {
		return entropytypes.CrossNone
	}
	wasBelow := prevFast <= prevSlow
	isAbove := fastNow > slowNow
	switch {
	case wasBelow && isAbove:
		return entropytypes.CrossGolden
	case !wasBelow && !isAbove:
		return entropytypes.CrossDeath
	default:
		return entropytypes.CrossNone
	}
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}
