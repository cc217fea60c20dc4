// Package marketdata exposes the fixed set of market-data operations
// spec.md §4.4 names, adapting the teacher's internal/ta pure-numeric
// indicator functions and internal/engine's candle-fetch/compute split
// into typed operations that return an absent value rather than an
// error on invalid ticker, insufficient history, or transport failure.
package marketdata

import (
	"context"
	"time"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
)

// Source is the external quotes/fundamentals provider Tools sits on top
// of, mirroring the teacher's Broker interface shape (internal/interfaces.Broker)
// generalized away from order execution.
type Source interface {
	LatestPrice(ctx context.Context, ticker string) (price, changePct float64, asOf time.Time, ok bool)
	Fundamentals(ctx context.Context, ticker string) (entropytypes.Fundamentals, bool)
	History(ctx context.Context, ticker string, period entropytypes.Period) ([]entropytypes.PriceHistoryPoint, bool)
}

// IndicatorConfig configures the periods indicators are computed over.
type IndicatorConfig struct {
	RSIPeriod  int
	EMAFast    int
	EMASlow    int
	MACDSignal int
	SMAPeriods []int
}

func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{RSIPeriod: 14, EMAFast: 12, EMASlow: 26, MACDSignal: 9, SMAPeriods: []int{20, 50}}
}

// Tools is the MarketDataTools component.
type Tools struct {
	source Source
	cfg    IndicatorConfig
}

func New(source Source, cfg IndicatorConfig) *Tools {
	return &Tools{source: source, cfg: cfg}
}

// GetPrice returns the current quote for ticker, or an absent snapshot.
func (t *Tools) GetPrice(ctx context.Context, ticker string) entropytypes.PriceSnapshot {
	price, changePct, asOf, ok := t.source.LatestPrice(ctx, ticker)
	if !ok {
		obslog.Warn(ctx, "market data: price unavailable", "ticker", ticker)
		return entropytypes.PriceSnapshot{Ticker: ticker}
	}
	change := price * changePct / 100
	return entropytypes.PriceSnapshot{
		Ticker:    ticker,
		Price:     &price,
		Change:    &change,
		ChangePct: &changePct,
		AsOf:      &asOf,
	}
}

// GetFundamentals returns fundamentals for ticker, or an absent bundle.
func (t *Tools) GetFundamentals(ctx context.Context, ticker string) entropytypes.Fundamentals {
	f, ok := t.source.Fundamentals(ctx, ticker)
	if !ok {
		obslog.Warn(ctx, "market data: fundamentals unavailable", "ticker", ticker)
		return entropytypes.Fundamentals{Ticker: ticker}
	}
	return f
}

// GetHistory returns the closing-price history for ticker over period.
// Unknown periods and transport failures both yield (nil, false).
func (t *Tools) GetHistory(ctx context.Context, ticker string, period string) ([]entropytypes.PriceHistoryPoint, bool) {
	if !entropytypes.ValidPeriod(period) {
		return nil, false
	}
	hist, ok := t.source.History(ctx, ticker, entropytypes.Period(period))
	if !ok {
		obslog.Warn(ctx, "market data: history unavailable", "ticker", ticker, "period", period)
		return nil, false
	}
	return hist, true
}

// PriceChange returns the percent change over period, or absent.
func (t *Tools) PriceChange(ctx context.Context, ticker string, period string) (float64, bool) {
	hist, ok := t.GetHistory(ctx, ticker, period)
	if !ok || len(hist) < 2 {
		return 0, false
	}
	first, last := hist[0].Close, hist[len(hist)-1].Close
	if first == 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// Returns computes the simple return of ticker between start and end,
// supplementing spec.md's condensed operation list per
// original_source/entropy/contexts/market_data/analytics.py.
func (t *Tools) Returns(ctx context.Context, ticker string, start, end time.Time) (float64, bool) {
	hist, ok := t.source.History(ctx, ticker, entropytypes.PeriodMax)
	if !ok || len(hist) < 2 {
		return 0, false
	}
	var startPrice, endPrice float64
	var haveStart, haveEnd bool
	for _, p := range hist {
		if !p.Time.Before(start) && !haveStart {
			startPrice = p.Close
			haveStart = true
		}
		if !p.Time.After(end) {
			endPrice = p.Close
			haveEnd = true
		}
	}
	if !haveStart || !haveEnd || startPrice == 0 {
		return 0, false
	}
	return (endPrice - startPrice) / startPrice * 100, true
}

// ComparePerformance returns the period return of each ticker, in the
// order supplied. Tickers that fail to resolve are omitted.
func (t *Tools) ComparePerformance(ctx context.Context, tickers []string, period string) ([]entropytypes.PerformanceRow, bool) {
	rows := make([]entropytypes.PerformanceRow, 0, len(tickers))
	for _, tk := range tickers {
		if pct, ok := t.PriceChange(ctx, tk, period); ok {
			rows = append(rows, entropytypes.PerformanceRow{Ticker: tk, ChangePct: pct})
		}
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

// TopPerformers returns the n best-performing tickers over period, sorted descending.
func (t *Tools) TopPerformers(ctx context.Context, tickers []string, period string, n int) ([]entropytypes.PerformanceRow, bool) {
	rows, ok := t.ComparePerformance(ctx, tickers, period)
	if !ok {
		return nil, false
	}
	sortByChangeDesc(rows)
	if n > len(rows) {
		n = len(rows)
	}
	return rows[:n], true
}

func sortByChangeDesc(rows []entropytypes.PerformanceRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].ChangePct > rows[j-1].ChangePct; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

// Technicals computes the full indicator bundle for ticker over its
// available history, adapting teacher's internal/ta functions.
func (t *Tools) Technicals(ctx context.Context, ticker string) entropytypes.TechnicalReading {
	hist, ok := t.source.History(ctx, ticker, entropytypes.Period1Y)
	if !ok || len(hist) == 0 {
		obslog.Warn(ctx, "market data: technicals unavailable", "ticker", ticker)
		return entropytypes.TechnicalReading{Ticker: ticker}
	}
	closes := make([]float64, len(hist))
	for i, p := range hist {
		closes[i] = p.Close
	}

	reading := entropytypes.TechnicalReading{
		Ticker: ticker,
		SMA:    make(map[int]float64),
		EMA:    make(map[int]float64),
		Cross:  entropytypes.CrossNone,
	}
	for _, n := range t.cfg.SMAPeriods {
		if v := SMA(closes, n); !isNaN(v) {
			reading.SMA[n] = v
		}
	}
	if v := EMA(closes, t.cfg.EMAFast); !isNaN(v) {
		reading.EMA[t.cfg.EMAFast] = v
	}
	if v := EMA(closes, t.cfg.EMASlow); !isNaN(v) {
		reading.EMA[t.cfg.EMASlow] = v
	}
	if v := RSI(closes, t.cfg.RSIPeriod); !isNaN(v) {
		reading.RSI = &v
	}
	if macd, signal, ok := MACD(closes, t.cfg.EMAFast, t.cfg.EMASlow, t.cfg.MACDSignal); ok {
		reading.MACD = &macd
		reading.MACDSignal = &signal
	}
	if fast, hasFast := reading.EMA[t.cfg.EMAFast]; hasFast {
		if slow, hasSlow := reading.EMA[t.cfg.EMASlow]; hasSlow {
			reading.Cross = GoldenCross(closes, t.cfg.EMAFast, t.cfg.EMASlow, fast, slow)
		}
	}
	return reading
}

func isNaN(f float64) bool { return f != f }
