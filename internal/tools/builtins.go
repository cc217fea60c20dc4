package tools

import (
	"context"
	"fmt"

	"github.com/SeanStafford/ENTROPY/internal/marketdata"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/hybrid"
)

// RegisterRetrievalTools wires search_news (basic, generalist-facing)
// and search_news_advanced (ticker-filtered, NewsSpecialist-facing) onto
// retriever.
func RegisterRetrievalTools(b *Belt, retriever *hybrid.Retriever) {
	b.Register(Tool{
		Name:        "search_news",
		Description: "Search the news corpus for articles relevant to a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"k":     map[string]any{"type": "integer", "default": 5},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			k := intArg(args, "k", 5)
			hits := retriever.Search(ctx, query, k, nil)
			return hits, nil
		},
	})

	b.Register(Tool{
		Name:        "search_news_advanced",
		Description: "Search the news corpus with an optional ticker filter, for deep-dive analysis.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":   map[string]any{"type": "string"},
				"k":       map[string]any{"type": "integer", "default": 10},
				"tickers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			k := intArg(args, "k", 10)
			hits := retriever.Search(ctx, query, k, tickerFilterArg(args))
			return hits, nil
		},
	})
}

// RegisterMarketDataTools wires the full set of market-data operations
// and indicators onto mdt. Generalist agents only get a Subset of these
// (get_price, get_fundamentals); MarketSpecialist gets all of them.
func RegisterMarketDataTools(b *Belt, mdt *marketdata.Tools) {
	b.Register(Tool{
		Name:        "get_price",
		Description: "Get the current price snapshot for a ticker.",
		Parameters:  tickerSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			ticker, err := requireTicker(args)
			if err != nil {
				return nil, err
			}
			return mdt.GetPrice(ctx, ticker), nil
		},
	})

	b.Register(Tool{
		Name:        "get_fundamentals",
		Description: "Get fundamental data (P/E, market cap, dividend yield, EPS) for a ticker.",
		Parameters:  tickerSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			ticker, err := requireTicker(args)
			if err != nil {
				return nil, err
			}
			return mdt.GetFundamentals(ctx, ticker), nil
		},
	})

	b.Register(Tool{
		Name:        "get_history",
		Description: "Get closing-price history for a ticker over a period.",
		Parameters:  tickerPeriodSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			ticker, err := requireTicker(args)
			if err != nil {
				return nil, err
			}
			period, _ := args["period"].(string)
			hist, ok := mdt.GetHistory(ctx, ticker, period)
			return absentableResult(hist, ok), nil
		},
	})

	b.Register(Tool{
		Name:        "price_change",
		Description: "Get the percent price change for a ticker over a period.",
		Parameters:  tickerPeriodSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			ticker, err := requireTicker(args)
			if err != nil {
				return nil, err
			}
			period, _ := args["period"].(string)
			pct, ok := mdt.PriceChange(ctx, ticker, period)
			return absentableResult(pct, ok), nil
		},
	})

	b.Register(Tool{
		Name:        "compare_performance",
		Description: "Compare percent performance across tickers over a period.",
		Parameters:  tickersPeriodSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			tickers := stringSliceArg(args, "tickers")
			period, _ := args["period"].(string)
			rows, ok := mdt.ComparePerformance(ctx, tickers, period)
			return absentableResult(rows, ok), nil
		},
	})

	b.Register(Tool{
		Name:        "top_performers",
		Description: "Rank tickers by percent performance over a period, best first.",
		Parameters:  tickersPeriodSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			tickers := stringSliceArg(args, "tickers")
			period, _ := args["period"].(string)
			n := intArg(args, "n", 3)
			rows, ok := mdt.TopPerformers(ctx, tickers, period, n)
			return absentableResult(rows, ok), nil
		},
	})

	b.Register(Tool{
		Name:        "technicals",
		Description: "Get technical indicators (SMA, EMA, RSI, MACD, golden_cross) for a ticker.",
		Parameters:  tickerSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			ticker, err := requireTicker(args)
			if err != nil {
				return nil, err
			}
			return mdt.Technicals(ctx, ticker), nil
		},
	})
}

func tickerSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"ticker": map[string]any{"type": "string"}},
		"required":   []string{"ticker"},
	}
}

func tickerPeriodSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticker": map[string]any{"type": "string"},
			"period": map[string]any{"type": "string"},
		},
		"required": []string{"ticker", "period"},
	}
}

func tickersPeriodSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tickers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"period":  map[string]any{"type": "string"},
		},
		"required": []string{"tickers", "period"},
	}
}

func requireTicker(args map[string]any) (string, error) {
	ticker, ok := args["ticker"].(string)
	if !ok || ticker == "" {
		return "", fmt.Errorf("tools: missing required argument %q", "ticker")
	}
	return ticker, nil
}

func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func tickerFilterArg(args map[string]any) map[string]struct{} {
	tickers := stringSliceArg(args, "tickers")
	if len(tickers) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		out[t] = struct{}{}
	}
	return out
}

// absentableResult reports the same "typed value or absent" shape
// spec.md §4.4 requires for MarketDataTools operations, at the tool
// boundary the Agent observes.
func absentableResult(v any, ok bool) any {
	if !ok {
		return map[string]any{"absent": true}
	}
	return v
}
