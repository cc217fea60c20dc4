package marketdata

import (
	"context"
	"time"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

// LiveFeed is the subset of quotesfeed.Feed's contract FeedSource needs.
type LiveFeed interface {
	Latest(ticker string) (price, changePct float64, asOf time.Time, ok bool)
}

// FeedSource implements Source on top of a live quotesfeed for prices
// and a pre-loaded snapshot for fundamentals/history. Fetching raw
// fundamentals/history data from an external provider is out of scope
// for the core (spec.md §1); callers load whatever corpus they have
// (e.g. a nightly batch export) into FeedSource at startup.
type FeedSource struct {
	feed         LiveFeed
	fundamentals map[string]entropytypes.Fundamentals
	history      map[string][]entropytypes.PriceHistoryPoint
}

func NewFeedSource(feed LiveFeed) *FeedSource {
	return &FeedSource{
		feed:         feed,
		fundamentals: make(map[string]entropytypes.Fundamentals),
		history:      make(map[string][]entropytypes.PriceHistoryPoint),
	}
}

// LoadFundamentals seeds the fundamentals snapshot for ticker.
func (s *FeedSource) LoadFundamentals(ticker string, f entropytypes.Fundamentals) {
	s.fundamentals[ticker] = f
}

// LoadHistory seeds the closing-price history for ticker, sorted oldest-first.
func (s *FeedSource) LoadHistory(ticker string, points []entropytypes.PriceHistoryPoint) {
	s.history[ticker] = points
}

func (s *FeedSource) LatestPrice(ctx context.Context, ticker string) (price, changePct float64, asOf time.Time, ok bool) {
	return s.feed.Latest(ticker)
}

func (s *FeedSource) Fundamentals(ctx context.Context, ticker string) (entropytypes.Fundamentals, bool) {
	f, ok := s.fundamentals[ticker]
	return f, ok
}

// History returns the loaded points for ticker, truncated to the
// trailing window implied by period. Since the loaded snapshot has no
// intrinsic period boundary, 1d/5d/1mo/etc all draw from the same
// series but keep the closed-set validation in Tools.GetHistory
// authoritative for rejecting unknown periods.
func (s *FeedSource) History(ctx context.Context, ticker string, period entropytypes.Period) ([]entropytypes.PriceHistoryPoint, bool) {
	pts, ok := s.history[ticker]
	if !ok || len(pts) == 0 {
		return nil, false
	}
	n := periodWindow(period)
	if n <= 0 || n >= len(pts) {
		return pts, true
	}
	return pts[len(pts)-n:], true
}

func periodWindow(p entropytypes.Period) int {
	switch p {
	case entropytypes.Period1D:
		return 1
	case entropytypes.Period5D:
		return 5
	case entropytypes.Period1MO:
		return 21
	case entropytypes.Period3MO:
		return 63
	case entropytypes.Period6MO:
		return 126
	case entropytypes.Period1Y:
		return 252
	case entropytypes.Period2Y:
		return 504
	case entropytypes.Period5Y:
		return 1260
	case entropytypes.Period10Y, entropytypes.PeriodYTD, entropytypes.PeriodMax:
		return 0
	default:
		return 0
	}
}
