// Package policy implements DecisionPolicy: a pure classifier that
// routes one query to the generalist, an immediate specialist, or a
// generalist answer plus a background specialist pre-fetch. It is
// grounded in teacher's interfaces.Decider — a single-method contract
// mapping observed state to one decision — generalized from a trading
// Decision to a routing Decision, and from one rule (trend-following)
// to an ordered, first-match-wins rule list.
package policy

import (
	"regexp"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

// DecisionType names which of the three routing outcomes was chosen.
type DecisionType string

const (
	TypeGeneralistOnly         DecisionType = "generalist_only"
	TypeImmediateSpecialist    DecisionType = "immediate_specialist"
	TypeGeneralistThenPrefetch DecisionType = "generalist_then_prefetch"
)

// PrefetchConfidenceThreshold is the minimum confidence a prefetch
// decision must carry to actually schedule background work.
const PrefetchConfidenceThreshold = 0.80

// Decision is the outcome of one Classify call.
type Decision struct {
	Type       DecisionType
	Kind       entropytypes.SpecialistKind // zero value unused for GeneralistOnly
	Confidence float64                     // only meaningful for TypeGeneralistThenPrefetch
	Ticker     string                      // populated when a rule extracted a specific ticker
	IsFollowUp bool                        // whether this query matched the dissatisfaction-follow-up rule (rule 3)
	Rule       int                         // which numbered rule matched, for diagnostics
}

// ShouldPrefetch reports whether d is a prefetch decision whose
// confidence clears PrefetchConfidenceThreshold.
func (d Decision) ShouldPrefetch() bool {
	return d.Type == TypeGeneralistThenPrefetch && d.Confidence >= PrefetchConfidenceThreshold
}

var (
	technicalJargonRe = regexp.MustCompile(`(?i)\b(rsi|macd|moving average|golden cross|ema|sma|bollinger|support|resistance|technical indicator)\b`)
	depthRequestRe    = regexp.MustCompile(`(?i)\b(detailed analysis|comprehensive report|in depth|dive deeper)\b`)
	dissatisfactionRe = regexp.MustCompile(`(?i)\b(not enough detail|tell me more|why\??|elaborate|more detail)\b`)
	pronounWhyRe      = regexp.MustCompile(`(?i)\bwhy\??\b`)
	analyticalRe      = regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|top|best|worst|performance)\b`)
	whatMovedRe       = regexp.MustCompile(`(?i)\bwhat moved\b|\bwhy did .* move\b|\bwhat happened to\b`)
	newsMentionRe     = regexp.MustCompile(`(?i)\bnews\b`)
	tickerRe          = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

// Classify applies the ordered rule list to one query against the
// session's turn log and rolling profile. It reads session state but
// never mutates it — the caller is responsible for recording the
// decision back onto the profile (RecordClassification / RecordFollowUp)
// once the query has actually been routed.
func Classify(query string, session entropytypes.Session) Decision {
	if technicalJargonRe.MatchString(query) {
		return Decision{Type: TypeImmediateSpecialist, Kind: entropytypes.KindMarket, Rule: 1}
	}

	if depthRequestRe.MatchString(query) {
		kind := entropytypes.KindMarket
		if lastAgentTurnMentionedNews(session.Turns) {
			kind = entropytypes.KindNews
		}
		return Decision{Type: TypeImmediateSpecialist, Kind: kind, Rule: 2}
	}

	if dissatisfactionRe.MatchString(query) && hasPriorUserTurn(session.Turns) {
		kind := entropytypes.KindMarket
		switch {
		case lastAgentTurnMentionedNews(session.Turns):
			kind = entropytypes.KindNews
		case !hasAnyToolTurn(session.Turns) && pronounWhyRe.MatchString(query):
			// No tool turn ever ran, so there's no ticker/market-vs-news
			// evidence to fall back on. A bare "why?" defaults to news.
			kind = entropytypes.KindNews
		}
		return Decision{Type: TypeImmediateSpecialist, Kind: kind, IsFollowUp: true, Rule: 3}
	}

	if session.Profile.QueryCount >= 10 && analyticalRe.MatchString(query) {
		return Decision{Type: TypeImmediateSpecialist, Kind: entropytypes.KindMarket, Rule: 4}
	}

	if whatMovedRe.MatchString(query) {
		return Decision{Type: TypeGeneralistThenPrefetch, Kind: entropytypes.KindNews, Confidence: 0.85, Ticker: extractTicker(query), Rule: 5}
	}

	if session.Profile.LastNFollowUps(2) {
		return Decision{Type: TypeGeneralistThenPrefetch, Kind: entropytypes.KindMarket, Confidence: 0.80, Rule: 6}
	}

	if session.Profile.QueryCount >= 10 && newsMentionRe.MatchString(query) {
		return Decision{Type: TypeGeneralistThenPrefetch, Kind: entropytypes.KindNews, Confidence: 0.80, Rule: 7}
	}

	return Decision{Type: TypeGeneralistOnly, Rule: 8}
}

// hasPriorUserTurn reports whether turns contains a user turn preceding
// the most recent one (the current query, already appended by the
// caller before Classify runs).
func hasPriorUserTurn(turns []entropytypes.Turn) bool {
	count := 0
	for _, t := range turns {
		if t.Role == entropytypes.RoleUser {
			count++
		}
	}
	return count > 1
}

// lastAgentTurnMentionedNews scans backward for the most recent tool
// turn and reports whether it invoked a news-retrieval tool.
func lastAgentTurnMentionedNews(turns []entropytypes.Turn) bool {
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Role == entropytypes.RoleTool && t.ToolCall != nil {
			switch t.ToolCall.ToolName {
			case "search_news", "search_news_advanced":
				return true
			default:
				return false
			}
		}
	}
	return false
}

// hasAnyToolTurn reports whether any tool call has ever run in the
// session, regardless of which tool.
func hasAnyToolTurn(turns []entropytypes.Turn) bool {
	for _, t := range turns {
		if t.Role == entropytypes.RoleTool && t.ToolCall != nil {
			return true
		}
	}
	return false
}

// extractTicker looks for an already-uppercase 1-5 letter token, the
// conventional way users type a ticker inline ("what moved NVDA
// today"). It deliberately does not upcase the query first — doing so
// would match the first short word regardless of case.
func extractTicker(query string) string {
	return tickerRe.FindString(query)
}
