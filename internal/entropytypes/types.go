// Package entropytypes holds the data model shared across every ENTROPY
// component: retrieval documents and hits, market-data value objects,
// session turns and profiles, and the specialist task/result pair.
package entropytypes

import "time"

// Document is an immutable record shared by both retrieval indexes.
type Document struct {
	ID        string
	Title     string
	Body      string
	Published time.Time
	Tickers   []string
	Publisher string
	Link      string
	// Sentiment and SentimentScore are populated offline by the
	// (out-of-core) sentiment labeller; absent when unset.
	Sentiment      string
	SentimentScore float64
}

// HasTicker reports whether the document belongs to the given ticker.
func (d Document) HasTicker(ticker string) bool {
	for _, t := range d.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

// IntersectsTickers reports whether the document's ticker set intersects filter.
func (d Document) IntersectsTickers(filter map[string]struct{}) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range d.Tickers {
		if _, ok := filter[t]; ok {
			return true
		}
	}
	return false
}

// RetrievalHit is one ranked result from a single retrieval method.
// Scores are method-local and not comparable across methods.
type RetrievalHit struct {
	DocumentID string
	Score      float64
	Rank       int
}

// FusedHit is a RetrievalHit after hybrid fusion, carrying the combined score.
type FusedHit struct {
	DocumentID   string
	FusedScore   float64
	SemanticRank int // 0 if the document had no semantic hit
}

// PriceSnapshot is a point-in-time quote. All fields optional; absence
// signals upstream unavailability, never an exception.
type PriceSnapshot struct {
	Ticker    string
	Price     *float64
	Change    *float64
	ChangePct *float64
	AsOf      *time.Time
}

func (p PriceSnapshot) Absent() bool { return p.Price == nil }

// Fundamentals is a typed bundle of company fundamentals.
type Fundamentals struct {
	Ticker        string
	PERatio       *float64
	MarketCap     *float64
	DividendYield *float64
	EPS           *float64
}

func (f Fundamentals) Absent() bool {
	return f.PERatio == nil && f.MarketCap == nil && f.DividendYield == nil && f.EPS == nil
}

// GoldenCrossState describes the relationship between a fast and slow moving average.
type GoldenCrossState string

const (
	CrossNone   GoldenCrossState = "none"
	CrossGolden GoldenCrossState = "golden"
	CrossDeath  GoldenCrossState = "death"
)

// TechnicalReading bundles indicator outputs for one ticker.
type TechnicalReading struct {
	Ticker     string
	SMA        map[int]float64
	EMA        map[int]float64
	RSI        *float64
	MACD       *float64
	MACDSignal *float64
	Cross      GoldenCrossState
}

func (t TechnicalReading) Absent() bool {
	return t.RSI == nil && t.MACD == nil && len(t.SMA) == 0 && len(t.EMA) == 0
}

// PriceHistoryPoint is one bar of historical price data.
type PriceHistoryPoint struct {
	Time  time.Time
	Close float64
}

// Period is a closed set of accepted lookback windows.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1MO Period = "1mo"
	Period3MO Period = "3mo"
	Period6MO Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	Period10Y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// ValidPeriod reports whether p belongs to the closed set of accepted periods.
func ValidPeriod(p string) bool {
	switch Period(p) {
	case Period1D, Period5D, Period1MO, Period3MO, Period6MO, Period1Y, Period2Y, Period5Y, Period10Y, PeriodYTD, PeriodMax:
		return true
	}
	return false
}

// PerformanceRow is one row of a compare_performance / top_performers result.
type PerformanceRow struct {
	Ticker    string
	ChangePct float64
}

// TurnRole distinguishes who authored a Turn.
type TurnRole string

const (
	RoleUser  TurnRole = "user"
	RoleAgent TurnRole = "agent"
	RoleTool  TurnRole = "tool"
)

// ToolCallRecord is the structured content of a tool Turn.
type ToolCallRecord struct {
	ToolName  string
	Arguments map[string]any
	Result    any
}

// Turn is one append-only entry in a Session's log.
type Turn struct {
	Role      TurnRole
	Content   string
	ToolCall  *ToolCallRecord
	Timestamp time.Time
	Cost      float64
	TokensIn  int
	TokensOut int
}

// QueryClassification records how one past user query was routed, for
// Profile's rolling window.
type QueryClassification string

const (
	ClassGeneralistOnly QueryClassification = "generalist_only"
	ClassImmediateSpec  QueryClassification = "immediate_specialist"
	ClassPrefetch       QueryClassification = "prefetch"
)

// Profile aggregates rolling per-session statistics used by DecisionPolicy.
type Profile struct {
	QueryCount          int
	LastClassifications []QueryClassification // most recent last, capped
	LastResponseBrief   bool
	PriorDissatisfied   bool
	FollowUpHistory     []bool // most recent last, capped; whether each recent query matched the dissatisfaction-follow-up rule
}

const profileHistoryCap = 10

// RecordClassification appends c to the rolling window, capping its length.
func (p *Profile) RecordClassification(c QueryClassification) {
	p.LastClassifications = append(p.LastClassifications, c)
	if len(p.LastClassifications) > profileHistoryCap {
		p.LastClassifications = p.LastClassifications[len(p.LastClassifications)-profileHistoryCap:]
	}
}

// RecordFollowUp appends whether the most recently classified query matched
// the dissatisfaction-follow-up rule, capping the rolling window.
func (p *Profile) RecordFollowUp(isFollowUp bool) {
	p.FollowUpHistory = append(p.FollowUpHistory, isFollowUp)
	if len(p.FollowUpHistory) > profileHistoryCap {
		p.FollowUpHistory = p.FollowUpHistory[len(p.FollowUpHistory)-profileHistoryCap:]
	}
}

// LastNFollowUps reports whether the most recent n recorded queries were all
// follow-ups. False if fewer than n have been recorded.
func (p *Profile) LastNFollowUps(n int) bool {
	if len(p.FollowUpHistory) < n {
		return false
	}
	for _, v := range p.FollowUpHistory[len(p.FollowUpHistory)-n:] {
		if !v {
			return false
		}
	}
	return true
}

// Session is the ordered turn log and rolling profile for one user thread.
type Session struct {
	ID      string
	Turns   []Turn
	Profile Profile
}

// SpecialistKind names the two specialist task families.
type SpecialistKind string

const (
	KindMarket SpecialistKind = "market"
	KindNews   SpecialistKind = "news"
)

// Task is the input to a specialist worker.
type Task struct {
	Kind          SpecialistKind
	FocusedBrief  string
	ContextWindow []Turn
	SessionID     string
	IsPrefetch    bool // true for background pre-fetch submissions; false for immediate-specialist submissions
}

// SpecialistResult is the output of one completed specialist Task.
type SpecialistResult struct {
	Kind            SpecialistKind
	Content         string
	Cost            float64
	CreatedAt       time.Time
	TaskFingerprint string
}

// AgentTag names the reported routing outcome for a processed query.
type AgentTag string

const (
	TagGeneralist       AgentTag = "generalist"
	TagGeneralistMarket AgentTag = "generalist+market_data"
	TagGeneralistNews   AgentTag = "generalist+news"
)
