package policy

import (
	"testing"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

func TestClassifyTechnicalJargonRoutesImmediateMarket(t *testing.T) {
	d := Classify("what's the RSI on NVDA", entropytypes.Session{})
	if d.Type != TypeImmediateSpecialist || d.Kind != entropytypes.KindMarket {
		t.Fatalf("expected immediate market specialist, got %+v", d)
	}
	if d.Rule != 1 {
		t.Fatalf("expected rule 1, got %d", d.Rule)
	}
}

func TestClassifyDepthRequestDefaultsToMarket(t *testing.T) {
	d := Classify("give me a comprehensive report on AAPL", entropytypes.Session{})
	if d.Type != TypeImmediateSpecialist || d.Kind != entropytypes.KindMarket {
		t.Fatalf("expected immediate market specialist, got %+v", d)
	}
}

func TestClassifyDepthRequestFollowsNewsWhenLastToolWasNews(t *testing.T) {
	session := entropytypes.Session{
		Turns: []entropytypes.Turn{
			{Role: entropytypes.RoleUser, Content: "any news on TSLA?"},
			{Role: entropytypes.RoleTool, ToolCall: &entropytypes.ToolCallRecord{ToolName: "search_news"}},
		},
	}
	d := Classify("dive deeper into that", session)
	if d.Kind != entropytypes.KindNews {
		t.Fatalf("expected news specialist, got %+v", d)
	}
}

func TestClassifyDissatisfactionRequiresPriorUserTurn(t *testing.T) {
	// No prior user turn: falls through to GeneralistOnly.
	d := Classify("tell me more", entropytypes.Session{})
	if d.Type != TypeGeneralistOnly {
		t.Fatalf("expected generalist-only with no prior turn, got %+v", d)
	}

	session := entropytypes.Session{
		Turns: []entropytypes.Turn{
			{Role: entropytypes.RoleUser, Content: "what is AAPL doing"},
			{Role: entropytypes.RoleAgent, Content: "it's up 2%"},
			{Role: entropytypes.RoleUser, Content: "tell me more"},
		},
	}
	d = Classify("tell me more", session)
	if d.Type != TypeImmediateSpecialist || !d.IsFollowUp {
		t.Fatalf("expected immediate specialist follow-up, got %+v", d)
	}
	if d.Rule != 3 {
		t.Fatalf("expected rule 3, got %d", d.Rule)
	}
}

func TestClassifyDissatisfactionPronounDefaultsToNewsWithNoToolHistory(t *testing.T) {
	session := entropytypes.Session{
		Turns: []entropytypes.Turn{
			{Role: entropytypes.RoleUser, Content: "AAPL jumped today"},
			{Role: entropytypes.RoleAgent, Content: "yes, it's up"},
			{Role: entropytypes.RoleUser, Content: "why?"},
		},
	}
	d := Classify("why?", session)
	if d.Type != TypeImmediateSpecialist || d.Kind != entropytypes.KindNews {
		t.Fatalf("expected news specialist default for bare pronoun with no tool history, got %+v", d)
	}
}

func TestClassifyDissatisfactionPronounFollowsMarketWhenLastToolWasMarket(t *testing.T) {
	session := entropytypes.Session{
		Turns: []entropytypes.Turn{
			{Role: entropytypes.RoleUser, Content: "what's AAPL's RSI"},
			{Role: entropytypes.RoleTool, ToolCall: &entropytypes.ToolCallRecord{ToolName: "calculate_rsi"}},
			{Role: entropytypes.RoleAgent, Content: "65"},
			{Role: entropytypes.RoleUser, Content: "why?"},
		},
	}
	d := Classify("why?", session)
	if d.Kind != entropytypes.KindMarket {
		t.Fatalf("expected market specialist when prior tool call was market, got %+v", d)
	}
}

func TestClassifyPowerUserAnalyticalRequiresTenQueries(t *testing.T) {
	session := entropytypes.Session{Profile: entropytypes.Profile{QueryCount: 9}}
	d := Classify("compare NVDA versus AMD", session)
	if d.Type != TypeGeneralistOnly {
		t.Fatalf("expected generalist-only below threshold, got %+v", d)
	}

	session.Profile.QueryCount = 10
	d = Classify("compare NVDA versus AMD", session)
	if d.Type != TypeImmediateSpecialist || d.Kind != entropytypes.KindMarket {
		t.Fatalf("expected immediate market specialist at threshold, got %+v", d)
	}
}

func TestClassifyWhatMovedTriggersNewsPrefetchWithTicker(t *testing.T) {
	d := Classify("what moved NVDA today", entropytypes.Session{})
	if d.Type != TypeGeneralistThenPrefetch || d.Kind != entropytypes.KindNews {
		t.Fatalf("expected news prefetch, got %+v", d)
	}
	if d.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %f", d.Confidence)
	}
	if d.Ticker != "NVDA" {
		t.Fatalf("expected ticker NVDA, got %q", d.Ticker)
	}
	if !d.ShouldPrefetch() {
		t.Fatal("expected ShouldPrefetch true above threshold")
	}
}

func TestClassifyTwoConsecutiveFollowUpsTriggersMarketPrefetch(t *testing.T) {
	profile := entropytypes.Profile{}
	profile.RecordFollowUp(true)
	profile.RecordFollowUp(true)
	session := entropytypes.Session{Profile: profile}

	d := Classify("ordinary question with no other signal", session)
	if d.Type != TypeGeneralistThenPrefetch || d.Kind != entropytypes.KindMarket {
		t.Fatalf("expected market prefetch, got %+v", d)
	}
	if d.Confidence != 0.80 {
		t.Fatalf("expected confidence 0.80, got %f", d.Confidence)
	}
}

func TestClassifyPowerUserNewsPrefetch(t *testing.T) {
	session := entropytypes.Session{Profile: entropytypes.Profile{QueryCount: 12}}
	d := Classify("any news today", session)
	if d.Type != TypeGeneralistThenPrefetch || d.Kind != entropytypes.KindNews {
		t.Fatalf("expected news prefetch, got %+v", d)
	}
	if d.Confidence != 0.80 {
		t.Fatalf("expected confidence 0.80, got %f", d.Confidence)
	}
}

func TestClassifyDefaultsToGeneralistOnly(t *testing.T) {
	d := Classify("what's the weather like", entropytypes.Session{})
	if d.Type != TypeGeneralistOnly {
		t.Fatalf("expected generalist-only, got %+v", d)
	}
	if d.Rule != 8 {
		t.Fatalf("expected rule 8, got %d", d.Rule)
	}
}

func TestClassifyRulesAreFirstMatchWins(t *testing.T) {
	// Technical jargon (rule 1) should win over what-moved (rule 5) even
	// though both patterns could match the same query.
	session := entropytypes.Session{Profile: entropytypes.Profile{QueryCount: 20}}
	d := Classify("what moved the RSI on NVDA today", session)
	if d.Rule != 1 {
		t.Fatalf("expected rule 1 to win, got rule %d (%+v)", d.Rule, d)
	}
}

func TestShouldPrefetchFalseBelowThreshold(t *testing.T) {
	d := Decision{Type: TypeGeneralistThenPrefetch, Confidence: 0.5}
	if d.ShouldPrefetch() {
		t.Fatal("expected ShouldPrefetch false below threshold")
	}
}
