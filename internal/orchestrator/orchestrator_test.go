package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SeanStafford/ENTROPY/internal/agent"
	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/llmclient"
	"github.com/SeanStafford/ENTROPY/internal/session"
	"github.com/SeanStafford/ENTROPY/internal/specialistpool"
	"github.com/SeanStafford/ENTROPY/internal/tools"
)

// scriptedLLM returns one queued CallResult per call, holding on the
// last entry once exhausted.
type scriptedLLM struct {
	mu      sync.Mutex
	results []llmclient.CallResult
	calls   int
}

func (s *scriptedLLM) Call(ctx context.Context, sessionID, system string, messages []llmclient.Message, model string, temperature float64, toolDefs []llmclient.ToolDef, cacheSystem bool) (llmclient.CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx], nil
}

func newsStubBelt() *tools.Belt {
	b := tools.New()
	b.Register(tools.Tool{
		Name: "search_news",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"results": []string{}}, nil
		},
	})
	return b
}

func TestProcessQuerySimpleGeneralistOnly(t *testing.T) {
	generalistLLM := &scriptedLLM{results: []llmclient.CallResult{{Text: "AAPL is at $190", Cost: 0.002}}}
	generalist := agent.New(generalistLLM, tools.New(), 6)
	marketLLM := &scriptedLLM{}
	newsLLM := &scriptedLLM{}
	marketSpecialist := agent.New(marketLLM, tools.New(), 6)
	newsSpecialist := agent.New(newsLLM, tools.New(), 6)

	store := session.New()
	o := New(generalist, agent.GeneralistConfig(), marketSpecialist, newsSpecialist, store,
		[]specialistpool.Option{specialistpool.WithWorkers(1)})
	defer o.Shutdown()

	res, err := o.ProcessQuery(context.Background(), "What is AAPL's current price?", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AgentTag != entropytypes.TagGeneralist {
		t.Fatalf("expected generalist tag, got %q", res.AgentTag)
	}
	if res.Response != "AAPL is at $190" {
		t.Fatalf("unexpected response: %q", res.Response)
	}
	if res.CostUSD != 0.002 {
		t.Fatalf("expected cost 0.002, got %f", res.CostUSD)
	}
	if res.PrefetchActive {
		t.Fatal("expected no prefetch for a plain price query")
	}
}

func TestProcessQueryTechnicalJargonRunsImmediateSpecialistAndSynthesizes(t *testing.T) {
	generalistLLM := &scriptedLLM{results: []llmclient.CallResult{
		{Text: "Anchor: AAPL looks range-bound", Cost: 0.001}, // anchor
		{Text: "Fused: AAPL RSI 65, MACD bullish, range-bound near term", Cost: 0.0015}, // synthesis
	}}
	generalist := agent.New(generalistLLM, tools.New(), 6)
	marketLLM := &scriptedLLM{results: []llmclient.CallResult{{Text: "RSI is 65, MACD is bullish", Cost: 0.02}}}
	marketSpecialist := agent.New(marketLLM, tools.New(), 6)
	newsLLM := &scriptedLLM{}
	newsSpecialist := agent.New(newsLLM, tools.New(), 6)

	store := session.New()
	o := New(generalist, agent.GeneralistConfig(), marketSpecialist, newsSpecialist, store,
		[]specialistpool.Option{specialistpool.WithWorkers(1)},
		WithSpecialistTimeout(2*time.Second))
	defer o.Shutdown()

	res, err := o.ProcessQuery(context.Background(), "Show me AAPL's RSI and MACD", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AgentTag != entropytypes.TagGeneralistMarket {
		t.Fatalf("expected generalist+market tag, got %q", res.AgentTag)
	}
	if res.Response != "Fused: AAPL RSI 65, MACD bullish, range-bound near term" {
		t.Fatalf("unexpected synthesized response: %q", res.Response)
	}
	wantCost := 0.001 + 0.02 + 0.0015
	if diff := res.CostUSD - wantCost; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected cost %f, got %f", wantCost, res.CostUSD)
	}
}

func TestProcessQueryDissatisfactionFollowUpRoutesToNewsSpecialist(t *testing.T) {
	generalistLLM := &scriptedLLM{results: []llmclient.CallResult{
		{ToolCalls: []llmclient.ToolCall{{ID: "c1", Name: "search_news", Arguments: map[string]any{"query": "NVDA"}}}, Cost: 0.001}, // turn 1 tool call
		{Text: "NVDA is a chip company", Cost: 0.002},                // turn 1 final
		{Text: "Anchor: here's a bit more", Cost: 0.001},             // turn 2 anchor
		{Text: "Fused: NVDA's detailed news breakdown", Cost: 0.0012}, // turn 2 synthesis
	}}
	generalist := agent.New(generalistLLM, newsStubBelt(), 6)
	newsLLM := &scriptedLLM{results: []llmclient.CallResult{{Text: "Detailed NVDA news analysis", Cost: 0.03}}}
	newsSpecialist := agent.New(newsLLM, tools.New(), 6)
	marketLLM := &scriptedLLM{}
	marketSpecialist := agent.New(marketLLM, tools.New(), 6)

	store := session.New()
	o := New(generalist, agent.GeneralistConfig(), marketSpecialist, newsSpecialist, store,
		[]specialistpool.Option{specialistpool.WithWorkers(1)},
		WithSpecialistTimeout(2*time.Second))
	defer o.Shutdown()

	res1, err := o.ProcessQuery(context.Background(), "Tell me about NVDA", "s1")
	if err != nil {
		t.Fatalf("turn 1 unexpected error: %v", err)
	}
	if res1.AgentTag != entropytypes.TagGeneralist {
		t.Fatalf("expected generalist tag on turn 1, got %q", res1.AgentTag)
	}

	res2, err := o.ProcessQuery(context.Background(), "That's not enough detail", "s1")
	if err != nil {
		t.Fatalf("turn 2 unexpected error: %v", err)
	}
	if res2.AgentTag != entropytypes.TagGeneralistNews {
		t.Fatalf("expected generalist+news tag on turn 2, got %q", res2.AgentTag)
	}
	if res2.Response != "Fused: NVDA's detailed news breakdown" {
		t.Fatalf("unexpected turn 2 response: %q", res2.Response)
	}
}

func TestProcessQueryPrefetchThenFollowUpReusesCachedResult(t *testing.T) {
	generalistLLM := &scriptedLLM{results: []llmclient.CallResult{
		{ToolCalls: []llmclient.ToolCall{{ID: "c1", Name: "search_news", Arguments: map[string]any{"query": "TSLA"}}}, Cost: 0.001}, // turn 1 tool call
		{Text: "TSLA moved on earnings", Cost: 0.002},     // turn 1 final
		{Text: "Anchor: checking on that", Cost: 0.001},   // turn 2 anchor
		{Text: "Fused: TSLA moved due to strong deliveries", Cost: 0.001}, // turn 2 synthesis
	}}
	generalist := agent.New(generalistLLM, newsStubBelt(), 6)
	newsLLM := &scriptedLLM{results: []llmclient.CallResult{{Text: "TSLA delivery numbers beat estimates", Cost: 0.05}}}
	newsSpecialist := agent.New(newsLLM, tools.New(), 6)
	marketLLM := &scriptedLLM{}
	marketSpecialist := agent.New(marketLLM, tools.New(), 6)

	store := session.New()
	o := New(generalist, agent.GeneralistConfig(), marketSpecialist, newsSpecialist, store,
		[]specialistpool.Option{specialistpool.WithWorkers(2)},
		WithSpecialistTimeout(2*time.Second))
	defer o.Shutdown()

	res1, err := o.ProcessQuery(context.Background(), "What moved TSLA today?", "s1")
	if err != nil {
		t.Fatalf("turn 1 unexpected error: %v", err)
	}
	if !res1.PrefetchActive {
		t.Fatal("expected turn 1 to report prefetch_active=true")
	}
	if res1.AgentTag != entropytypes.TagGeneralist {
		t.Fatalf("expected generalist tag on turn 1, got %q", res1.AgentTag)
	}

	// Let the pre-fetch worker finish before the follow-up lands.
	deadline := time.Now().Add(time.Second)
	for newsLLM.calls == 0 {
		if time.Now().After(deadline) {
			t.Fatal("prefetch never executed")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	res2, err := o.ProcessQuery(context.Background(), "Why did it move?", "s1")
	if err != nil {
		t.Fatalf("turn 2 unexpected error: %v", err)
	}
	if res2.AgentTag != entropytypes.TagGeneralistNews {
		t.Fatalf("expected generalist+news tag on turn 2, got %q", res2.AgentTag)
	}
	if newsLLM.calls != 1 {
		t.Fatalf("expected the cached pre-fetch result to avoid a second specialist LLM call, got %d calls", newsLLM.calls)
	}
}

func TestProcessQueryPrefetchDisabledWithSingleWorker(t *testing.T) {
	generalistLLM := &scriptedLLM{results: []llmclient.CallResult{
		{ToolCalls: []llmclient.ToolCall{{ID: "c1", Name: "search_news", Arguments: map[string]any{"query": "TSLA"}}}, Cost: 0.001},
		{Text: "TSLA moved on earnings", Cost: 0.002},
	}}
	generalist := agent.New(generalistLLM, newsStubBelt(), 6)
	newsLLM := &scriptedLLM{results: []llmclient.CallResult{{Text: "TSLA delivery numbers beat estimates", Cost: 0.05}}}
	newsSpecialist := agent.New(newsLLM, tools.New(), 6)
	marketSpecialist := agent.New(&scriptedLLM{}, tools.New(), 6)

	store := session.New()
	o := New(generalist, agent.GeneralistConfig(), marketSpecialist, newsSpecialist, store,
		[]specialistpool.Option{specialistpool.WithWorkers(1)},
		WithSpecialistTimeout(2*time.Second))
	defer o.Shutdown()

	res, err := o.ProcessQuery(context.Background(), "What moved TSLA today?", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PrefetchActive {
		t.Fatal("expected prefetch to be disabled with a single specialist worker")
	}
	if newsLLM.calls != 0 {
		t.Fatalf("expected no specialist call to run, got %d", newsLLM.calls)
	}
}

func TestProcessQuerySpecialistTimeoutFallsBackToAnchor(t *testing.T) {
	generalistLLM := &scriptedLLM{results: []llmclient.CallResult{
		{Text: "Anchor: AAPL technicals pending", Cost: 0.001},
	}}
	generalist := agent.New(generalistLLM, tools.New(), 6)

	release := make(chan struct{})
	slowMarketLLM := &slowLLM{release: release, result: llmclient.CallResult{Text: "too late", Cost: 0.02}}
	marketSpecialist := agent.New(slowMarketLLM, tools.New(), 6)
	newsSpecialist := agent.New(&scriptedLLM{}, tools.New(), 6)

	store := session.New()
	o := New(generalist, agent.GeneralistConfig(), marketSpecialist, newsSpecialist, store,
		[]specialistpool.Option{specialistpool.WithWorkers(1)},
		WithSpecialistTimeout(20*time.Millisecond))
	defer func() {
		close(release)
		o.Shutdown()
	}()

	res, err := o.ProcessQuery(context.Background(), "Show me AAPL's RSI", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AgentTag != entropytypes.TagGeneralist {
		t.Fatalf("expected fallback to generalist tag on timeout, got %q", res.AgentTag)
	}
}

type slowLLM struct {
	release chan struct{}
	result  llmclient.CallResult
}

func (s *slowLLM) Call(ctx context.Context, sessionID, system string, messages []llmclient.Message, model string, temperature float64, toolDefs []llmclient.ToolDef, cacheSystem bool) (llmclient.CallResult, error) {
	<-s.release
	return s.result, nil
}
