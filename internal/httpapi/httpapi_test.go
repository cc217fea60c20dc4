package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SeanStafford/ENTROPY/internal/agent"
	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/llmclient"
	"github.com/SeanStafford/ENTROPY/internal/marketdata"
	"github.com/SeanStafford/ENTROPY/internal/orchestrator"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/hybrid"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/lexical"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/semantic"
	"github.com/SeanStafford/ENTROPY/internal/session"
	"github.com/SeanStafford/ENTROPY/internal/specialistpool"
	"github.com/SeanStafford/ENTROPY/internal/tools"
)

type stubLLM struct {
	text string
	cost float64
}

func (s *stubLLM) Call(ctx context.Context, sessionID, system string, messages []llmclient.Message, model string, temperature float64, toolDefs []llmclient.ToolDef, cacheSystem bool) (llmclient.CallResult, error) {
	return llmclient.CallResult{Text: s.text, Cost: s.cost}, nil
}

type fakeSource struct{}

func (fakeSource) LatestPrice(ctx context.Context, ticker string) (float64, float64, time.Time, bool) {
	if ticker != "AAPL" {
		return 0, 0, time.Time{}, false
	}
	return 190.5, 1.2, time.Now(), true
}
func (fakeSource) Fundamentals(ctx context.Context, ticker string) (entropytypes.Fundamentals, bool) {
	return entropytypes.Fundamentals{}, false
}
func (fakeSource) History(ctx context.Context, ticker string, period entropytypes.Period) ([]entropytypes.PriceHistoryPoint, bool) {
	return nil, false
}

func sampleDocs() []entropytypes.Document {
	return []entropytypes.Document{
		{ID: "d1", Title: "Apple unveils new product", Body: "Apple announced a new product line", Tickers: []string{"AAPL"}},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	docs := sampleDocs()
	lex := lexical.New(docs)
	sem := semantic.New(docs, semantic.NewHashingEmbedder(64))
	retriever := hybrid.New(lex, sem)

	mdt := marketdata.New(fakeSource{}, marketdata.DefaultIndicatorConfig())

	generalist := agent.New(&stubLLM{text: "AAPL is at $190", cost: 0.002}, tools.New(), 6)
	marketSpec := agent.New(&stubLLM{}, tools.New(), 6)
	newsSpec := agent.New(&stubLLM{}, tools.New(), 6)
	store := session.New()
	orch := orchestrator.New(generalist, agent.GeneralistConfig(), marketSpec, newsSpec, store,
		[]specialistpool.Option{specialistpool.WithWorkers(1)})
	t.Cleanup(orch.Shutdown)

	return New(orch, retriever, mdt, docs)
}

func TestHandleChatDefaultsMissingSessionID(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(chatRequest{Query: "What is AAPL's current price?"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.SessionID != "default" {
		t.Fatalf("expected session_id default, got %q", resp.SessionID)
	}
	if resp.Agent != entropytypes.TagGeneralist {
		t.Fatalf("expected generalist tag, got %q", resp.Agent)
	}
}

func TestHandleHealthReportsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.ServeHTTP(w, req)

	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Status != "ok" || resp.Version == "" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestHandleDiagnosticTracesRetrievalAndMarketData(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/diagnostic/AAPL%20product%20launch", nil)
	w := httptest.NewRecorder()

	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp diagnosticResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.FlowTrace.Retrieval.Success {
		t.Fatal("expected retrieval trace success")
	}
	if resp.FlowTrace.MarketData.TickerExtracted == nil || *resp.FlowTrace.MarketData.TickerExtracted != "AAPL" {
		t.Fatalf("expected AAPL extracted, got %+v", resp.FlowTrace.MarketData)
	}
	if !resp.FlowTrace.MarketData.DataAvailable {
		t.Fatal("expected market data available for AAPL")
	}
	if !resp.FlowTrace.Generation.OrchestratorReady {
		t.Fatal("expected orchestrator_ready true")
	}
}

func TestHandleDiagnosticEmptyQueryDegradesGracefully(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/diagnostic/%20", nil)
	w := httptest.NewRecorder()

	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp diagnosticResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.FlowTrace.Retrieval.Success {
		t.Fatal("expected retrieval to report failure for a blank query")
	}
}
