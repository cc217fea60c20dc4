// Package httpapi implements the thin HTTP façade spec.md §6 fixes the
// contract for: POST /chat, GET /health, GET /diagnostic/{query}. No
// third-party router appears anywhere in the retrieval pack as a direct
// dependency (see DESIGN.md), so this uses net/http's 1.22+
// pattern-based ServeMux directly, the same stdlib-only shape teacher
// itself uses for its bare net/http calls in internal/llm/claude.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/marketdata"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
	"github.com/SeanStafford/ENTROPY/internal/orchestrator"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/hybrid"
)

// Version is reported by GET /health.
const Version = "1.0.0"

const diagnosticK = 5

var tickerRe = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// Server wires the Orchestrator, HybridRetriever, and MarketDataTools
// behind the three fixed HTTP endpoints.
type Server struct {
	orch      *orchestrator.Orchestrator
	retriever *hybrid.Retriever
	mdt       *marketdata.Tools
	docsByID  map[string]entropytypes.Document
	mux       *http.ServeMux
}

// New builds a Server. docs is the retrieval corpus, used only to
// resolve a hit's DocumentID back to its title/tickers for the
// diagnostic endpoint's sample output.
func New(orch *orchestrator.Orchestrator, retriever *hybrid.Retriever, mdt *marketdata.Tools, docs []entropytypes.Document) *Server {
	s := &Server{
		orch:      orch,
		retriever: retriever,
		mdt:       mdt,
		docsByID:  make(map[string]entropytypes.Document, len(docs)),
	}
	for _, d := range docs {
		s.docsByID[d.ID] = d
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /diagnostic/{query}", s.handleDiagnostic)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response       string                `json:"response"`
	CostUSD        float64               `json:"cost_usd"`
	Agent          entropytypes.AgentTag `json:"agent"`
	SessionID      string                `json:"session_id"`
	PrefetchActive bool                  `json:"prefetch_active"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	res, err := s.orch.ProcessQuery(r.Context(), req.Query, sessionID)
	if err != nil {
		obslog.ErrorWithErr(r.Context(), "httpapi: process_query fatal", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       res.Response,
		CostUSD:        res.CostUSD,
		Agent:          res.AgentTag,
		SessionID:      res.SessionID,
		PrefetchActive: res.PrefetchActive,
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: Version})
}

type retrievalTrace struct {
	Success      bool     `json:"success"`
	NumResults   int      `json:"num_results"`
	TickersFound []string `json:"tickers_found"`
	SampleTitles []string `json:"sample_titles"`
}

type marketDataTrace struct {
	Success         bool     `json:"success"`
	TickerExtracted *string  `json:"ticker_extracted"`
	DataAvailable   bool     `json:"data_available"`
	CurrentPrice    *float64 `json:"current_price"`
}

type generationTrace struct {
	OrchestratorReady    bool `json:"orchestrator_ready"`
	SpecialistPoolActive bool `json:"specialist_pool_active"`
}

type diagnosticResponse struct {
	Query     string `json:"query"`
	FlowTrace struct {
		Retrieval  retrievalTrace  `json:"retrieval"`
		MarketData marketDataTrace `json:"market_data"`
		Generation generationTrace `json:"generation"`
	} `json:"flow_trace"`
}

func (s *Server) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	obslog.Diagnostic(r.Context(), "tracing query", "query", query)

	resp := diagnosticResponse{Query: query}
	resp.FlowTrace.Retrieval = s.traceRetrieval(r.Context(), query)
	resp.FlowTrace.MarketData = s.traceMarketData(r.Context(), query)
	resp.FlowTrace.Generation = generationTrace{
		OrchestratorReady:    s.orch != nil,
		SpecialistPoolActive: s.orch != nil && s.orch.PoolActive(),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) traceRetrieval(ctx context.Context, query string) retrievalTrace {
	trace := retrievalTrace{TickersFound: []string{}, SampleTitles: []string{}}
	if s.retriever == nil || strings.TrimSpace(query) == "" {
		return trace
	}

	hits := s.retriever.Search(ctx, query, diagnosticK, nil)
	trace.Success = true
	trace.NumResults = len(hits)

	seenTickers := make(map[string]struct{})
	for i, h := range hits {
		doc, ok := s.docsByID[h.DocumentID]
		if !ok {
			continue
		}
		if i < 3 {
			trace.SampleTitles = append(trace.SampleTitles, doc.Title)
		}
		for _, t := range doc.Tickers {
			if _, dup := seenTickers[t]; !dup {
				seenTickers[t] = struct{}{}
				trace.TickersFound = append(trace.TickersFound, t)
			}
		}
	}
	return trace
}

func (s *Server) traceMarketData(ctx context.Context, query string) marketDataTrace {
	trace := marketDataTrace{Success: true}
	ticker := tickerRe.FindString(query)
	if ticker == "" || s.mdt == nil {
		return trace
	}
	trace.TickerExtracted = &ticker

	snap := s.mdt.GetPrice(ctx, ticker)
	trace.DataAvailable = !snap.Absent()
	trace.CurrentPrice = snap.Price
	return trace
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
