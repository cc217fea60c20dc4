package main

import (
	"context"
	"os"

	"github.com/SeanStafford/ENTROPY/internal/agent"
	"github.com/SeanStafford/ENTROPY/internal/config"
	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/llmclient"
	"github.com/SeanStafford/ENTROPY/internal/marketdata"
	"github.com/SeanStafford/ENTROPY/internal/marketdata/quotesfeed"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/hybrid"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/lexical"
	"github.com/SeanStafford/ENTROPY/internal/retrieval/semantic"
	"github.com/SeanStafford/ENTROPY/internal/tools"
)

// requireAPIKey fails fast at startup rather than on the first LLM
// call, per spec.md §6's exit code 1 for misconfiguration.
func requireAPIKey(ctx context.Context) error {
	if os.Getenv("CLAUDE_API_KEY") == "" {
		obslog.Error(ctx, "missing CLAUDE_API_KEY")
		return errMissingAPIKey
	}
	return nil
}

func initializeLLM() *llmclient.Client {
	return llmclient.New("")
}

// initializeRetrieval loads the two persisted index artifacts named by
// cfg.Retrieval if present; a missing artifact degrades to an empty
// index rather than failing startup, matching §4.1/§4.2's "empty index
// -> empty list, never an error" contract.
func initializeRetrieval(ctx context.Context, cfg *config.Config) (*hybrid.Retriever, []entropytypes.Document) {
	embedder := semantic.NewHashingEmbedder(cfg.Retrieval.EmbeddingDim)

	lex, err := lexical.Load(cfg.Retrieval.LexicalIndexPath)
	if err != nil {
		obslog.Warn(ctx, "lexical index artifact unavailable, starting empty", "path", cfg.Retrieval.LexicalIndexPath, "error", err)
		lex = lexical.New(nil)
	}

	sem, err := semantic.Load(cfg.Retrieval.SemanticIndexPath+".meta.json", cfg.Retrieval.SemanticIndexPath+".vec.json", embedder)
	if err != nil {
		obslog.Warn(ctx, "semantic index artifact unavailable, starting empty", "path", cfg.Retrieval.SemanticIndexPath, "error", err)
		sem = semantic.New(nil, embedder)
	}

	retriever := hybrid.New(lex, sem,
		hybrid.WithKRRF(cfg.Retrieval.KRRF),
		hybrid.WithSemanticWeight(cfg.Retrieval.SemanticWeight),
		hybrid.WithLexicalWeight(cfg.Retrieval.LexicalWeight),
	)
	return retriever, lex.Docs()
}

// initializeMarketData wires MarketDataTools over a live quotesfeed
// websocket, the way teacher's broker package wraps Zerodha's feed
// behind an interfaces.Broker. The feed is returned alongside the
// Tools so the caller can Start it against ctx's lifetime and Stop it
// on shutdown; queries name tickers dynamically, so there is no fixed
// subscription universe to pass at construction time the way teacher's
// cfg.UniverseStatic gave the broker one.
func initializeMarketData(cfg *config.Config) (*marketdata.Tools, *quotesfeed.Feed) {
	feed := quotesfeed.New(cfg.QuotesFeed.WebsocketURL)
	source := marketdata.NewFeedSource(feed)

	indicatorCfg := marketdata.IndicatorConfig{
		RSIPeriod:  cfg.Indicators.RSIPeriod,
		EMAFast:    cfg.Indicators.EMAFast,
		EMASlow:    cfg.Indicators.EMASlow,
		MACDSignal: cfg.Indicators.MACDSignal,
		SMAPeriods: []int{20, 50},
	}
	return marketdata.New(source, indicatorCfg), feed
}

// initializeAgents builds the shared tool belt and the three fixed
// agent kinds spec.md §4.7 names; all three share one belt since
// Agent.Run scopes tool visibility per call via RunRequest.ToolNames.
func initializeAgents(llm *llmclient.Client, retriever *hybrid.Retriever, mdt *marketdata.Tools, maxSteps int) (generalist, marketSpecialist, newsSpecialist *agent.Agent) {
	belt := tools.New()
	tools.RegisterRetrievalTools(belt, retriever)
	tools.RegisterMarketDataTools(belt, mdt)

	generalist = agent.New(llm, belt, maxSteps)
	marketSpecialist = agent.New(llm, belt, maxSteps)
	newsSpecialist = agent.New(llm, belt, maxSteps)
	return
}
