package agent

// KindConfig captures the per-kind differences spec.md §4.7's table
// names; the loop itself (agent.go) is identical across all three.
type KindConfig struct {
	ModelTier         string // key into llmclient's cost table
	Temperature       float64
	CacheSystemPrompt bool
	ToolNames         []string
}

// Generalist: cheap tier, the session's most recent turns, up to 50
// (built by the caller),
// system prompt cached, narrow tool set.
func GeneralistConfig() KindConfig {
	return KindConfig{
		ModelTier:         "cheap",
		Temperature:       0.4,
		CacheSystemPrompt: true,
		ToolNames:         []string{"search_news", "get_price", "get_fundamentals"},
	}
}

// MarketSpecialist: expensive tier, last <=3 turns + brief (built by the
// caller), no caching, every market-data tool and indicator.
func MarketSpecialistConfig() KindConfig {
	return KindConfig{
		ModelTier:         "expensive",
		Temperature:       0.1,
		CacheSystemPrompt: false,
		ToolNames:         []string{"get_price", "get_fundamentals", "get_history", "price_change", "compare_performance", "top_performers", "technicals"},
	}
}

// NewsSpecialist: mid tier, last <=3 turns + brief, no caching, hybrid
// retrieval with advanced filters.
func NewsSpecialistConfig() KindConfig {
	return KindConfig{
		ModelTier:         "mid",
		Temperature:       0.6,
		CacheSystemPrompt: false,
		ToolNames:         []string{"search_news_advanced"},
	}
}
