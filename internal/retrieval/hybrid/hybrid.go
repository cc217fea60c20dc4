// Package hybrid fuses LexicalIndex and SemanticIndex results via
// weighted reciprocal-rank fusion, querying both indexes in parallel
// with golang.org/x/sync/errgroup (seen used for concurrent fan-out
// across the retrieval pack, e.g. hyper-light-sylk's vector/graph
// lookups).
package hybrid

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
)

const (
	kRRFDefault = 60

	semanticWeightDefault = 2.0
	lexicalWeightDefault  = 1.0
)

// LexicalSearcher is the subset of lexical.Index's contract HybridRetriever needs.
type LexicalSearcher interface {
	Search(query string, k int, tickers map[string]struct{}) []entropytypes.RetrievalHit
}

// SemanticSearcher is the subset of semantic.Index's contract HybridRetriever needs.
type SemanticSearcher interface {
	Search(query string, k int, tickers map[string]struct{}) []entropytypes.RetrievalHit
}

// Retriever fuses lexical and semantic search results.
type Retriever struct {
	lexical        LexicalSearcher
	semantic       SemanticSearcher
	kRRF           int
	semanticWeight float64
	lexicalWeight  float64
}

// Option configures a Retriever at construction time.
type Option func(*Retriever)

func WithKRRF(k int) Option                { return func(r *Retriever) { r.kRRF = k } }
func WithSemanticWeight(w float64) Option   { return func(r *Retriever) { r.semanticWeight = w } }
func WithLexicalWeight(w float64) Option    { return func(r *Retriever) { r.lexicalWeight = w } }

// New builds a Retriever. Either searcher may be nil, in which case the
// retriever degrades to the other index's unchanged top-k.
func New(lexical LexicalSearcher, semantic SemanticSearcher, opts ...Option) *Retriever {
	r := &Retriever{
		lexical:        lexical,
		semantic:       semantic,
		kRRF:           kRRFDefault,
		semanticWeight: semanticWeightDefault,
		lexicalWeight:  lexicalWeightDefault,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type fusionEntry struct {
	docID        string
	fusedScore   float64
	semanticRank int // 0 if no semantic hit
}

// Search queries both indexes concurrently and fuses their rankings.
// Result length is <= k; documents are unique.
func (r *Retriever) Search(ctx context.Context, query string, k int, tickers map[string]struct{}) []entropytypes.FusedHit {
	if k <= 0 {
		return []entropytypes.FusedHit{}
	}
	kEach := 2 * k
	if kEach < 20 {
		kEach = 20
	}

	var lexHits, semHits []entropytypes.RetrievalHit
	var lexAvailable, semAvailable bool

	g, gctx := errgroup.WithContext(ctx)
	if r.lexical != nil {
		g.Go(func() error {
			lexHits = r.lexical.Search(query, kEach, tickers)
			lexAvailable = true
			return nil
		})
	}
	if r.semantic != nil {
		g.Go(func() error {
			semHits = r.semantic.Search(query, kEach, tickers)
			semAvailable = true
			return nil
		})
	}
	_ = g.Wait()
	_ = gctx

	if !lexAvailable && !semAvailable {
		obslog.Warn(ctx, "hybrid retriever: both indexes unavailable", "query", query)
		return []entropytypes.FusedHit{}
	}
	if !lexAvailable {
		obslog.Warn(ctx, "hybrid retriever: lexical index unavailable, degrading to semantic-only", "query", query)
		return truncateToFused(semHits, k)
	}
	if !semAvailable {
		obslog.Warn(ctx, "hybrid retriever: semantic index unavailable, degrading to lexical-only", "query", query)
		return truncateToFused(lexHits, k)
	}

	entries := make(map[string]*fusionEntry)
	for _, h := range lexHits {
		e := entries[h.DocumentID]
		if e == nil {
			e = &fusionEntry{docID: h.DocumentID}
			entries[h.DocumentID] = e
		}
		e.fusedScore += r.lexicalWeight / float64(r.kRRF+h.Rank)
	}
	for _, h := range semHits {
		e := entries[h.DocumentID]
		if e == nil {
			e = &fusionEntry{docID: h.DocumentID}
			entries[h.DocumentID] = e
		}
		e.fusedScore += r.semanticWeight / float64(r.kRRF+h.Rank)
		e.semanticRank = h.Rank
	}

	ranked := make([]*fusionEntry, 0, len(entries))
	for _, e := range entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].fusedScore != ranked[j].fusedScore {
			return ranked[i].fusedScore > ranked[j].fusedScore
		}
		ri, rj := ranked[i].semanticRank, ranked[j].semanticRank
		if ri == 0 {
			ri = int(^uint(0) >> 1)
		}
		if rj == 0 {
			rj = int(^uint(0) >> 1)
		}
		if ri != rj {
			return ri < rj
		}
		return ranked[i].docID < ranked[j].docID
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]entropytypes.FusedHit, k)
	for i, e := range ranked[:k] {
		out[i] = entropytypes.FusedHit{DocumentID: e.docID, FusedScore: e.fusedScore, SemanticRank: e.semanticRank}
	}
	return out
}

func truncateToFused(hits []entropytypes.RetrievalHit, k int) []entropytypes.FusedHit {
	if k > len(hits) {
		k = len(hits)
	}
	out := make([]entropytypes.FusedHit, k)
	for i, h := range hits[:k] {
		out[i] = entropytypes.FusedHit{DocumentID: h.DocumentID, FusedScore: h.Score}
	}
	return out
}
