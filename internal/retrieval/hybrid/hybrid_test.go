package hybrid

import (
	"context"
	"testing"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

type fakeSearcher struct {
	hits []entropytypes.RetrievalHit
}

func (f fakeSearcher) Search(query string, k int, tickers map[string]struct{}) []entropytypes.RetrievalHit {
	if k > len(f.hits) {
		k = len(f.hits)
	}
	return f.hits[:k]
}

func TestSearchFusesBothIndexes(t *testing.T) {
	lex := fakeSearcher{hits: []entropytypes.RetrievalHit{
		{DocumentID: "d1", Rank: 1},
		{DocumentID: "d2", Rank: 2},
	}}
	sem := fakeSearcher{hits: []entropytypes.RetrievalHit{
		{DocumentID: "d2", Rank: 1},
		{DocumentID: "d1", Rank: 2},
	}}
	r := New(lex, sem)
	hits := r.Search(context.Background(), "nvidia", 2, nil)
	if len(hits) != 2 {
		t.Fatalf("expected 2 fused hits, got %d", len(hits))
	}
	// d2 ranks 1st semantically (weight 2.0) and 2nd lexically (weight 1.0):
	// 2.0/(60+1) + 1.0/(60+2) = 0.03279 + 0.01613 = 0.04892
	// d1 ranks 1st lexically and 2nd semantically:
	// 1.0/(60+1) + 2.0/(60+2) = 0.01639 + 0.03226 = 0.04865
	if hits[0].DocumentID != "d2" {
		t.Fatalf("expected d2 to win fusion by semantic weight, got order %v", hits)
	}
}

func TestSearchDegradesWhenLexicalUnavailable(t *testing.T) {
	sem := fakeSearcher{hits: []entropytypes.RetrievalHit{{DocumentID: "d1", Rank: 1}}}
	r := New(nil, sem)
	hits := r.Search(context.Background(), "nvidia", 5, nil)
	if len(hits) != 1 || hits[0].DocumentID != "d1" {
		t.Fatalf("expected degraded semantic-only result, got %v", hits)
	}
}

func TestSearchDegradesWhenSemanticUnavailable(t *testing.T) {
	lex := fakeSearcher{hits: []entropytypes.RetrievalHit{{DocumentID: "d1", Rank: 1}}}
	r := New(lex, nil)
	hits := r.Search(context.Background(), "nvidia", 5, nil)
	if len(hits) != 1 || hits[0].DocumentID != "d1" {
		t.Fatalf("expected degraded lexical-only result, got %v", hits)
	}
}

func TestSearchResultsAreUniqueAndBoundedByK(t *testing.T) {
	lex := fakeSearcher{hits: []entropytypes.RetrievalHit{
		{DocumentID: "d1", Rank: 1},
		{DocumentID: "d2", Rank: 2},
		{DocumentID: "d3", Rank: 3},
	}}
	sem := fakeSearcher{hits: []entropytypes.RetrievalHit{
		{DocumentID: "d1", Rank: 1},
		{DocumentID: "d2", Rank: 2},
		{DocumentID: "d3", Rank: 3},
	}}
	r := New(lex, sem)
	hits := r.Search(context.Background(), "nvidia", 2, nil)
	if len(hits) != 2 {
		t.Fatalf("expected exactly 2 hits, got %d", len(hits))
	}
	seen := map[string]bool{}
	for _, h := range hits {
		if seen[h.DocumentID] {
			t.Fatalf("duplicate document %s in fused result", h.DocumentID)
		}
		seen[h.DocumentID] = true
	}
}

func TestSearchZeroKReturnsEmpty(t *testing.T) {
	r := New(fakeSearcher{}, fakeSearcher{})
	hits := r.Search(context.Background(), "nvidia", 0, nil)
	if len(hits) != 0 {
		t.Fatalf("expected empty result for k=0, got %d", len(hits))
	}
}
