// Package lexical implements a BM25-style ranker over the static news
// corpus, in the same idiom as the teacher's internal/ta package: small,
// pure, allocation-light numeric functions over slices, with no
// third-party full-text engine underneath (see DESIGN.md for why
// blevesearch/bleve was considered and rejected).
package lexical

import (
	"encoding/json"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	DocIdx int `json:"doc_idx"`
	Tf     int `json:"tf"`
}

// Index is a BM25 ranker built once over a fixed set of documents.
// Rebuilding is out of scope; callers construct a new Index for a new corpus.
type Index struct {
	docs      []entropytypes.Document
	docLen    []int
	avgDocLen float64
	postings  map[string][]posting
	n         int
}

// New tokenizes and indexes docs. Each document's ticker symbols are
// concatenated as a lowercase prefix onto its title+body before
// tokenization, so an exact-symbol query like "NVDA" scores strongly.
func New(docs []entropytypes.Document) *Index {
	idx := &Index{
		docs:     docs,
		docLen:   make([]int, len(docs)),
		postings: make(map[string][]posting),
		n:        len(docs),
	}
	if idx.n == 0 {
		return idx
	}

	totalLen := 0
	for i, d := range docs {
		toks := tokenize(tickerPrefixedText(d))
		idx.docLen[i] = len(toks)
		totalLen += len(toks)

		tf := make(map[string]int, len(toks))
		for _, t := range toks {
			tf[t]++
		}
		for term, count := range tf {
			idx.postings[term] = append(idx.postings[term], posting{DocIdx: i, Tf: count})
		}
	}
	idx.avgDocLen = float64(totalLen) / float64(idx.n)
	return idx
}

func tickerPrefixedText(d entropytypes.Document) string {
	if len(d.Tickers) == 0 {
		return d.Title + " " + d.Body
	}
	return strings.Join(d.Tickers, " ") + " " + d.Title + " " + d.Body
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return fields
}

// Search returns the top-k hits for query, optionally restricted to
// documents whose ticker set intersects tickers. Ties break by ascending
// document id. An empty query or empty index yields an empty (non-nil)
// list, never an error.
func (idx *Index) Search(query string, k int, tickers map[string]struct{}) []entropytypes.RetrievalHit {
	hits := make([]entropytypes.RetrievalHit, 0, k)
	if idx.n == 0 || strings.TrimSpace(query) == "" || k <= 0 {
		return hits
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return hits
	}

	scores := make(map[int]float64)
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plist, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (float64(idx.n)-float64(len(plist))+0.5)/(float64(len(plist))+0.5))
		for _, p := range plist {
			if len(tickers) > 0 && !idx.docs[p.DocIdx].IntersectsTickers(tickers) {
				continue
			}
			dl := float64(idx.docLen[p.DocIdx])
			tf := float64(p.Tf)
			denom := tf + k1*(1-b+b*dl/idx.avgDocLen)
			scores[p.DocIdx] += idf * (tf * (k1 + 1) / denom)
		}
	}

	type scored struct {
		docIdx int
		score  float64
	}
	ranked := make([]scored, 0, len(scores))
	for docIdx, score := range scores {
		ranked = append(ranked, scored{docIdx, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return idx.docs[ranked[i].docIdx].ID < idx.docs[ranked[j].docIdx].ID
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	for rank, r := range ranked[:k] {
		hits = append(hits, entropytypes.RetrievalHit{
			DocumentID: idx.docs[r.docIdx].ID,
			Score:      r.score,
			Rank:       rank + 1,
		})
	}
	return hits
}

// Len reports the number of indexed documents.
func (idx *Index) Len() int { return idx.n }

// Docs returns the corpus the index was built over, so a caller that
// only holds the Index (e.g. the HTTP diagnostic façade) can resolve a
// hit's DocumentID back to its title and tickers.
func (idx *Index) Docs() []entropytypes.Document { return idx.docs }

// snapshot is the on-disk shape of an Index: the tokenized corpus
// (postings) plus the length statistics BM25 needs, so Load never has
// to re-tokenize the corpus. Mirrors the teacher's forensic/datasource
// Cache's json-on-disk idiom, one file per artifact instead of one per
// key.
type snapshot struct {
	Docs      []entropytypes.Document `json:"docs"`
	DocLen    []int                   `json:"doc_len"`
	AvgDocLen float64                 `json:"avg_doc_len"`
	Postings  map[string][]posting    `json:"postings"`
	N         int                     `json:"n"`
}

// Save writes idx's tokenized corpus and BM25 statistics to path as a
// single JSON artifact, per spec.md §6's "one file holding tokenized
// corpus + statistics" persistence contract.
func (idx *Index) Save(path string) error {
	snap := snapshot{
		Docs:      idx.docs,
		DocLen:    idx.docLen,
		AvgDocLen: idx.avgDocLen,
		Postings:  idx.postings,
		N:         idx.n,
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Load reads an Index previously written by Save. The core loads it
// read-only: no method on the returned Index rebuilds or mutates the
// postings.
func Load(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return &Index{
		docs:      snap.Docs,
		docLen:    snap.DocLen,
		avgDocLen: snap.AvgDocLen,
		postings:  snap.Postings,
		n:         snap.N,
	}, nil
}
