// Package semantic implements a dense ranker over pre-computed,
// L2-normalized document embeddings, grounded in the same pure-function
// numeric style as the teacher's internal/ta package. The embedding
// function itself is pluggable (spec.md §9 design note): production
// deployments supply a real sentence-embedding model through the
// Embedder interface; HashingEmbedder is the deterministic, no-network
// reference implementation used for tests and local runs.
package semantic

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

// Embedder maps text to a fixed-dimension, L2-normalized vector.
type Embedder interface {
	Embed(text string) []float64
	Dim() int
}

// HashingEmbedder is a deterministic, dependency-free Embedder: each
// token is hashed into a bucket and the resulting bag-of-buckets vector
// is L2-normalized. It is not intended to produce meaningful semantic
// similarity, only to exercise SemanticIndex's contract (dimension,
// normalization, inner-product ranking) without a network call.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) *HashingEmbedder {
	return &HashingEmbedder{dim: dim}
}

func (h *HashingEmbedder) Dim() int { return h.dim }

func (h *HashingEmbedder) Embed(text string) []float64 {
	v := make([]float64, h.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		v[fnv32(tok)%uint32(h.dim)] += 1.0
	}
	return normalize(v)
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

func normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

type embeddedDoc struct {
	doc   entropytypes.Document
	embed []float64
}

// Index is a dense ranker built once over a fixed corpus. Re-building is
// out of scope for the core; construct a new Index for a new corpus.
type Index struct {
	docs     []embeddedDoc
	embedder Embedder
}

// New embeds every document with embedder and builds a searchable index.
func New(docs []entropytypes.Document, embedder Embedder) *Index {
	idx := &Index{embedder: embedder, docs: make([]embeddedDoc, len(docs))}
	for i, d := range docs {
		idx.docs[i] = embeddedDoc{doc: d, embed: embedder.Embed(d.Title + " " + d.Body)}
	}
	return idx
}

// Search returns the top-k hits by inner-product similarity against
// query's embedding. When tickers is non-empty, over-fetches
// max(k*10, 50) candidates before filtering to preserve recall. Ties
// break by ascending document id. Empty query or empty index yields an
// empty (non-nil) list.
func (idx *Index) Search(query string, k int, tickers map[string]struct{}) []entropytypes.RetrievalHit {
	hits := make([]entropytypes.RetrievalHit, 0, k)
	if len(idx.docs) == 0 || strings.TrimSpace(query) == "" || k <= 0 {
		return hits
	}

	qv := idx.embedder.Embed(query)

	fetch := k
	if len(tickers) > 0 {
		fetch = k * 10
		if fetch < 50 {
			fetch = 50
		}
	}

	type scored struct {
		docIdx int
		score  float64
	}
	ranked := make([]scored, len(idx.docs))
	for i, ed := range idx.docs {
		ranked[i] = scored{i, dot(qv, ed.embed)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return idx.docs[ranked[i].docIdx].doc.ID < idx.docs[ranked[j].docIdx].doc.ID
	})

	if fetch > len(ranked) {
		fetch = len(ranked)
	}
	ranked = ranked[:fetch]

	rank := 0
	for _, r := range ranked {
		if len(hits) == k {
			break
		}
		d := idx.docs[r.docIdx].doc
		if len(tickers) > 0 && !d.IntersectsTickers(tickers) {
			continue
		}
		rank++
		hits = append(hits, entropytypes.RetrievalHit{
			DocumentID: d.ID,
			Score:      r.score,
			Rank:       rank,
		})
	}
	return hits
}

func dot(a, b []float64) float64 {
	var s float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

// Len reports the number of indexed documents.
func (idx *Index) Len() int { return len(idx.docs) }

// metaRecord is one row of the metadata artifact: document fields
// without its embedding.
type metaRecord struct {
	Doc entropytypes.Document `json:"doc"`
	Dim int                   `json:"dim"`
}

// Save writes two paired artifacts per spec.md §6: metaPath holds each
// document's metadata, vecPath holds the aligned dense-vector matrix
// (one row per document, same order as metaPath). Splitting them
// mirrors the split the spec draws between "what a document is" and
// "its embedding," the way lexical.Index keeps one combined artifact
// because BM25 has no separate vector payload to split out.
func (idx *Index) Save(metaPath, vecPath string) error {
	metas := make([]metaRecord, len(idx.docs))
	vecs := make([][]float64, len(idx.docs))
	for i, ed := range idx.docs {
		metas[i] = metaRecord{Doc: ed.doc, Dim: idx.embedder.Dim()}
		vecs[i] = ed.embed
	}

	metaBytes, err := json.Marshal(metas)
	if err != nil {
		return err
	}
	if err := os.WriteFile(metaPath, metaBytes, 0644); err != nil {
		return err
	}

	vecBytes, err := json.Marshal(vecs)
	if err != nil {
		return err
	}
	return os.WriteFile(vecPath, vecBytes, 0644)
}

// Load reads the metadata and dense-vector artifacts Save wrote and
// reconstructs a read-only Index. embedder is still needed live: query
// text at search time must be embedded the same way the corpus was, and
// that function is never itself persisted (spec.md §9 treats it as a
// pluggable capability, not state).
func Load(metaPath, vecPath string, embedder Embedder) (*Index, error) {
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	var metas []metaRecord
	if err := json.Unmarshal(metaBytes, &metas); err != nil {
		return nil, err
	}

	vecBytes, err := os.ReadFile(vecPath)
	if err != nil {
		return nil, err
	}
	var vecs [][]float64
	if err := json.Unmarshal(vecBytes, &vecs); err != nil {
		return nil, err
	}

	if len(metas) != len(vecs) {
		return nil, fmt.Errorf("semantic: metadata has %d documents but vectors has %d", len(metas), len(vecs))
	}

	docs := make([]embeddedDoc, len(metas))
	for i, m := range metas {
		docs[i] = embeddedDoc{doc: m.Doc, embed: vecs[i]}
	}
	return &Index{embedder: embedder, docs: docs}, nil
}
