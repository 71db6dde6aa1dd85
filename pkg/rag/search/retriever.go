package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"agentic-rag-be/pkg/cache"
	"agentic-rag-be/pkg/embedding"
	"agentic-rag-be/pkg/store"

	"github.com/google/uuid"
)

// Method selects how Search ranks candidates.
type Method string

const (
	MethodVector Method = "vector"
	MethodHybrid Method = "hybrid"
)

// minCandidatePool is the smallest dense pool hybrid fusion scores over.
const minCandidatePool = 20

// resultTTL bounds how long a (method, k, query) result is served from cache.
const resultTTL = 5 * time.Minute

// Config encapsulates retrieval parameters.
type Config struct {
	// Alpha balances the hybrid combination: 1 scores on dense distance
	// only, 0 on BM25 only.
	Alpha float64
	TopK  int
}

// DefaultConfig returns default retrieval configuration.
func DefaultConfig() Config {
	return Config{
		Alpha: 0.5,
		TopK:  3,
	}
}

// Retriever answers queries against a vector index, either by dense distance
// alone or by fusing dense distance with BM25 scores computed over the
// candidate pool.
type Retriever struct {
	index       store.VectorIndex
	embedder    embedding.EmbeddingProvider
	resultCache cache.Cache
	config      Config
	logger      *log.Logger
}

// NewRetriever creates a new retriever. resultCache may be nil to disable
// result caching.
func NewRetriever(
	index store.VectorIndex,
	embedder embedding.EmbeddingProvider,
	resultCache cache.Cache,
	config Config,
	logger *log.Logger,
) *Retriever {
	return &Retriever{
		index:       index,
		embedder:    embedder,
		resultCache: resultCache,
		config:      config,
		logger:      logger,
	}
}

// Search embeds the query and returns the top-k passages ranked by the given
// method. Ranks are a dense 1..N sequence. It returns
// store.ErrIndexUnavailable when the index holds no records.
func (r *Retriever) Search(ctx context.Context, query string, k int, method Method) ([]store.Passage, error) {
	if k <= 0 {
		k = r.config.TopK
	}
	if method == "" {
		method = MethodHybrid
	}

	cacheKey := fmt.Sprintf("retrieval:%s:%d:%s", method, k, query)
	if r.resultCache != nil {
		if raw, ok := r.resultCache.Get(ctx, cacheKey); ok {
			var passages []store.Passage
			if err := json.Unmarshal(raw, &passages); err == nil {
				r.logger.Printf("[DEBUG] Retrieval cache hit: method=%s k=%d", method, k)
				return passages, nil
			}
		}
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	poolSize := k
	if method == MethodHybrid {
		poolSize = k * 4
		if poolSize < minCandidatePool {
			poolSize = minCandidatePool
		}
	}

	pool, err := r.index.Search(ctx, queryVector, poolSize)
	if err != nil {
		return nil, err
	}
	r.logger.Printf("[DEBUG] Dense candidate pool: %d documents", len(pool))

	var passages []store.Passage
	if method == MethodHybrid {
		passages = r.fuse(query, pool, k)
	} else {
		passages = byDistance(pool, k)
	}

	if r.resultCache != nil {
		if raw, err := json.Marshal(passages); err == nil {
			r.resultCache.Set(ctx, cacheKey, raw, resultTTL)
		}
	}
	return passages, nil
}

// Add embeds the passages and appends them to the index.
func (r *Retriever) Add(ctx context.Context, passages []store.PassageInput) error {
	if len(passages) == 0 {
		return nil
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := embedding.EmbedAll(ctx, r.embedder, texts, 4)
	if err != nil {
		return fmt.Errorf("embedding generation failed: %w", err)
	}
	records := make([]store.Record, len(passages))
	for i, p := range passages {
		records[i] = store.Record{
			ID:        uuid.NewString(),
			Text:      p.Text,
			Source:    p.Source,
			Embedding: vectors[i],
		}
	}
	return r.index.Add(ctx, records)
}

// fuse reranks the dense candidate pool by combining min-max normalised
// dense distance with pool-local BM25 scores. Ties fall back to smaller
// dense distance, then lexicographic source order.
func (r *Retriever) fuse(query string, pool []store.Candidate, k int) []store.Passage {
	if len(pool) == 0 {
		return nil
	}

	corpus := make([][]string, len(pool))
	distances := make([]float64, len(pool))
	for i, c := range pool {
		corpus[i] = Tokenize(c.Text)
		distances[i] = c.Distance
	}
	sparse := newBM25(corpus).Scores(Tokenize(query))

	dNorm := minMaxNormalize(distances)
	sNorm := minMaxNormalize(sparse)

	order := make([]int, len(pool))
	combined := make([]float64, len(pool))
	for i := range pool {
		order[i] = i
		combined[i] = r.config.Alpha*(1-dNorm[i]) + (1-r.config.Alpha)*sNorm[i]
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if combined[i] != combined[j] {
			return combined[i] > combined[j]
		}
		if pool[i].Distance != pool[j].Distance {
			return pool[i].Distance < pool[j].Distance
		}
		return pool[i].Source < pool[j].Source
	})

	if k > len(order) {
		k = len(order)
	}
	passages := make([]store.Passage, k)
	for rank, idx := range order[:k] {
		passages[rank] = store.Passage{
			Text:   pool[idx].Text,
			Source: pool[idx].Source,
			Score:  combined[idx],
			Rank:   rank + 1,
		}
	}
	return passages
}

// byDistance takes the top-k candidates by ascending dense distance. The
// index already returns the pool in that order.
func byDistance(pool []store.Candidate, k int) []store.Passage {
	if k > len(pool) {
		k = len(pool)
	}
	passages := make([]store.Passage, k)
	for i, c := range pool[:k] {
		passages[i] = store.Passage{
			Text:   c.Text,
			Source: c.Source,
			Score:  c.Distance,
			Rank:   i + 1,
		}
	}
	return passages
}

// minMaxNormalize maps values onto [0,1] over their observed range. A
// constant slice maps to all zeros.
func minMaxNormalize(values []float64) []float64 {
	normalized := make([]float64, len(values))
	if len(values) == 0 {
		return normalized
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		return normalized
	}
	for i, v := range values {
		normalized[i] = (v - lo) / span
	}
	return normalized
}
