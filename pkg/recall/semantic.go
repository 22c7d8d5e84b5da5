package recall

import (
	"encoding/json"
	"hash/fnv"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"quill/pkg/errors"
	"quill/pkg/models"
)

// Embedder turns texts into fixed-length vectors. The backend is an explicit
// strategy chosen at construction time: a model-backed implementation when one
// is available, or the deterministic hash fallback.
type Embedder interface {
	Name() string
	Embed(texts []string) ([][]float64, error)
}

// DefaultEmbeddingDim is the fallback vector width.
const DefaultEmbeddingDim = 48

var tokenPattern = regexp.MustCompile(`\w+`)

// HashEmbedder is the graceful-degradation backend: each token is hashed into
// one of Dim buckets and the bucket-count vector is L2-normalized. Search
// quality is crude but the behavior is fully deterministic and dependency
// free.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder returns a hash embedder with the given dimensionality
// (DefaultEmbeddingDim when dim is not positive).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Name() string { return "hash" }

func (h *HashEmbedder) Embed(texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		buckets := make([]float64, h.Dim)
		for _, token := range tokenPattern.FindAllString(normalize(text), -1) {
			hasher := fnv.New32a()
			hasher.Write([]byte(token))
			buckets[int(hasher.Sum32())%h.Dim]++
		}
		out[i] = l2Normalize(buckets)
	}
	return out, nil
}

func l2Normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	length := math.Sqrt(sum)
	if length == 0 {
		length = 1
	}
	for i := range vec {
		vec[i] /= length
	}
	return vec
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 {
		normA = 1
	}
	if normB == 0 {
		normB = 1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type cachedEmbedding struct {
	Timestamp string    `json:"timestamp"`
	Embedding []float64 `json:"embedding"`
}

type embeddingIndex struct {
	Model   string                     `json:"model"`
	Entries map[string]cachedEmbedding `json:"entries"`
}

// Engine maintains a persistent semantic index over journal entries. Vectors
// are cached per entry identifier and recomputed only when the entry's
// timestamp changes; identifiers no longer present in the corpus are pruned.
type Engine struct {
	indexFile string
	embedder  Embedder

	mu    sync.Mutex
	index embeddingIndex
}

// NewEngine creates a semantic engine caching under cacheDir with the given
// embedding backend (the hash fallback when embedder is nil).
func NewEngine(cacheDir string, embedder Embedder) *Engine {
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}
	dir := filepath.Join(cacheDir, "semantic")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: could not create semantic cache directory: %v", err)
	}
	return &Engine{
		indexFile: filepath.Join(dir, "embeddings.json"),
		embedder:  embedder,
	}
}

func (e *Engine) loadIndexLocked() {
	if e.index.Entries != nil {
		return
	}
	e.index = embeddingIndex{Model: e.embedder.Name(), Entries: map[string]cachedEmbedding{}}
	data, err := os.ReadFile(e.indexFile)
	if err != nil {
		return
	}
	var stored embeddingIndex
	if err := json.Unmarshal(data, &stored); err != nil {
		log.Printf("Warning: semantic cache is not valid JSON, rebuilding: %v", err)
		return
	}
	if stored.Entries != nil {
		e.index = stored
	}
}

func (e *Engine) saveIndexLocked() {
	data, err := json.MarshalIndent(e.index, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(e.indexFile, data, 0600); err != nil {
		log.Printf("Warning: could not persist semantic cache: %v", err)
	}
}

// ensureEmbeddings refreshes the cache for the given corpus and returns the
// identifier -> vector mapping.
func (e *Engine) ensureEmbeddings(entries []models.Entry) (map[string][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadIndexLocked()

	type payload struct {
		identifier string
		timestamp  string
		content    string
	}
	var missing []payload
	for _, entry := range entries {
		if entry.Identifier == "" {
			continue
		}
		cached, ok := e.index.Entries[entry.Identifier]
		if ok && cached.Timestamp == entry.Timestamp && len(cached.Embedding) > 0 {
			continue
		}
		missing = append(missing, payload{entry.Identifier, entry.Timestamp, entry.Content})
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, p := range missing {
			texts[i] = p.content
		}
		vectors, err := e.embedder.Embed(texts)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeApp, "EMBEDDING_FAILED", "failed to compute embeddings")
		}
		for i, p := range missing {
			e.index.Entries[p.identifier] = cachedEmbedding{Timestamp: p.timestamp, Embedding: vectors[i]}
		}
	}

	keep := make(map[string]bool, len(entries))
	for _, entry := range entries {
		keep[entry.Identifier] = true
	}
	for id := range e.index.Entries {
		if !keep[id] {
			delete(e.index.Entries, id)
		}
	}

	e.index.Model = e.embedder.Name()
	e.saveIndexLocked()

	out := make(map[string][]float64, len(e.index.Entries))
	for id, cached := range e.index.Entries {
		out[id] = cached.Embedding
	}
	return out, nil
}

// Search ranks entries by cosine similarity between the query embedding and
// each cached entry embedding. Results with similarity at or below zero are
// excluded.
func (e *Engine) Search(query string, entries []models.Entry, opts Options) ([]Hit, error) {
	opts = opts.withDefaults()
	if normalize(query) == "" || len(entries) == 0 {
		return nil, nil
	}
	embeddings, err := e.ensureEmbeddings(entries)
	if err != nil {
		return nil, err
	}
	queryVecs, err := e.embedder.Embed([]string{query})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeApp, "EMBEDDING_FAILED", "failed to embed query")
	}
	queryVec := queryVecs[0]

	source := "semantic"
	if _, isHash := e.embedder.(*HashEmbedder); isHash {
		source = "semantic-fallback"
	}

	var hits []Hit
	for _, entry := range entries {
		vector, ok := embeddings[entry.Identifier]
		if !ok || len(vector) == 0 {
			continue
		}
		sim := cosineSimilarity(queryVec, vector)
		if sim <= 0 {
			continue
		}
		hits = append(hits, Hit{
			Entry:   entry,
			Score:   sim,
			Snippet: buildSnippet(entry.Content, query),
			Source:  source,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}
