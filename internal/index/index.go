package index

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/pkg/logger"
)

const (
	vectorsFile = "vectors.gob"
	metaFile    = "meta.json"

	// MetaSourcePath is the stable document identifier used by Update and by
	// the conflict evaluator's dedup check.
	MetaSourcePath   = "source_path"
	MetaDocumentType = "document_type"
	MetaUniqueID     = "unique_id"
	MetaFileSource   = "file_source"
	MetaCreatedAt    = "created_at"
	MetaUserID       = "user_id"
	MetaLastAccessed = "last_accessed"
)

// Embedder turns text into vectors. *llm.Client satisfies it.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is one text to be chunked, embedded, and indexed under shared
// metadata.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Match is one search hit. Score is the raw similarity: 1 + cosine(query,
// chunk), in [0,2], higher means more similar. Callers normalize it into
// [0,1] before threshold comparison.
type Match struct {
	Content  string
	Metadata map[string]string
	Score    float64
}

type chunkMeta struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Index is a flat cosine-similarity index over embedded text chunks,
// persisted to dir on every mutation and reloaded at construction. Reads are
// safe under concurrent use; writes must be serialized by the caller (the
// Writer queue does this).
type Index struct {
	dir          string
	embedder     Embedder
	chunkSize    int
	chunkOverlap int

	mu      sync.RWMutex
	vectors [][]float32
	chunks  []chunkMeta
}

// New loads the index from dir or, when no prior index exists, initializes it
// with a single sentinel entry so similarity search never runs against an
// empty store. A present-but-unreadable index is a hard error: the caller is
// expected to treat it as fatal at startup.
func New(ctx context.Context, dir string, embedder Embedder, chunkSize, chunkOverlap int) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	idx := &Index{
		dir:          dir,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}

	vectorsPath := filepath.Join(dir, vectorsFile)
	metaPath := filepath.Join(dir, metaFile)

	_, vErr := os.Stat(vectorsPath)
	_, mErr := os.Stat(metaPath)

	if vErr == nil && mErr == nil {
		if err := idx.load(vectorsPath, metaPath); err != nil {
			return nil, fmt.Errorf("failed to load index from %s: %w", dir, err)
		}
		logger.Info("Similarity index loaded",
			zap.String("dir", dir),
			zap.Int("vectors", len(idx.vectors)),
		)
		return idx, nil
	}

	if err := idx.seed(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed index: %w", err)
	}

	logger.Info("New similarity index created", zap.String("dir", dir))
	return idx, nil
}

func (idx *Index) load(vectorsPath, metaPath string) error {
	vf, err := os.Open(vectorsPath)
	if err != nil {
		return err
	}
	defer vf.Close()

	if err := gob.NewDecoder(vf).Decode(&idx.vectors); err != nil {
		return fmt.Errorf("corrupt vector file: %w", err)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &idx.chunks); err != nil {
		return fmt.Errorf("corrupt metadata sidecar: %w", err)
	}

	if len(idx.vectors) != len(idx.chunks) {
		return fmt.Errorf("index inconsistent: %d vectors, %d metadata entries",
			len(idx.vectors), len(idx.chunks))
	}

	return nil
}

func (idx *Index) seed(ctx context.Context) error {
	const sentinel = "System Initial Document"

	vec, err := idx.embedder.GenerateEmbedding(ctx, sentinel)
	if err != nil {
		return fmt.Errorf("failed to embed sentinel: %w", err)
	}

	idx.vectors = [][]float32{vec}
	idx.chunks = []chunkMeta{{
		Content: sentinel,
		Metadata: map[string]string{
			MetaSourcePath:   "system",
			MetaDocumentType: "System",
			MetaUniqueID:     uuid.New().String(),
			MetaCreatedAt:    time.Now().UTC().Format(time.RFC3339),
		},
	}}

	return idx.save()
}

// save writes both files under the index directory. Callers must hold the
// write lock or have exclusive access.
func (idx *Index) save() error {
	vf, err := os.Create(filepath.Join(idx.dir, vectorsFile))
	if err != nil {
		return fmt.Errorf("failed to write vector file: %w", err)
	}
	defer vf.Close()

	if err := gob.NewEncoder(vf).Encode(idx.vectors); err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}

	data, err := json.Marshal(idx.chunks)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(idx.dir, metaFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata sidecar: %w", err)
	}

	return nil
}

// Add splits each document, embeds the chunks, appends them under the
// document's metadata, and persists the index.
func (idx *Index) Add(ctx context.Context, docs []Document) error {
	var texts []string
	var metas []map[string]string

	for _, doc := range docs {
		for _, chunk := range SplitText(doc.Text, idx.chunkSize, idx.chunkOverlap) {
			texts = append(texts, chunk)
			metas = append(metas, doc.Metadata)
		}
	}

	if len(texts) == 0 {
		return nil
	}

	embeddings, err := idx.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	if len(embeddings) != len(texts) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(texts))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, text := range texts {
		idx.vectors = append(idx.vectors, embeddings[i])
		idx.chunks = append(idx.chunks, chunkMeta{Content: text, Metadata: cloneMeta(metas[i])})
	}

	if err := idx.save(); err != nil {
		return err
	}

	logger.Info("Documents indexed",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(texts)),
		zap.Int("total_vectors", len(idx.vectors)),
	)

	return nil
}

// SearchWithScores embeds the query and returns up to k nearest chunks by
// cosine similarity, best first.
func (idx *Index) SearchWithScores(ctx context.Context, query string, k int) ([]Match, error) {
	queryVec, err := idx.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, 0, len(idx.vectors))
	for i, vec := range idx.vectors {
		matches = append(matches, Match{
			Content:  idx.chunks[i].Content,
			Metadata: idx.chunks[i].Metadata,
			Score:    1 + cosine(queryVec, vec),
		})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}

	return matches, nil
}

// Count returns the number of embedded vectors currently indexed, including
// the sentinel.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Update patches metadata fields on every chunk whose source_path matches the
// identifier, without re-embedding, and persists the result. Returns the
// number of chunks touched.
func (idx *Index) Update(identifier string, patch map[string]string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	touched := 0
	for i := range idx.chunks {
		if idx.chunks[i].Metadata[MetaSourcePath] != identifier {
			continue
		}
		merged := cloneMeta(idx.chunks[i].Metadata)
		for k, v := range patch {
			merged[k] = v
		}
		idx.chunks[i].Metadata = merged
		touched++
	}

	if touched == 0 {
		return 0, nil
	}

	if err := idx.save(); err != nil {
		return 0, err
	}

	logger.Debug("Index metadata updated",
		zap.String("identifier", identifier),
		zap.Int("chunks", touched),
	)

	return touched, nil
}

func cloneMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
