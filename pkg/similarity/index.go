package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/narratex/narratex/pkg/kb"
	"github.com/narratex/narratex/pkg/types"
)

// Candidate is one nearest-neighbour hit.
type Candidate struct {
	ID         string
	Type       types.ItemType
	Score      float64
	Importance float64
	Payload    any
}

// Searcher answers nearest-neighbour queries over knowledge base content.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

type indexEntry struct {
	id         string
	itemType   types.ItemType
	vector     []float32
	importance float64
	payload    any
}

// Index embeds every atom and segment of a knowledge base once and answers
// cosine-similarity queries against those vectors. Building is deferred to
// the first search so construction stays cheap.
type Index struct {
	store    *kb.Store
	embedder Embedder
	logger   *slog.Logger

	mu      sync.Mutex
	built   bool
	entries []indexEntry
}

// NewIndex creates an index over the given knowledge base.
func NewIndex(store *kb.Store, embedder Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Search returns up to limit candidates ordered by descending similarity.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := idx.ensureBuilt(ctx); err != nil {
		return nil, err
	}

	queryVec, err := idx.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := make([]Candidate, 0, len(idx.entries))
	for _, e := range idx.entries {
		score := cosine(queryVec, e.vector)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:         e.id,
			Type:       e.itemType,
			Score:      score,
			Importance: e.importance,
			Payload:    e.payload,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// ensureBuilt embeds all atoms and segments on first use.
func (idx *Index) ensureBuilt(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.built {
		return nil
	}

	atoms, err := idx.store.Atoms()
	if err != nil {
		return fmt.Errorf("load atoms: %w", err)
	}
	segments, err := idx.store.Segments()
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	texts := make([]string, 0, len(atoms)+len(segments))
	entries := make([]indexEntry, 0, len(atoms)+len(segments))
	for _, atom := range atoms {
		texts = append(texts, atom.Text)
		entries = append(entries, indexEntry{
			id:         atom.ID,
			itemType:   types.ItemAtom,
			importance: atom.ImportanceScore,
			payload:    atom,
		})
	}
	for _, seg := range segments {
		text := seg.Summary
		if text == "" {
			text = seg.Title
		}
		texts = append(texts, text)
		entries = append(entries, indexEntry{
			id:         seg.ID,
			itemType:   types.ItemSegment,
			importance: seg.ImportanceScore,
			payload:    seg,
		})
	}

	if len(texts) > 0 {
		vectors, err := idx.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed knowledge base: %w", err)
		}
		if len(vectors) != len(entries) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(entries))
		}
		for i := range entries {
			entries[i].vector = vectors[i]
		}
	}

	idx.entries = entries
	idx.built = true
	idx.logger.Info("similarity index built", "entries", len(entries))
	return nil
}

// cosine returns the cosine similarity of two vectors, or 0 when either has
// zero magnitude or the dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
