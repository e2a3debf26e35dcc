package similarity

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narratex/narratex/pkg/kb"
	"github.com/narratex/narratex/pkg/types"
)

// axisEmbedder maps texts onto fixed axes by keyword so similarity scores
// are fully deterministic.
type axisEmbedder struct {
	calls int
}

func (e *axisEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, 3)
	if strings.Contains(lower, "opium") {
		v[0] = 1
	}
	if strings.Contains(lower, "surrender") {
		v[1] = 1
	}
	if strings.Contains(lower, "negotiation") {
		v[2] = 1
	}
	return v
}

func (e *axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *axisEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *axisEmbedder) Close() error { return nil }

func writeIndexSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	atoms := `{"atom_id":"A001","start_ms":0,"end_ms":10000,"merged_text":"The opium trade flourished","importance_score":0.9}
{"atom_id":"A002","start_ms":10000,"end_ms":20000,"merged_text":"The surrender was announced","importance_score":0.5}
`
	segments := `[{"segment_id":"SEG_001","title":"Endgame","summary":"The surrender negotiation and its aftermath","start_ms":0,"end_ms":20000,"importance_score":0.8}]`

	require.NoError(t, os.WriteFile(filepath.Join(dir, "atoms.jsonl"), []byte(atoms), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "narrative_segments.json"), []byte(segments), 0o644))
	return dir
}

func newTestIndex(t *testing.T) (*Index, *axisEmbedder) {
	t.Helper()
	store, err := kb.NewStore(writeIndexSnapshot(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	embedder := &axisEmbedder{}
	return NewIndex(store, embedder, slog.New(slog.DiscardHandler)), embedder
}

func TestSearchRanksBySimilarity(t *testing.T) {
	idx, _ := newTestIndex(t)

	hits, err := idx.Search(context.Background(), "the surrender", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Exact axis match first, then the mixed negotiation segment.
	assert.Equal(t, "A002", hits[0].ID)
	assert.Equal(t, types.ItemAtom, hits[0].Type)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "SEG_001", hits[1].ID)
	assert.Equal(t, types.ItemSegment, hits[1].Type)
	assert.Less(t, hits[1].Score, hits[0].Score)
}

func TestSearchLimitAndZero(t *testing.T) {
	idx, _ := newTestIndex(t)

	hits, err := idx.Search(context.Background(), "surrender negotiation", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = idx.Search(context.Background(), "surrender", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchExcludesOrthogonalContent(t *testing.T) {
	idx, _ := newTestIndex(t)

	hits, err := idx.Search(context.Background(), "opium", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A001", hits[0].ID)
	assert.Equal(t, 0.9, hits[0].Importance)
}

func TestIndexBuildsOnce(t *testing.T) {
	idx, embedder := newTestIndex(t)

	_, err := idx.Search(context.Background(), "surrender", 5)
	require.NoError(t, err)
	_, err = idx.Search(context.Background(), "opium", 5)
	require.NoError(t, err)

	// One build call plus one query embedding per search.
	assert.Equal(t, 3, embedder.calls)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}
