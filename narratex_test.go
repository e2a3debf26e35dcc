package narratex

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narratex/narratex/pkg/types"
)

// scriptedOracle replays canned responses, one per Chat call.
type scriptedOracle struct {
	responses []string
	calls     int
}

func (o *scriptedOracle) Chat(_ context.Context, _ []types.Message) (*types.Response, error) {
	if o.calls >= len(o.responses) {
		return &types.Response{Content: "{}"}, nil
	}
	resp := &types.Response{Content: o.responses[o.calls]}
	o.calls++
	return resp, nil
}

func (o *scriptedOracle) Close() error { return nil }

func writeEngineSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "indexes"), 0o755))

	atoms := `{"atom_id":"A001","start_ms":0,"end_ms":10000,"merged_text":"Nationalist remnants retreated to the Golden Triangle","importance_score":0.9}
{"atom_id":"A002","start_ms":10000,"end_ms":25000,"merged_text":"Luo Xinghan rose to control the opium trade","importance_score":0.75}
{"atom_id":"A003","start_ms":25000,"end_ms":40000,"merged_text":"Luo Xinghan surrendered in 1996","importance_score":0.6}
`
	entities := `{"entities":{"Luo Xinghan":{"entity_type":"person","mentions":12,"atom_ids":["A002","A003"]}}}`
	graph := `{"nodes":[],"edges":[{"source":"Luo Xinghan","target":"Golden Triangle","relation_type":"operated_in","weight":0.9}]}`
	manifest := "video_id: vid-golden-triangle\ntitle: Golden Triangle Documentary\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "atoms.jsonl"), []byte(atoms), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entities.json"), []byte(entities), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "indexes", "graph.json"), []byte(graph), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644))
	return dir
}

func newTestEngine(t *testing.T, oracle *scriptedOracle) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{
		KBDir:    writeEngineSnapshot(t),
		MaxTurns: 5,
		TopK:     5,
	}, oracle, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestAskConversationWithCoreference(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		// Turn 1: interpretation, then answer generation.
		`{"intent": "search_entity", "entities": ["Luo Xinghan"], "resolved_query": "who is Luo Xinghan", "confidence": 0.9}`,
		"Luo Xinghan controlled the opium trade [Source 1: 00:10-00:25].",
		// Turn 2: the oracle extracts no entities from the pronoun query.
		`{"intent": "search_entity", "entities": [], "resolved_query": "What happened to him later?", "confidence": 0.8}`,
		"He surrendered in 1996 [Source 1: 00:25-00:40].",
	}}
	engine := newTestEngine(t, oracle)

	first, err := engine.Ask(context.Background(), "who is Luo Xinghan", AskOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, first.SessionID)
	assert.Contains(t, first.Text, "controlled the opium trade")
	assert.Positive(t, first.RetrievedCount)
	assert.NotEmpty(t, first.Sources)

	// Second turn in the same session: the pronoun resolves to the focus
	// entity recorded after turn one.
	second, err := engine.Ask(context.Background(), "What happened to him later?", AskOptions{SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Positive(t, second.RetrievedCount)

	sess, err := engine.Sessions().Get(first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "vid-golden-triangle", sess.VideoID)
	assert.Len(t, sess.History, 4)

	// Focus counter incremented on both turns via the fallback resolution.
	require.NotEmpty(t, sess.Focus)
	assert.Equal(t, "Luo Xinghan", sess.Focus[0].Name)
	assert.Equal(t, 2, sess.Focus[0].Count)

	// Retrieved atoms were recorded for the session.
	seen, err := engine.Sessions().WasRetrieved(first.SessionID, "A002")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestAskCreatesSessionWithGivenID(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"intent": "summary", "resolved_query": "what is this about", "confidence": 0.9}`,
		"A documentary about the Golden Triangle.",
	}}
	engine := newTestEngine(t, oracle)

	ans, err := engine.Ask(context.Background(), "what is this about", AskOptions{
		SessionID: "caller-chosen",
		Mode:      types.ModeLearning,
	})
	require.NoError(t, err)
	assert.Equal(t, "caller-chosen", ans.SessionID)

	sess, err := engine.Sessions().Get("caller-chosen")
	require.NoError(t, err)
	assert.Equal(t, types.ModeLearning, sess.Mode)
}

func TestHistoryAndMetadata(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"intent": "summary", "confidence": 0.9}`,
		"An overview.",
	}}
	engine := newTestEngine(t, oracle)

	ans, err := engine.Ask(context.Background(), "summarize", AskOptions{})
	require.NoError(t, err)

	history, err := engine.History(ans.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "summarize", history[0].Content)
	assert.Equal(t, "An overview.", history[1].Content)

	md, err := engine.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Golden Triangle Documentary", md.Title)
	assert.Equal(t, 3, md.AtomCount)

	_, err = engine.History("missing")
	assert.Error(t, err)
}
