package kb

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narratex/narratex/pkg/types"
)

const testAtoms = `{"atom_id":"A001","start_ms":0,"end_ms":10000,"duration_ms":10000,"merged_text":"Nationalist remnants retreated to the Golden Triangle in 1962","type":"fragment","completeness":"complete","importance_score":0.9}
{"atom_id":"A002","start_ms":10000,"end_ms":25000,"duration_ms":15000,"merged_text":"Luo Xinghan rose to control the opium trade","type":"complete_segment","completeness":"complete","importance_score":0.75}

{"atom_id":"A003","start_ms":25000,"end_ms":40000,"duration_ms":15000,"merged_text":"The surrender negotiations began in 1996","type":"fragment","completeness":"needs_context","importance_score":0.4}
`

const testSegments = `{"segments":[
  {"segment_id":"SEG_001","title":"Origins of the Golden Triangle","atoms":["A001","A002"],
   "start_ms":0,"end_ms":25000,"duration_ms":25000,"summary":"How the region became an opium hub",
   "narrative_structure":{"type":"history","structure":"background -> crisis"},
   "topics":{"primary_topic":"drug trade","secondary_topics":["geopolitics"],"free_tags":["golden triangle"]},
   "entities":{"persons":["Luo Xinghan"],"time_points":["1962"]},
   "importance_score":0.95,"quality_score":0.9}
]}`

const testEntities = `{"entities":{
  "Luo Xinghan":{"entity_type":"person","mentions":12,"atom_ids":["A002","A003"]},
  "Golden Triangle":{"entity_type":"concept","mentions":20,"atom_ids":["A001"]}
},"statistics":{"total_entities":2}}`

const testGraph = `{"nodes":[{"id":"Luo Xinghan","label":"Luo Xinghan","type":"person"}],
"edges":[
  {"source":"Luo Xinghan","target":"Golden Triangle","relation_type":"operated_in","weight":0.9,"atom_ids":["A002"]},
  {"source":"Khun Sa","target":"Luo Xinghan","relation_type":"rival_of","weight":0.7}
]}`

const testClips = `{"clip_recommendations":[
  {"segment_id":"SEG_001","angle":"origin story","suitability_score":0.85}
]}`

// writeSnapshot lays out a knowledge base directory in the ingestion
// pipeline's default format. Topics are deliberately omitted to cover the
// missing-family path.
func writeSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "indexes"), 0o755))
	files := map[string]string{
		"atoms.jsonl":                          testAtoms,
		"narrative_segments.json":              testSegments,
		"entities.json":                        testEntities,
		filepath.Join("indexes", "graph.json"): testGraph,
		"creative_angles.json":                 testClips,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(writeSnapshot(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return store
}

func TestNewStoreMissingDir(t *testing.T) {
	_, err := NewStore("/nonexistent/snapshot", nil)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestAtomsLoadAndIndex(t *testing.T) {
	store := newTestStore(t)

	atoms, err := store.Atoms()
	require.NoError(t, err)
	require.Len(t, atoms, 3)
	assert.Equal(t, "A001", atoms[0].ID)

	atom, err := store.AtomByID("A002")
	require.NoError(t, err)
	require.NotNil(t, atom)
	assert.Equal(t, 0.75, atom.ImportanceScore)

	missing, err := store.AtomByID("A999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSearchAtomTextCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	hits, err := store.SearchAtomText("luo xinghan")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A002", hits[0].ID)

	none, err := store.SearchAtomText("no such phrase")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAtomsInRange(t *testing.T) {
	store := newTestStore(t)

	atoms, err := store.AtomsInRange(types.TimeRange{StartMs: 5000, EndMs: 12000})
	require.NoError(t, err)
	require.Len(t, atoms, 2)
	assert.Equal(t, "A001", atoms[0].ID)
	assert.Equal(t, "A002", atoms[1].ID)
}

func TestAtomsByImportance(t *testing.T) {
	store := newTestStore(t)

	atoms, err := store.AtomsByImportance(0.7)
	require.NoError(t, err)
	require.Len(t, atoms, 2)
	// Sorted by descending importance.
	assert.Equal(t, "A001", atoms[0].ID)
	assert.Equal(t, "A002", atoms[1].ID)
}

func TestSegmentsAndLookup(t *testing.T) {
	store := newTestStore(t)

	segments, err := store.Segments()
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "drug trade", segments[0].Topics.Primary)

	seg, err := store.SegmentByID("SEG_001")
	require.NoError(t, err)
	require.NotNil(t, seg)
	assert.Equal(t, []string{"A001", "A002"}, seg.AtomIDs)
}

func TestEntityByName(t *testing.T) {
	store := newTestStore(t)

	e, err := store.EntityByName("Luo Xinghan")
	require.NoError(t, err)
	require.NotNil(t, e)
	// Name backfilled from the map key.
	assert.Equal(t, "Luo Xinghan", e.Name)
	assert.Equal(t, "person", e.Type)
	assert.Equal(t, []string{"A002", "A003"}, e.AtomIDs)
}

func TestEntityRelationsBothDirections(t *testing.T) {
	store := newTestStore(t)

	rels, err := store.EntityRelations("Luo Xinghan")
	require.NoError(t, err)
	require.Len(t, rels, 2)
	// Sorted by descending weight; incoming edge viewed from the entity.
	assert.Equal(t, "Golden Triangle", rels[0].Target)
	assert.Equal(t, "outgoing", rels[0].Direction)
	assert.Equal(t, "Khun Sa", rels[1].Target)
	assert.Equal(t, "incoming", rels[1].Direction)
}

func TestMissingFamilyIsEmptyNotError(t *testing.T) {
	store := newTestStore(t)

	topics, err := store.Topics()
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestFamilyLoadedOnceAndReload(t *testing.T) {
	dir := writeSnapshot(t)
	store, err := NewStore(dir, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	atoms, err := store.Atoms()
	require.NoError(t, err)
	require.Len(t, atoms, 3)

	// Rewrite the backing file; the memoized family must not notice.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atoms.jsonl"), []byte(""), 0o644))
	atoms, err = store.Atoms()
	require.NoError(t, err)
	assert.Len(t, atoms, 3)

	// Reload invalidates exactly this family.
	require.NoError(t, store.Reload(FamilyAtoms))
	atoms, err = store.Atoms()
	require.NoError(t, err)
	assert.Empty(t, atoms)

	assert.ErrorIs(t, store.Reload("bogus"), ErrUnknownFamily)
}

func TestManifestOverride(t *testing.T) {
	dir := writeSnapshot(t)
	require.NoError(t, os.Rename(
		filepath.Join(dir, "atoms.jsonl"),
		filepath.Join(dir, "micro_units.jsonl"),
	))
	manifest := "video_id: vid-42\ntitle: Golden Triangle Documentary\natoms: micro_units.jsonl\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644))

	store, err := NewStore(dir, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	atoms, err := store.Atoms()
	require.NoError(t, err)
	assert.Len(t, atoms, 3)

	md, err := store.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "vid-42", md.VideoID)
	assert.Equal(t, "Golden Triangle Documentary", md.Title)
}

func TestMetadataDerivation(t *testing.T) {
	store := newTestStore(t)

	md, err := store.Metadata()
	require.NoError(t, err)
	assert.Equal(t, int64(40000), md.DurationMs)
	assert.Equal(t, 3, md.AtomCount)
	assert.Equal(t, 1, md.SegmentCount)
	assert.Equal(t, 2, md.EntityCount)
	assert.Equal(t, "Origins of the Golden Triangle", md.Title)
}

func TestClips(t *testing.T) {
	store := newTestStore(t)

	clips, err := store.Clips()
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, "SEG_001", clips[0].SegmentID)
	assert.Equal(t, 0.85, clips[0].SuitabilityScore)
}
