package session

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narratex/narratex/pkg/types"
)

func newTestStore(t *testing.T, maxTurns int) *Store {
	t.Helper()
	return NewStore(maxTurns, slog.New(slog.DiscardHandler))
}

func TestCreateGeneratesID(t *testing.T) {
	store := newTestStore(t, 5)

	sess, err := store.Create("vid-1", "", "")
	require.NoError(t, err)
	assert.Regexp(t, `^sess_[0-9a-f]{12}$`, sess.ID)
	assert.Equal(t, types.ModeExploration, sess.Mode)
	assert.Equal(t, "vid-1", sess.VideoID)
}

func TestCreateWithCallerID(t *testing.T) {
	store := newTestStore(t, 5)

	sess, err := store.Create("vid-1", types.ModeLearning, "my-session")
	require.NoError(t, err)
	assert.Equal(t, "my-session", sess.ID)

	got, err := store.Get("my-session")
	require.NoError(t, err)
	assert.Equal(t, types.ModeLearning, got.Mode)
}

func TestCreateInvalidMode(t *testing.T) {
	store := newTestStore(t, 5)

	_, err := store.Create("vid-1", "debugging", "")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestGetUnknownSession(t *testing.T) {
	store := newTestStore(t, 5)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = store.AddTurn("nope", "q", "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAddTurnTrimsFIFOInPairs(t *testing.T) {
	const maxTurns = 3
	store := newTestStore(t, maxTurns)
	sess, err := store.Create("vid-1", "", "")
	require.NoError(t, err)

	for i := 0; i < maxTurns; i++ {
		require.NoError(t, store.AddTurn(sess.ID, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2*maxTurns)
	assert.Equal(t, "q0", got.History[0].Content)

	// One more pair evicts exactly the oldest pair.
	require.NoError(t, store.AddTurn(sess.ID, "q3", "a3"))
	got, err = store.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2*maxTurns)
	assert.Equal(t, "q1", got.History[0].Content)
	assert.Equal(t, "a1", got.History[1].Content)
	assert.Equal(t, "q3", got.History[4].Content)
	assert.Equal(t, "a3", got.History[5].Content)

	// Pairs are never split: even entries are user, odd are assistant.
	for i, msg := range got.History {
		want := types.Role("user")
		if i%2 == 1 {
			want = "assistant"
		}
		assert.Equal(t, want, msg.Role, "history[%d]", i)
	}
}

func TestFocusEntityOrdering(t *testing.T) {
	store := newTestStore(t, 5)
	sess, err := store.Create("vid-1", "", "")
	require.NoError(t, err)

	require.NoError(t, store.UpdateFocusEntities(sess.ID, []string{"Nixon", "de Gaulle"}))
	require.NoError(t, store.UpdateFocusEntities(sess.ID, []string{"Nixon"}))
	require.NoError(t, store.UpdateFocusEntities(sess.ID, []string{"IMF"}))

	// Nixon: count 2. de Gaulle and IMF: count 1, IMF updated more recently.
	got, err := store.RecentEntities(sess.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nixon", "IMF", "de Gaulle"}, got)

	// top-n truncation
	got, err = store.RecentEntities(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nixon"}, got)
}

func TestFocusEntitiesNeverDecay(t *testing.T) {
	store := newTestStore(t, 5)
	sess, err := store.Create("vid-1", "", "")
	require.NoError(t, err)

	require.NoError(t, store.UpdateFocusEntities(sess.ID, []string{"Nixon"}))
	// Empty updates and turns must not shrink counters.
	require.NoError(t, store.UpdateFocusEntities(sess.ID, nil))
	require.NoError(t, store.AddTurn(sess.ID, "q", "a"))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Focus, 1)
	assert.Equal(t, 1, got.Focus[0].Count)
}

func TestRetrievedItemTracking(t *testing.T) {
	store := newTestStore(t, 5)
	sess, err := store.Create("vid-1", "", "")
	require.NoError(t, err)

	require.NoError(t, store.MarkRetrieved(sess.ID, "A001", "SEG_001"))
	require.NoError(t, store.MarkRetrieved(sess.ID, "A001")) // idempotent

	seen, err := store.WasRetrieved(sess.ID, "A001")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.WasRetrieved(sess.ID, "A999")
	require.NoError(t, err)
	assert.False(t, seen)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Retrieved, 2)
}

func TestSetMode(t *testing.T) {
	store := newTestStore(t, 5)
	sess, err := store.Create("vid-1", "", "")
	require.NoError(t, err)

	require.NoError(t, store.SetMode(sess.ID, types.ModeCreation))
	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ModeCreation, got.Mode)

	assert.ErrorIs(t, store.SetMode(sess.ID, "bogus"), ErrInvalidMode)
}

func TestIndependentSessionsDoNotInterfere(t *testing.T) {
	store := newTestStore(t, 5)

	a, err := store.Create("vid-1", "", "")
	require.NoError(t, err)
	b, err := store.Create("vid-2", "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.AddTurn(a.ID, fmt.Sprintf("q%d", i), "a")
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = store.UpdateFocusEntities(b.ID, []string{"Nixon"})
		}(i)
	}
	wg.Wait()

	gotA, err := store.Get(a.ID)
	require.NoError(t, err)
	assert.Len(t, gotA.History, 10) // trimmed to maxTurns pairs
	assert.Empty(t, gotA.Focus)

	gotB, err := store.Get(b.ID)
	require.NoError(t, err)
	require.Len(t, gotB.Focus, 1)
	assert.Equal(t, 50, gotB.Focus[0].Count)
	assert.Empty(t, gotB.History)
}

func TestBadgerPersisterRoundTrip(t *testing.T) {
	dir := t.TempDir()

	persister, err := NewBadgerPersister(dir)
	require.NoError(t, err)

	store := NewStore(5, slog.New(slog.DiscardHandler), WithPersister(persister))
	sess, err := store.Create("vid-1", types.ModeLearning, "persisted")
	require.NoError(t, err)
	require.NoError(t, store.AddTurn(sess.ID, "q", "a"))
	require.NoError(t, store.UpdateFocusEntities(sess.ID, []string{"Nixon"}))
	require.NoError(t, store.Close())

	// A fresh store over the same database restores the session.
	persister, err = NewBadgerPersister(dir)
	require.NoError(t, err)
	restored := NewStore(5, slog.New(slog.DiscardHandler), WithPersister(persister))
	defer restored.Close()

	got, err := restored.Get("persisted")
	require.NoError(t, err)
	assert.Equal(t, types.ModeLearning, got.Mode)
	assert.Len(t, got.History, 2)
	require.Len(t, got.Focus, 1)
	assert.Equal(t, "Nixon", got.Focus[0].Name)
}
