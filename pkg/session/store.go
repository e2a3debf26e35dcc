package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/narratex/narratex/pkg/types"
)

var (
	// ErrInvalidMode is returned when an unsupported mode string is
	// supplied. This indicates caller misuse, not a transient condition.
	ErrInvalidMode = errors.New("invalid session mode")
	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultMaxTurns bounds history when the caller does not configure it.
const DefaultMaxTurns = 10

// Persister stores session snapshots durably. Implementations must be safe
// for concurrent use.
type Persister interface {
	Save(s *types.Session) error
	LoadAll() ([]*types.Session, error)
	Close() error
}

// entry pairs a session with its write lock. The lock serializes mutation
// per session id only; the store-level lock guards the map itself.
type entry struct {
	mu sync.Mutex
	s  *types.Session
}

// Store owns every live session.
type Store struct {
	maxTurns int
	logger   *slog.Logger
	persist  Persister

	mu       sync.RWMutex
	sessions map[string]*entry

	// seq orders focus-entity updates for recency tie-breaking.
	seq atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithPersister writes every session mutation through to p and restores
// persisted sessions on startup.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persist = p }
}

// NewStore creates a session store keeping at most maxTurns turn pairs of
// history per session.
func NewStore(maxTurns int, logger *slog.Logger, opts ...Option) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		maxTurns: maxTurns,
		logger:   logger,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.persist != nil {
		restored, err := s.persist.LoadAll()
		if err != nil {
			s.logger.Warn("failed to restore persisted sessions", "error", err)
		}
		for _, sess := range restored {
			s.sessions[sess.ID] = &entry{s: sess}
		}
		if len(restored) > 0 {
			s.logger.Info("restored sessions", "count", len(restored))
		}
	}
	return s
}

// Create registers a new session bound to videoID. An empty mode defaults
// to exploration; an empty id is generated. Creating over an existing id
// replaces that session.
func (s *Store) Create(videoID string, mode types.Mode, id string) (*types.Session, error) {
	if mode == "" {
		mode = types.ModeExploration
	}
	if !types.ValidMode(mode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if id == "" {
		id = "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	now := time.Now()
	sess := &types.Session{
		ID:        id,
		VideoID:   videoID,
		Mode:      mode,
		Retrieved: make(map[string]struct{}),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[id] = &entry{s: sess}
	s.mu.Unlock()

	s.save(sess)
	s.logger.Info("created session", "session_id", id, "video_id", videoID, "mode", mode)
	return sess.Clone(), nil
}

// Get returns a copy of the session, safe to read without locks.
func (s *Store) Get(id string) (*types.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Clone(), nil
}

// List returns all session ids.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// AddTurn appends one user/assistant message pair. History is trimmed FIFO
// in whole pairs so at most maxTurns pairs remain.
func (s *Store) AddTurn(id, userMsg, assistantMsg string) error {
	return s.mutate(id, func(sess *types.Session) {
		now := time.Now()
		sess.History = append(sess.History,
			types.Message{Role: "user", Content: userMsg, Timestamp: now},
			types.Message{Role: "assistant", Content: assistantMsg, Timestamp: now},
		)
		if max := s.maxTurns * 2; len(sess.History) > max {
			sess.History = append(sess.History[:0:0], sess.History[len(sess.History)-max:]...)
		}
	})
}

// UpdateFocusEntities increments the mention counter for each named entity.
// Counters never decay.
func (s *Store) UpdateFocusEntities(id string, entities []string) error {
	if len(entities) == 0 {
		return nil
	}
	seq := s.seq.Add(1)
	return s.mutate(id, func(sess *types.Session) {
		for _, name := range entities {
			if name == "" {
				continue
			}
			found := false
			for i := range sess.Focus {
				if sess.Focus[i].Name == name {
					sess.Focus[i].Count++
					sess.Focus[i].Seq = seq
					found = true
					break
				}
			}
			if !found {
				sess.Focus = append(sess.Focus, types.FocusEntity{Name: name, Count: 1, Seq: seq})
			}
		}
	})
}

// RecentEntities returns up to n focus entities ordered by descending
// mention count, ties broken by most recent update, then by name for
// determinism.
func (s *Store) RecentEntities(id string, n int) ([]string, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	focus := append([]types.FocusEntity(nil), e.s.Focus...)
	e.mu.Unlock()

	sort.SliceStable(focus, func(i, j int) bool {
		if focus[i].Count != focus[j].Count {
			return focus[i].Count > focus[j].Count
		}
		if focus[i].Seq != focus[j].Seq {
			return focus[i].Seq > focus[j].Seq
		}
		return focus[i].Name < focus[j].Name
	})

	if n > len(focus) {
		n = len(focus)
	}
	out := make([]string, 0, n)
	for _, f := range focus[:n] {
		out = append(out, f.Name)
	}
	return out, nil
}

// MarkRetrieved records item ids as already surfaced in this session.
func (s *Store) MarkRetrieved(id string, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return s.mutate(id, func(sess *types.Session) {
		for _, itemID := range itemIDs {
			sess.Retrieved[itemID] = struct{}{}
		}
	})
}

// WasRetrieved reports whether the item was already surfaced.
func (s *Store) WasRetrieved(id, itemID string) (bool, error) {
	e, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.s.Retrieved[itemID]
	return ok, nil
}

// SetMode switches the session's operating mode.
func (s *Store) SetMode(id string, mode types.Mode) error {
	if !types.ValidMode(mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return s.mutate(id, func(sess *types.Session) {
		sess.Mode = mode
	})
}

// Close flushes the persister, if any.
func (s *Store) Close() error {
	if s.persist == nil {
		return nil
	}
	return s.persist.Close()
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return e, nil
}

// mutate runs fn under the session's lock and stamps/persists the result.
func (s *Store) mutate(id string, fn func(*types.Session)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	fn(e.s)
	e.s.UpdatedAt = time.Now()
	snapshot := e.s.Clone()
	e.mu.Unlock()

	s.save(snapshot)
	return nil
}

func (s *Store) save(sess *types.Session) {
	if s.persist == nil {
		return
	}
	if err := s.persist.Save(sess); err != nil {
		s.logger.Warn("failed to persist session", "session_id", sess.ID, "error", err)
	}
}
